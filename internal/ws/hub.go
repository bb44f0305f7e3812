package ws

import (
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"presencehub/internal/fanout"
	"presencehub/internal/presence"
)

// Observer sees every batch of deliveries after it was enqueued. It must not
// block.
type Observer interface {
	Observe(requester presence.ConnID, deliveries []fanout.Delivery)
}

// Hub tracks live connections and resolves delivery targets into them.
// Routing, target resolution and enqueueing happen under one mutex so every
// client receives frames in the order the router produced them. No socket I/O
// happens under the lock.
type Hub struct {
	router    *fanout.Router
	registry  *presence.Registry
	observers []Observer

	mu    sync.Mutex
	conns map[presence.ConnID]*clientConn
}

func NewHub(router *fanout.Router, registry *presence.Registry, observers ...Observer) *Hub {
	return &Hub{
		router:    router,
		registry:  registry,
		observers: observers,
		conns:     make(map[presence.ConnID]*clientConn),
	}
}

// ConnectionCount reports live websocket connections, joined or not.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// attach registers c and queues its "connected" frame under the same lock, so
// no routed event can reach c before it knows its own id.
func (h *Hub) attach(c *clientConn) {
	hello, err := json.Marshal(outFrame{Event: EventConnected, Data: ConnectedBody{ID: c.id}})
	if err != nil {
		zap.L().Error("ws.marshal", zap.String("event", EventConnected), zap.Error(err))
		return
	}
	h.mu.Lock()
	h.conns[c.id] = c
	_ = c.enqueue(hello)
	h.mu.Unlock()
	zap.L().Debug("ws.attach", zap.String("conn_id", string(c.id)))
}

// handle routes one inbound event from c.
func (h *Hub) handle(c *clientConn, env Envelope) {
	h.mu.Lock()
	out := h.router.OnEvent(c.id, env.Event, env.Data)
	slow := h.deliverLocked(c.id, out)
	h.mu.Unlock()

	h.dropSlow(slow)
	h.notify(c.id, out)
}

// detach removes c and lets the router announce the departure. Calling it
// more than once for the same connection is harmless.
func (h *Hub) detach(c *clientConn) {
	h.mu.Lock()
	if cur, ok := h.conns[c.id]; !ok || cur != c {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c.id)
	out := h.router.OnDisconnect(c.id)
	slow := h.deliverLocked(c.id, out)
	h.mu.Unlock()

	c.close()
	h.dropSlow(slow)
	h.notify(c.id, out)
	zap.L().Debug("ws.detach", zap.String("conn_id", string(c.id)))
}

// sendTo queues a single frame for one connection outside the router.
func (h *Hub) sendTo(c *clientConn, event string, data any) {
	frame, err := json.Marshal(outFrame{Event: event, Data: data})
	if err != nil {
		zap.L().Error("ws.marshal", zap.String("event", event), zap.Error(err))
		return
	}
	h.mu.Lock()
	err = c.enqueue(frame)
	h.mu.Unlock()
	if errors.Is(err, errSendBufferFull) {
		h.dropSlow([]*clientConn{c})
	}
}

// Shutdown detaches every live connection before returning, so observers have
// seen every departure by the time it does.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	conns := make([]*clientConn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.detach(c)
	}
	zap.L().Info("ws.shutdown", zap.Int("connections", len(conns)))
}

// deliverLocked enqueues every delivery and returns connections whose buffer
// overflowed. Caller holds h.mu.
func (h *Hub) deliverLocked(requester presence.ConnID, out []fanout.Delivery) []*clientConn {
	var slow []*clientConn
	for _, d := range out {
		frame, err := json.Marshal(outFrame{Event: d.Event, Data: d.Data})
		if err != nil {
			zap.L().Error("ws.marshal", zap.String("event", d.Event), zap.Error(err))
			continue
		}
		for _, c := range h.resolveLocked(requester, d.Target) {
			if err := c.enqueue(frame); errors.Is(err, errSendBufferFull) {
				slow = append(slow, c)
			}
		}
	}
	return slow
}

func (h *Hub) resolveLocked(requester presence.ConnID, t fanout.Target) []*clientConn {
	switch t.Scope {
	case fanout.Broadcast:
		out := make([]*clientConn, 0, len(h.conns))
		for _, c := range h.conns {
			out = append(out, c)
		}
		return out
	case fanout.Room:
		members := h.registry.MemberConnIDs(t.GroupID)
		out := make([]*clientConn, 0, len(members))
		for _, id := range members {
			if id == t.Except {
				continue
			}
			if c, ok := h.conns[id]; ok {
				out = append(out, c)
			}
		}
		return out
	case fanout.Direct:
		return h.lookupLocked(t.ConnID)
	case fanout.RequesterOnly:
		return h.lookupLocked(requester)
	}
	return nil
}

func (h *Hub) lookupLocked(id presence.ConnID) []*clientConn {
	if c, ok := h.conns[id]; ok {
		return []*clientConn{c}
	}
	return nil
}

func (h *Hub) dropSlow(slow []*clientConn) {
	for _, c := range slow {
		zap.L().Warn("ws.slow_client_dropped", zap.String("conn_id", string(c.id)))
		c.close()
	}
}

func (h *Hub) notify(requester presence.ConnID, out []fanout.Delivery) {
	if len(out) == 0 {
		return
	}
	for _, o := range h.observers {
		o.Observe(requester, out)
	}
}
