// Package fanout turns inbound client events into deliveries. It keeps no
// state of its own; every decision is taken against the presence registry.
package fanout

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"presencehub/internal/presence"
)

// Fixed width so timestamps sort lexicographically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// internal (untyped) handler signature.
type rawHandler func(connID presence.ConnID, body json.RawMessage) ([]Delivery, error)

// malformedError marks decode and validation failures.
type malformedError struct{ reason string }

func (e *malformedError) Error() string { return e.reason }

// Router keeps a map[event]handler, à-la gin.Engine. Handlers are registered
// once in NewRouter and never change afterwards.
type Router struct {
	registry *presence.Registry
	handlers map[string]rawHandler
	validate *validator.Validate
	now      func() time.Time

	clockMu sync.Mutex
	last    time.Time // latest timestamp issued
}

type Option func(*Router)

// WithClock replaces the clock used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

func NewRouter(registry *presence.Registry, opts ...Option) *Router {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	r := &Router{
		registry: registry,
		handlers: make(map[string]rawHandler),
		validate: v,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.registerRules()
	return r
}

// Register binds an event to a strongly-typed handler. The payload is decoded
// into Req and validated before h runs.
func Register[Req any](r *Router, event string, h func(connID presence.ConnID, req Req) []Delivery) {
	if event == "" {
		panic("fanout router: empty event")
	}
	r.handlers[event] = func(connID presence.ConnID, body json.RawMessage) ([]Delivery, error) {
		var req Req
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return nil, &malformedError{reason: err.Error()}
			}
		}
		if err := r.validate.Struct(req); err != nil {
			return nil, &malformedError{reason: describeValidation(err)}
		}
		return h(connID, req), nil
	}
}

// OnEvent handles one inbound event from connID. Failures never escape: they
// come back as a single requester-only error delivery.
func (r *Router) OnEvent(connID presence.ConnID, event string, payload json.RawMessage) (out []Delivery) {
	h, ok := r.handlers[event]
	if !ok {
		zap.L().Debug("fanout.unknown_event", zap.String("event", event), zap.String("conn_id", string(connID)))
		return []Delivery{errorTo(msgUnknownEvent + ": " + event)}
	}

	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("fanout.handler_panic",
				zap.String("event", event),
				zap.String("conn_id", string(connID)),
				zap.Any("panic", rec),
			)
			out = []Delivery{errorTo(msgInternal)}
		}
	}()

	out, err := h(connID, payload)
	if err != nil {
		zap.L().Debug("fanout.rejected", zap.String("event", event), zap.Error(err))
		return []Delivery{errorTo(msgMalformedPayload + ": " + err.Error())}
	}
	return out
}

// OnDisconnect is called by the transport once connID is gone.
func (r *Router) OnDisconnect(connID presence.ConnID) []Delivery {
	dep := r.registry.Unregister(connID)

	var out []Delivery
	if dep.Registered {
		out = append(out,
			toAll(EventUsers, r.registry.AllIdentities()),
			toAll(EventUserLeft, dep.Identity),
		)
	}

	member := dep.Identity
	member.ID = connID
	for _, gid := range dep.LeftGroups {
		if slices.Contains(dep.DeletedGroups, gid) {
			continue
		}
		out = append(out, toRoom(gid, EventMemberLeft, MemberLeftBody{GroupID: gid, Member: member}))
	}
	return out
}

// timestamp never goes backwards, even when the wall clock is stepped back.
func (r *Router) timestamp() string {
	r.clockMu.Lock()
	defer r.clockMu.Unlock()
	t := r.now().UTC()
	if t.Before(r.last) {
		t = r.last
	}
	r.last = t
	return t.Format(timestampLayout)
}

// identityOf returns the registered identity, or a bare one carrying only the
// connection id when the connection never joined.
func (r *Router) identityOf(connID presence.ConnID) presence.Identity {
	if id, ok := r.registry.LookupIdentity(connID); ok {
		return id
	}
	return presence.Identity{ID: connID}
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
