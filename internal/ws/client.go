package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"presencehub/internal/presence"
)

var errSendBufferFull = errors.New("send buffer full")

// clientConn owns one websocket. Frames are queued on send and written by a
// single writePump goroutine, so each client sees frames in enqueue order.
type clientConn struct {
	id      presence.ConnID
	rawConn *websocket.Conn
	send    chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newClientConn(id presence.ConnID, rawConn *websocket.Conn, buffer int) *clientConn {
	return &clientConn{
		id:      id,
		rawConn: rawConn,
		send:    make(chan []byte, buffer),
		done:    make(chan struct{}),
	}
}

// enqueue never blocks. A full buffer means the client is too slow.
func (c *clientConn) enqueue(frame []byte) error {
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return errSendBufferFull
	}
}

// close asks the write pump to send a close frame and drop the socket, which
// in turn ends the reader and triggers the disconnect path.
func (c *clientConn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *clientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.rawConn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(time.Second))
			_ = c.rawConn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case frame := <-c.send:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.rawConn.WriteMessage(websocket.TextMessage, frame); err != nil {
				zap.L().Debug("ws.write", zap.String("conn_id", string(c.id)), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.rawConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				zap.L().Debug("ws.ping", zap.String("conn_id", string(c.id)), zap.Error(err))
				return
			}
		}
	}
}
