package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"presencehub/internal/fanout"
	"presencehub/internal/presence"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // must be < pongWait
)

type Options struct {
	SendBuffer     int
	ReadLimit      int64
	AllowedOrigins []string // empty allows any origin
}

type WsServer struct {
	hub      *Hub
	upgrader websocket.Upgrader
	opts     Options
}

func NewWsServer(h *Hub, opts Options) *WsServer {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 64 << 10
	}
	allowed := normalizeOrigins(opts.AllowedOrigins)
	return &WsServer{
		hub:  h,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(allowed, r.Header.Get("Origin"))
			},
		},
	}
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(s.opts.ReadLimit)

	c := newClientConn(presence.ConnID(uuid.NewString()), rawConn, s.opts.SendBuffer)
	s.hub.attach(c)

	go c.writePump()
	go s.reader(c)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) reader(c *clientConn) {
	defer s.hub.detach(c)

	_ = c.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	c.rawConn.SetPongHandler(func(string) error {
		return c.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.rawConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, websocket.ErrReadLimit) {
				zap.L().Debug("ws.read", zap.String("conn_id", string(c.id)), zap.Error(err))
			}
			return // client closed or errored
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			// ---- unparsable frame -> {"event":"error", "data":{...}} ----
			s.hub.sendTo(c, fanout.EventError, fanout.ErrorBody{Message: "Malformed payload: frame must be {\"event\":string,\"data\":any}"})
			continue
		}
		s.hub.handle(c, env)
	}
}

func normalizeOrigins(origins []string) map[string]struct{} {
	out := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if n, ok := normalizeOrigin(strings.TrimSpace(o)); ok {
			out[n] = struct{}{}
		}
	}
	return out
}

func normalizeOrigin(origin string) (string, bool) {
	if origin == "*" {
		return origin, true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func originAllowed(allowed map[string]struct{}, origin string) bool {
	if len(allowed) == 0 || origin == "" {
		return true
	}
	if _, ok := allowed["*"]; ok {
		return true
	}
	n, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	_, ok = allowed[n]
	return ok
}
