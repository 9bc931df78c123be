package stream

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// Handler upgrades requests to WebSocket connections and relays broadcaster events.
type Handler struct {
	broadcaster *Broadcaster
	initial     func() []Event
	origins     []string
	logger      *zap.Logger
}

// NewHandler returns a Handler. initial, when set, yields the events sent to a
// client right after it connects. origins are the accepted Origin host patterns.
func NewHandler(b *Broadcaster, initial func() []Event, origins []string, logger *zap.Logger) *Handler {
	return &Handler{
		broadcaster: b,
		initial:     initial,
		origins:     origins,
		logger:      logger.Named("stream"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	// the client never sends data; CloseRead cancels ctx once it disconnects
	ctx := conn.CloseRead(r.Context())

	ch := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(ch)

	h.logger.Debug("client connected", zap.String("remote", r.RemoteAddr))

	if h.initial != nil {
		for _, ev := range h.initial() {
			if err := h.write(ctx, conn, ev); err != nil {
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("client disconnected", zap.String("remote", r.RemoteAddr))
			return
		case ev, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := h.write(ctx, conn, ev); err != nil {
				h.logger.Debug("write failed", zap.Error(err))
				return
			}
		}
	}
}

func (h *Handler) write(ctx context.Context, conn *websocket.Conn, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
