// Package ws implements the WebSocket adapter binding each client
// connection to its app session: forward messages stream out as msgpack
// binary frames, and interaction messages stream in as rerun requests.
package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/freshet/freshet/internal/config"
	"github.com/freshet/freshet/internal/domain/msg"
	"github.com/freshet/freshet/internal/logger"
	"github.com/freshet/freshet/internal/service"
)

// Handler upgrades client connections and pumps messages between the
// websocket and the session.
type Handler struct {
	runtime *service.Runtime
	cfg     config.WebSocket
	log     *slog.Logger
}

// NewHandler builds the websocket endpoint handler.
func NewHandler(runtime *service.Runtime, cfg config.WebSocket, log *slog.Logger) *Handler {
	return &Handler{runtime: runtime, cfg: cfg, log: log}
}

// ServeHTTP upgrades the connection. A client reconnecting within the grace
// period passes its previous session ID as the "session" query parameter and
// gets its widget state back.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		h.log.Error("websocket accept failed", "error", err)
		return
	}
	conn.SetReadLimit(h.cfg.ReadLimitBytes)

	sess, resumed := h.attachSession(r.URL.Query().Get("session"))
	if sess == nil {
		_ = conn.Close(websocket.StatusTryAgainLater, "server shutting down")
		return
	}

	ctx, cancel := context.WithCancel(logger.WithSessionID(r.Context(), sess.ID()))
	defer cancel()

	h.log.Info("client connected",
		"session_id", sess.ID(), "resumed", resumed, "remote", r.RemoteAddr)

	go h.writePump(ctx, conn, sess)
	h.readPump(ctx, conn, sess)

	h.runtime.Disconnect(sess.ID())
	_ = conn.Close(websocket.StatusNormalClosure, "")
	h.log.Info("client disconnected", "session_id", sess.ID())
}

func (h *Handler) attachSession(previousID string) (*service.Session, bool) {
	if previousID != "" {
		if sess, ok := h.runtime.ResumeSession(previousID); ok {
			return sess, true
		}
	}
	return h.runtime.CreateSession(), false
}

// readPump decodes interaction messages and routes them to the session. It
// returns when the connection drops.
func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, sess *service.Session) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				h.log.Debug("websocket read failed", "session_id", sess.ID(), "error", err)
			}
			return
		}
		if typ != websocket.MessageBinary {
			continue
		}

		cm, err := DecodeClientMessage(data)
		if err != nil {
			h.log.Warn("bad client message", "session_id", sess.ID(), "error", err)
			continue
		}
		switch cm.Type {
		case ClientRerun:
			sess.RequestRerun(cm.RerunData())
		case ClientStop:
			sess.Stop()
		default:
			h.log.Warn("unknown client message type", "session_id", sess.ID(), "type", cm.Type)
		}
	}
}

// writePump flushes the session queue to the wire whenever it has content,
// and keeps the connection alive with pings.
func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, sess *service.Session) {
	pings := time.NewTicker(h.cfg.PingInterval)
	defer pings.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pings.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		case <-sess.Updates():
			for _, m := range sess.Flush() {
				if err := h.writeMsg(ctx, conn, m); err != nil {
					h.log.Debug("websocket write failed", "session_id", sess.ID(), "error", err)
					return
				}
			}
		}
	}
}

func (h *Handler) writeMsg(ctx context.Context, conn *websocket.Conn, m *msg.ForwardMsg) error {
	data, err := msg.Encode(m)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, h.cfg.WriteTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageBinary, data)
}
