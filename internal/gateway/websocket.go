package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/auth"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/wizard"
)

var wsTracer = otel.Tracer("wizard-stream")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamEvent is one message on the wizard stream.
type StreamEvent struct {
	Type     string          `json:"type"`
	Snapshot wizard.Snapshot `json:"snapshot"`
}

// StreamWizard handles WebSocket /api/ws/wizards/:kind
// @Summary Stream wizard state
// @Description WebSocket endpoint that pushes a snapshot after every command on the wizard
// @Tags wizards
// @Param kind path string true "Wizard kind"
// @Param token query string false "JWT, for clients that cannot set headers"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /ws/wizards/{kind} [get]
func (h *Handler) StreamWizard(c *gin.Context) {
	ctx, span := wsTracer.Start(c.Request.Context(), "wizard_stream.open")
	userID := auth.UserID(c)
	kind := c.Param("kind")
	span.SetAttributes(attribute.String("wizard", kind), attribute.String("user.id", userID))

	session, _, err := h.sessions.Get(ctx, userID, kind)
	if err != nil {
		span.RecordError(err)
		span.End()
		h.respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		span.End()
		h.logger.Warn("failed to upgrade connection", zap.String("wizard", kind), zap.Error(err))
		return
	}
	span.End()
	defer conn.Close()

	updates, cancel := h.hub.Subscribe(userID, kind)
	defer cancel()
	h.logger.Info("wizard stream opened", zap.String("wizard", kind), zap.String("user_id", userID))

	// The reader only handles control frames; it ends the stream when the
	// client goes away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeEvent(conn, StreamEvent{Type: "snapshot", Snapshot: session.Snapshot()}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			h.logger.Info("wizard stream closed", zap.String("wizard", kind), zap.String("user_id", userID))
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(conn, StreamEvent{Type: "snapshot", Snapshot: snap}); err != nil {
				h.logger.Debug("stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev StreamEvent) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}
