package api

import (
	"net/http"

	"github.com/bio065/biobot/internal/middleware"
	"github.com/bio065/biobot/internal/service"
	"github.com/bio065/biobot/pkg/auth"
	"github.com/bio065/biobot/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type eventRoutes struct {
	hub *service.Hub
}

// NewEventRoutes exposes the registration event stream for the admin
// dashboard.
func NewEventRoutes(handler *gin.RouterGroup, hub *service.Hub, a *auth.TelegramAuth, adm *middleware.Authorization) {
	r := &eventRoutes{hub: hub}
	handler.GET("/ws/events", a.TelegramAuthMiddleware(), adm.AdminOnly(), r.StreamEvents)
}

func (r *eventRoutes) StreamEvents(c *gin.Context) {
	log := logger.Logger()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := r.hub.Subscribe()
	defer cancel()

	// Drain the client so close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				log.Error("failed to marshal event", zap.Error(err))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
