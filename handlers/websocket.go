package handlers

import (
	"net/http"

	"copa-dashboard/middleware"
	"copa-dashboard/models"
	"copa-dashboard/services"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub *services.WebSocketHub
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.WebSocketHub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
	}
}

// ListenListings upgrades the connection and subscribes the session to
// listing updates.
func (h *WebSocketHandler) ListenListings(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)
	log.Infof("WebSocket connection request from user %s", userID)

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins for now
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("Error upgrading connection to WebSocket: %v", err)
		return
	}

	h.hub.RegisterClient(conn, userID)
}

// HealthCheck reports websocket hub health.
func (h *WebSocketHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:           "healthy",
		Service:          "copa-dashboard-websocket",
		ConnectedClients: h.hub.GetConnectedClientsCount(),
	})
}
