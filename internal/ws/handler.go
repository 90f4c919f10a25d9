package ws

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/custodia-labs/safevault-backend/internal/pkg/middleware"
	"github.com/custodia-labs/safevault-backend/internal/pkg/ws"
	"github.com/rs/zerolog/log"
)

type wsHandler struct {
	notificationHub *ws.WebSocketNotificationHub
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func RegisterRoutes(rg *gin.RouterGroup) {
	handler := wsHandler{
		notificationHub: ws.NewNotificationHub(),
	}

	routes := rg.Group("/ws")
	routes.GET("/deployments/:ownerId", middleware.VerifyAuthToken, handler.serveWs)
}

// serveWs streams deployment lifecycle events for one owner until the client
// hangs up.
func (wsh *wsHandler) serveWs(c *gin.Context) {
	topic := fmt.Sprintf("deployments/%s", c.Param("ownerId"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Cannot upgrade ws connection")
		return
	}
	defer wsh.notificationHub.UnregisterListener(topic, conn)

	wsh.notificationHub.RegisterListener(topic, conn)

	for {
		var buffer any
		if err := conn.ReadJSON(&buffer); err != nil {
			log.Warn().Err(err).Msg("Error reading ws message")
			return
		}
	}
}
