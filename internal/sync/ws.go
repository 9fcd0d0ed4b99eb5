package sync

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin policy is enforced by the CORS layer in front of the router
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler serves /ws?user_id=. allow gates the subscription, for example
// an auth guard comparing the token subject with user_id.
func WSHandler(hub *Hub, allow func(c *gin.Context, userID string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.Query("user_id"))
		if userID == "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "user_id required"})
			return
		}
		if allow != nil && !allow(c, userID) {
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.WithError(err).Debug("websocket upgrade failed")
			return
		}

		// welcome goes out before Add so it never races a Publish write
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"welcome","transport":"websocket"}`))

		hub.Add(userID, ws)
		hub.log.WithField("user_id", userID).Info("feed client connected")

		// the feed is one-way; reads only detect the close
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.Remove(userID, ws)
		hub.log.WithField("user_id", userID).Info("feed client disconnected")
	}
}
