package ws

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/crisha-app/crisha-backend/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // tighten for production deployments
	},
}

func sendJSON(conn *websocket.Conn, data interface{}) {
	if err := conn.WriteJSON(data); err != nil {
		log.Println("ws write error:", err)
	}
}

// HandleDocumentWebSocket subscribes a client to one document's status
// updates. The JWT rides in the query string because browsers cannot
// set headers on websocket upgrades.
func HandleDocumentWebSocket(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		docID := c.Param("id")
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := utils.VerifyToken(token, jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Println("ws upgrade failed:", err)
			return
		}
		log.Printf("document ws connected: doc=%s user=%s", docID, claims.UserID)

		H.Register(docID, conn)
		sendJSON(conn, gin.H{"type": "connected", "document_id": docID})
	}
}

// HandleGlobalWebSocket subscribes a client to document list change
// signals.
func HandleGlobalWebSocket(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := utils.VerifyToken(token, jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Println("ws upgrade failed:", err)
			return
		}
		log.Printf("global ws connected: user=%s", claims.UserID)

		H.RegisterGlobal(conn)
		sendJSON(conn, gin.H{"type": "connected"})
	}
}
