package syncer

import (
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin for development
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Message types pushed to connected clients.
const (
	MsgTypeSyncStart    = "sync_start"
	MsgTypeSyncPreview  = "sync_preview"
	MsgTypeSyncComplete = "sync_complete"
	MsgTypeSyncError    = "sync_error"
	MsgTypeHeartbeat    = "heartbeat"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	UserID    int         `json:"user_id,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Client represents a WebSocket client
type Client struct {
	conn   *websocket.Conn
	userID int
	send   chan Message
}

// WebSocketManager fans sync lifecycle events out to each user's open
// sockets.
type WebSocketManager struct {
	clients    map[int]map[*Client]bool
	clientsMux sync.RWMutex
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
}

// NewWebSocketManager creates a new WebSocket manager
func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[int]map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the WebSocket manager loop.
func (wsm *WebSocketManager) Run() {
	for {
		select {
		case client := <-wsm.register:
			wsm.registerClient(client)

		case client := <-wsm.unregister:
			wsm.unregisterClient(client)

		case message := <-wsm.broadcast:
			wsm.broadcastMessage(message)
		}
	}
}

func (wsm *WebSocketManager) registerClient(client *Client) {
	wsm.clientsMux.Lock()
	defer wsm.clientsMux.Unlock()

	if wsm.clients[client.userID] == nil {
		wsm.clients[client.userID] = make(map[*Client]bool)
	}
	wsm.clients[client.userID][client] = true

	log.Printf("WebSocket client registered for user %d", client.userID)
}

func (wsm *WebSocketManager) unregisterClient(client *Client) {
	wsm.clientsMux.Lock()
	defer wsm.clientsMux.Unlock()

	if clients, ok := wsm.clients[client.userID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)

			if len(clients) == 0 {
				delete(wsm.clients, client.userID)
			}

			log.Printf("WebSocket client unregistered for user %d", client.userID)
		}
	}
}

// broadcastMessage delivers to the target user, or everyone when the message
// carries no user id.
func (wsm *WebSocketManager) broadcastMessage(message Message) {
	wsm.clientsMux.Lock()
	defer wsm.clientsMux.Unlock()

	deliver := func(clients map[*Client]bool) {
		for client := range clients {
			select {
			case client.send <- message:
			default:
				close(client.send)
				delete(clients, client)
			}
		}
	}

	if message.UserID > 0 {
		if clients, ok := wsm.clients[message.UserID]; ok {
			deliver(clients)
		}
		return
	}
	for _, clients := range wsm.clients {
		deliver(clients)
	}
}

// SendToUser sends a message to a specific user
func (wsm *WebSocketManager) SendToUser(userID int, msgType string, data interface{}) {
	message := Message{
		Type:      msgType,
		UserID:    userID,
		Data:      data,
		Timestamp: time.Now(),
	}

	select {
	case wsm.broadcast <- message:
	default:
		log.Printf("Failed to send message to user %d: broadcast channel full", userID)
	}
}

// NotifySyncStart announces that a connection's sync has begun.
func (wsm *WebSocketManager) NotifySyncStart(userID int, connectionID string) {
	wsm.SendToUser(userID, MsgTypeSyncStart, map[string]interface{}{
		"connection_id": connectionID,
	})
}

// NotifySyncPreview announces that a computed preview is ready to confirm.
func (wsm *WebSocketManager) NotifySyncPreview(userID int, connectionID, previewID string, summary interface{}) {
	wsm.SendToUser(userID, MsgTypeSyncPreview, map[string]interface{}{
		"connection_id": connectionID,
		"preview_id":    previewID,
		"summary":       summary,
	})
}

// NotifySyncComplete pushes the result of an applied sync.
func (wsm *WebSocketManager) NotifySyncComplete(userID int, connectionID string, result interface{}) {
	wsm.SendToUser(userID, MsgTypeSyncComplete, map[string]interface{}{
		"connection_id": connectionID,
		"result":        result,
	})
}

// NotifySyncError pushes a failed sync's error message.
func (wsm *WebSocketManager) NotifySyncError(userID int, connectionID string, errMsg string) {
	wsm.SendToUser(userID, MsgTypeSyncError, map[string]interface{}{
		"connection_id": connectionID,
		"error":         errMsg,
	})
}

// ConnectedUsers returns the number of users with at least one open socket.
func (wsm *WebSocketManager) ConnectedUsers() int {
	wsm.clientsMux.RLock()
	defer wsm.clientsMux.RUnlock()
	return len(wsm.clients)
}

// HandleWebSocket upgrades the request and starts the client pumps. The
// caller is expected to have authenticated the request; userID comes from
// the auth middleware via query fallback.
func (wsm *WebSocketManager) HandleWebSocket(w http.ResponseWriter, r *http.Request, userID int) {
	if userID <= 0 {
		parsed, err := strconv.Atoi(r.URL.Query().Get("user_id"))
		if err != nil || parsed <= 0 {
			http.Error(w, "Missing user_id parameter", http.StatusBadRequest)
			return
		}
		userID = parsed
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		conn:   conn,
		userID: userID,
		send:   make(chan Message, 256),
	}

	wsm.register <- client

	go wsm.writePump(client)
	go wsm.readPump(client)
}

// writePump pumps messages from the hub to the websocket connection
func (wsm *WebSocketManager) writePump(client *Client) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.conn.WriteJSON(message); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps messages from the websocket connection to the hub
func (wsm *WebSocketManager) readPump(client *Client) {
	defer func() {
		wsm.unregister <- client
		client.conn.Close()
	}()

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var message Message
		if err := client.conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if message.Type == MsgTypeHeartbeat {
			response := Message{
				Type:      MsgTypeHeartbeat,
				Data:      map[string]string{"status": "alive"},
				Timestamp: time.Now(),
			}
			select {
			case client.send <- response:
			default:
			}
		}
	}
}
