package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"dryer-fleet/monitor/internal/domain"
)

// Hub maintains the set of connected dashboard clients and fans alert events
// out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client: drop it rather than stall the hub.
					close(client.send)
					delete(h.clients, client)
				}
			}

		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		}
	}
}

// AlertCreated implements the lifecycle's Notifier: pushes the new alert to
// every connected dashboard.
func (h *Hub) AlertCreated(_ context.Context, device *domain.Device, alert *domain.Alert) {
	message, err := json.Marshal(map[string]interface{}{
		"type": "alert",
		"payload": map[string]interface{}{
			"dryer_id":   device.DryerID,
			"alert_id":   alert.ID,
			"alert_type": string(alert.Type),
			"severity":   string(alert.Severity),
			"message":    alert.Message,
			"created_at": alert.CreatedAt.Unix(),
		},
	})
	if err != nil {
		log.Printf("failed to marshal alert for broadcast: %v", err)
		return
	}
	select {
	case h.broadcast <- message:
	default:
		// Hub backlogged; alerts are still in the store and Redis channel.
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request into a hub subscription.
func ServeWS(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}
		client := &Client{
			hub:  hub,
			conn: conn,
			send: make(chan []byte, 32),
		}
		hub.register <- client
		go client.writePump()
		go client.readPump()
	}
}
