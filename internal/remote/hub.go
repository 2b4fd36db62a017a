// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package remote

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/models"
)

const writeTimeout = 5 * time.Second

// Hub tracks connected notification clients and broadcasts zone-change
// pings. Notifications are best-effort: a client that misses one still
// converges on its next interval sync, so failed writes just drop the
// connection.
type Hub struct {
	mu      sync.Mutex
	clients map[*hubClient]bool
	logger  *logger.Logger
}

type hubClient struct {
	conn     *websocket.Conn
	clientID string
	sendMu   sync.Mutex
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{clients: make(map[*hubClient]bool), logger: log}
}

// Register adds a connection and blocks reading it until it closes.
// The read loop exists only to observe disconnects; clients never send.
func (h *Hub) Register(conn *websocket.Conn, clientID string) {
	client := &hubClient{conn: conn, clientID: clientID}

	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().Str("client_id", clientID).Int("connected", total).Msg("notification client connected")

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(client)
}

func (h *Hub) remove(client *hubClient) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	_ = client.conn.Close()
	h.logger.Debug().Str("client_id", client.clientID).Msg("notification client disconnected")
}

// Broadcast pings every connected client about a zone change. originClientID
// is excluded: the pushing client already knows.
func (h *Hub) Broadcast(zone models.ZoneID, originClientID string) {
	note := models.ZoneNotification{ZoneID: zone}

	h.mu.Lock()
	targets := make([]*hubClient, 0, len(h.clients))
	for client := range h.clients {
		if client.clientID != originClientID {
			targets = append(targets, client)
		}
	}
	h.mu.Unlock()

	for _, client := range targets {
		client.sendMu.Lock()
		_ = client.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := client.conn.WriteJSON(note)
		client.sendMu.Unlock()
		if err != nil {
			h.remove(client)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*hubClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*hubClient]bool)
	h.mu.Unlock()

	for _, client := range clients {
		_ = client.conn.Close()
	}
}
