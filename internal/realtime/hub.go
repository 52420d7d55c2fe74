package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/sheetalert/internal/contracts"
	"github.com/wonny/sheetalert/pkg/logger"
)

const (
	// Ping/Pong settings
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	sendBuffer = 16
)

// Hub fans events out to the websocket connections of each user
// ⭐ SSOT: 브라우저 웹소켓 연결은 이 허브에서만 관리
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	logger  *logger.Logger
}

type client struct {
	hub    *Hub
	userID string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

// NewHub creates an empty hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		logger:  log,
	}
}

// Attach registers an upgraded connection for userID and starts its pumps.
// It returns immediately; the connection is dropped when the peer goes away.
func (h *Hub) Attach(conn *websocket.Conn, userID string) {
	c := &client{
		hub:    h,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	h.mu.Unlock()

	h.logger.WithField("user_id", userID).Debug("Websocket client attached")

	go c.writePump()
	go c.readPump()
}

// Publish sends ev to every connection of the given users and returns the
// number of connections reached. Slow connections are dropped.
func (h *Hub) Publish(userIDs []string, ev Event) int {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode realtime event")
		return 0
	}

	var slow []*client
	reached := 0

	h.mu.RLock()
	for _, userID := range userIDs {
		for c := range h.clients[userID] {
			select {
			case c.send <- data:
				reached++
			default:
				slow = append(slow, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.WithField("user_id", c.userID).Warn("Dropping slow websocket client")
		c.close()
	}
	return reached
}

// SheetUpdated notifies the sheet's owners that new prices were written
func (h *Hub) SheetUpdated(ctx context.Context, sheet *contracts.Sheet, prices []*float64) {
	h.Publish(sheet.UserIDs, SheetUpdatedEvent(sheet, prices))
}

// Connections returns the number of attached connections
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Close drops every connection
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		c.close()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.clients[c.userID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

// close detaches the client; safe to call more than once
func (c *client) close() {
	c.once.Do(func() {
		c.hub.remove(c)
		close(c.send)
	})
}

// readPump discards inbound messages and detects disconnects
func (c *client) readPump() {
	defer func() {
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.WithError(err).Debug("Websocket read failed")
			}
			return
		}
	}
}

// writePump owns all writes to the connection
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		}
	}
}
