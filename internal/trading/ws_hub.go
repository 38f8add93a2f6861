// WebSocket hub for streaming price updates and trade
// notifications to subscribed clients.

package trading

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hafeefas/investment-simulator/internal/metrics"
	"github.com/hafeefas/investment-simulator/internal/symbol"
)

// Message is a JSON message sent to WebSocket clients.
type Message struct {
	Type      string `json:"type"` // "price_update" or "trade_executed"
	Symbol    string `json:"symbol"`
	Price     string `json:"price,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Quantity  int64  `json:"quantity,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

type wsClient struct {
	conn    *websocket.Conn
	symbols map[string]bool // empty set = all symbols
}

type outbound struct {
	symbol string
	data   []byte
}

// Hub manages WebSocket connections and routes messages to the clients
// subscribed to each symbol.
type Hub struct {
	clients    map[*wsClient]bool
	broadcast  chan outbound
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
}

// Run starts the hub's main event loop. Must be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))
			slog.Info("ws client connected", "total", total, "symbols", len(c.symbols))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if len(c.symbols) > 0 && !c.symbols[msg.symbol] {
					continue
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
					c.conn.Close()
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast routes a message to the clients subscribed to its symbol.
// Drops the message if the buffer is full rather than blocking callers.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- outbound{symbol: msg.Symbol, data: data}:
	default:
	}
}

// Symbols returns the union of all client subscriptions. The streamer
// fetches quotes only for symbols someone is watching.
func (h *Hub) Symbols() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := make(map[string]bool)
	for c := range h.clients {
		for sym := range c.symbols {
			set[sym] = true
		}
	}
	out := make([]string, 0, len(set))
	for sym := range set {
		out = append(out, sym)
	}
	return out
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
// Clients select symbols with ?symbols=AAPL,MSFT; no parameter means all.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	symbols := make(map[string]bool)
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			sym, err := symbol.Normalize(part)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			symbols[sym] = true
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	c := &wsClient{conn: conn, symbols: symbols}
	h.register <- c

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer func() { h.unregister <- c }()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	// Ping ticker to keep connection alive through proxies.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			h.mu.RLock()
			_, ok := h.clients[c]
			h.mu.RUnlock()
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}()
}
