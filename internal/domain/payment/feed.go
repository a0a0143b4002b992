package payment

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/starpro23/MjengoLink-Constructors/internal/middleware"
	"github.com/starpro23/MjengoLink-Constructors/internal/pkg/response"
)

// StatusEvent is pushed to a payer when one of their payments is reconciled
type StatusEvent struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

type feedConn struct {
	conn *websocket.Conn
	send chan StatusEvent
}

// Feed delivers payment status events to connected clients, replacing
// client-side status polling
type Feed struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]map[*feedConn]bool

	upgrader websocket.Upgrader
}

func NewFeed() *Feed {
	return &Feed{
		conns: make(map[uuid.UUID]map[*feedConn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and streams status events for the
// authenticated account
func (f *Feed) ServeWS(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	ws, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &feedConn{conn: ws, send: make(chan StatusEvent, 16)}
	f.register(accountID, c)
	log.Debug().Str("account_id", accountID.String()).Msg("Payment feed connected")

	go f.writeLoop(c)
	f.readLoop(accountID, c)
}

func (f *Feed) register(accountID uuid.UUID, c *feedConn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conns[accountID] == nil {
		f.conns[accountID] = make(map[*feedConn]bool)
	}
	f.conns[accountID][c] = true
}

func (f *Feed) unregister(accountID uuid.UUID, c *feedConn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if set, ok := f.conns[accountID]; ok {
		if set[c] {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(f.conns, accountID)
		}
	}
}

// readLoop drains client frames and detects disconnect
func (f *Feed) readLoop(accountID uuid.UUID, c *feedConn) {
	defer func() {
		f.unregister(accountID, c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *Feed) writeLoop(c *feedConn) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast delivers an event to every connection of the account. Slow
// consumers are dropped rather than blocking reconciliation.
func (f *Feed) Broadcast(accountID uuid.UUID, ev StatusEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for c := range f.conns[accountID] {
		select {
		case c.send <- ev:
		default:
			log.Warn().Str("account_id", accountID.String()).Msg("Payment feed consumer too slow, dropping event")
		}
	}
}
