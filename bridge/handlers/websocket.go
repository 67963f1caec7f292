package handlers

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Vibecoders-Team/dfsp-sub000/ledger"
	"github.com/Vibecoders-Team/dfsp-sub000/relay"
)

// ConnectionManager fans grant lifecycle events out to websocket
// subscribers. A subscriber watches one address (as grantor or grantee); an
// empty filter receives every event.
type ConnectionManager struct {
	mu    sync.RWMutex
	rooms map[common.Address]map[*websocket.Conn]bool
	all   map[*websocket.Conn]bool
	log   *zap.Logger
}

// NewConnectionManager creates an empty manager.
func NewConnectionManager(logger *zap.Logger) *ConnectionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionManager{
		rooms: make(map[common.Address]map[*websocket.Conn]bool),
		all:   make(map[*websocket.Conn]bool),
		log:   logger,
	}
}

// Add registers a connection for an address filter. The zero address
// subscribes to everything.
func (cm *ConnectionManager) Add(filter common.Address, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if filter == (common.Address{}) {
		cm.all[conn] = true
		return
	}
	if cm.rooms[filter] == nil {
		cm.rooms[filter] = make(map[*websocket.Conn]bool)
	}
	cm.rooms[filter][conn] = true
}

// Remove drops a connection from every room.
func (cm *ConnectionManager) Remove(conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.all, conn)
	for addr, room := range cm.rooms {
		delete(room, conn)
		if len(room) == 0 {
			delete(cm.rooms, addr)
		}
	}
}

// Broadcast delivers an event to the firehose and to the grantor's and
// grantee's rooms. Write failures evict the connection.
func (cm *ConnectionManager) Broadcast(e ledger.Event) {
	cm.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(cm.all))
	for conn := range cm.all {
		conns = append(conns, conn)
	}
	for _, addr := range []common.Address{e.Grantor, e.Grantee} {
		for conn := range cm.rooms[addr] {
			conns = append(conns, conn)
		}
	}
	cm.mu.RUnlock()

	seen := make(map[*websocket.Conn]bool, len(conns))
	for _, conn := range conns {
		if seen[conn] {
			continue
		}
		seen[conn] = true
		if err := conn.WriteJSON(e); err != nil {
			cm.log.Debug("websocket write failed, evicting", zap.Error(err))
			cm.Remove(conn)
			conn.Close()
		}
	}
}

// EventsHandler upgrades the connection and subscribes it to grant events,
// optionally filtered by the "address" query parameter.
func EventsHandler(upgrader *websocket.Upgrader, cm *ConnectionManager) echo.HandlerFunc {
	return func(c echo.Context) error {
		var filter common.Address
		if raw := c.QueryParam("address"); raw != "" {
			if !common.IsHexAddress(raw) {
				return writeError(c, relay.ErrBadRequest.Wrap("invalid address filter"))
			}
			filter = common.HexToAddress(raw)
		}

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}
		cm.Add(filter, conn)

		// Drain the read side to notice the peer going away.
		go func() {
			defer func() {
				cm.Remove(conn)
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		return nil
	}
}
