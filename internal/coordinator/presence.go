package coordinator

import (
	"time"

	"github.com/parleyhq/parley/internal/model"
)

// lastSeen values are human-readable clock strings, matching the wire
// format clients already render.
const lastSeenLayout = "3:04:05 PM"

// Connect counts a freshly registered connection and announces the new
// online total to everyone.
func (c *Coordinator) Connect(connID string) {
	c.presenceMu.Lock()
	defer c.presenceMu.Unlock()

	c.onlineCount++
	c.emit(model.EvUpdateOnlineUsers, c.onlineCount)
}

// Announce records the connection's role announcement: last-seen is
// stamped, everyone but the originator learns the role connected, and
// everyone receives the full last-seen map.
func (c *Coordinator) Announce(connID, role string) {
	c.presenceMu.Lock()
	defer c.presenceMu.Unlock()

	c.lastSeen[connID] = time.Now().Format(lastSeenLayout)
	c.emitExcept(model.EvUserStatus, role+" connected", connID)
	c.emit(model.EvLastSeen, copyMap(c.lastSeen))
}

// UserDisconnected relays a client's explicit goodbye. Status only; the
// count changes when the connection actually drops.
func (c *Coordinator) UserDisconnected(connID, role string) {
	c.emitExcept(model.EvUserStatus, role+" disconnected", connID)
}

// Disconnect counts the connection out and re-publishes presence state.
// Entries in lastSeen are never removed; the map grows with churn.
func (c *Coordinator) Disconnect(connID string) {
	c.presenceMu.Lock()
	defer c.presenceMu.Unlock()

	c.onlineCount--
	c.emit(model.EvUpdateOnlineUsers, c.onlineCount)
	c.emitExcept(model.EvUserStatus, "A user disconnected", connID)

	c.lastSeen[connID] = time.Now().Format(lastSeenLayout)
	c.emit(model.EvLastSeen, copyMap(c.lastSeen))
}

// OnlineCount reports the tracked number of open connections.
func (c *Coordinator) OnlineCount() int {
	c.presenceMu.Lock()
	defer c.presenceMu.Unlock()
	return c.onlineCount
}

// copyMap snapshots the map so the marshalled broadcast cannot race
// later mutation.
func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
