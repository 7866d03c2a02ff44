package coordinator

import "github.com/parleyhq/parley/internal/model"

// Typing sets the user's typing flag and tells everyone someone is
// typing. The payload is the derived any-typing boolean, not the user.
func (c *Coordinator) Typing(userID string) {
	c.typingMu.Lock()
	defer c.typingMu.Unlock()

	c.typing[userID] = struct{}{}
	c.emit(model.EvTyping, len(c.typing) > 0)
}

// StopTyping clears the user's flag. Only the transition from non-empty
// to empty is announced, with a payload-less stopTyping event; if other
// users are still typing nothing is published. Flags never expire on
// their own.
func (c *Coordinator) StopTyping(userID string) {
	c.typingMu.Lock()
	defer c.typingMu.Unlock()

	before := len(c.typing)
	delete(c.typing, userID)

	if before > 0 && len(c.typing) == 0 {
		c.emit(model.EvStopTyping, nil)
	}
}
