package coordinator

import (
	"fmt"

	"github.com/parleyhq/parley/internal/model"
)

// SendMessage sanitizes and durably stores a chat message, then
// broadcasts the saved record to every connection including the
// sender. The broadcast never precedes the durable write: a client
// that sees the message event can already fetch the record. A failed
// write broadcasts nothing.
func (c *Coordinator) SendMessage(text, sender string, image *string) (model.Message, error) {
	text = c.sanitize.Sanitize(text)

	saved, err := c.store.CreateMessage(text, sender, image)
	if err != nil {
		return model.Message{}, fmt.Errorf("store message: %w", err)
	}

	c.emit(model.EvMessage, saved)
	return saved, nil
}

// MarkRead relays read receipts. Nothing is persisted; readMessage and
// seenMessage go out back to back, in that order, every time.
func (c *Coordinator) MarkRead(messageID, userID string) {
	p := model.ReadPayload{MessageID: messageID, UserID: userID}
	c.emit(model.EvReadMessage, p)
	c.emit(model.EvSeenMessage, p)
}

// DeleteMessage durably deletes the record and broadcasts the deletion.
// The store treats an absent id as deleted, so the broadcast fires for
// ids that never existed too.
func (c *Coordinator) DeleteMessage(id string) error {
	if err := c.store.DeleteMessage(id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	c.emit(model.EvDeleteMessage, id)
	return nil
}
