package coordinator

import "github.com/parleyhq/parley/internal/model"

// React appends the emoji to the message's reaction sequence and
// broadcasts just the new reaction. No deduplication, no cap, and no
// check that the message exists; clients accumulate tallies themselves.
func (c *Coordinator) React(messageID, emoji string) {
	c.reactionsMu.Lock()
	defer c.reactionsMu.Unlock()

	c.reactions[messageID] = append(c.reactions[messageID], emoji)
	c.emit(model.EvMessageReaction, model.ReactionPayload{MessageID: messageID, Emoji: emoji})
}

// Reactions returns the ordered reaction sequence recorded for a
// message.
func (c *Coordinator) Reactions(messageID string) []string {
	c.reactionsMu.Lock()
	defer c.reactionsMu.Unlock()

	out := make([]string, len(c.reactions[messageID]))
	copy(out, c.reactions[messageID])
	return out
}
