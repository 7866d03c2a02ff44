package model

import (
	"encoding/json"
	"fmt"
)

// Client-to-server event names.
const (
	EvUserConnected    = "userConnected"
	EvSendMessage      = "sendMessage"
	EvMessageRead      = "messageRead"
	EvTyping           = "typing"
	EvStopTyping       = "stopTyping"
	EvMessageReaction  = "messageReaction"
	EvUserDisconnected = "userDisconnected"
)

// Server-to-client event names.
const (
	EvUpdateOnlineUsers = "updateOnlineUsers"
	EvUserStatus        = "userStatus"
	EvLastSeen          = "lastSeen"
	EvMessage           = "message"
	EvReadMessage       = "readMessage"
	EvSeenMessage       = "seenMessage"
	EvDeleteMessage     = "deleteMessage"
)

// Event is the wire envelope for both directions of the websocket
// channel. Data is left raw so each handler can decode its own payload.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SendMessagePayload is the body of a sendMessage event.
type SendMessagePayload struct {
	Text   string  `json:"text"`
	Sender string  `json:"sender"`
	Image  *string `json:"image"`
}

// ReadPayload is the body of messageRead, readMessage and seenMessage
// events.
type ReadPayload struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

// ReactionPayload is the body of a messageReaction event. It carries a
// single reaction only; clients accumulate tallies themselves.
type ReactionPayload struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// NewEvent marshals an envelope with the given payload. A nil payload
// produces an event with no data field, which is how payload-less
// events like stopTyping travel.
func NewEvent(name string, data any) ([]byte, error) {
	ev := Event{Name: name}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", name, err)
		}
		ev.Data = raw
	}

	p, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", name, err)
	}

	return p, nil
}
