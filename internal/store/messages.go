package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/model"
	"github.com/parleyhq/parley/internal/telemetry"
)

var msgPrefix = []byte("msg:")

func msgKey(id string) []byte {
	return []byte("msg:" + id)
}

// MessageStore is durable, ordered storage of chat messages.
// Append-only with delete-by-id; list order is creation order.
type MessageStore struct {
	db *DB
}

// NewMessageStore returns a message store over the shared database.
func NewMessageStore(db *DB) *MessageStore {
	return &MessageStore{db: db}
}

// CreateMessage assigns an id and creation time, writes the record
// synchronously and returns the saved message.
func (s *MessageStore) CreateMessage(text, sender string, image *string) (model.Message, error) {
	now := time.Now().UTC()
	msg := model.Message{
		ID:        newID(now),
		Text:      text,
		Sender:    sender,
		Image:     image,
		CreatedAt: now,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return model.Message{}, fmt.Errorf("marshal message: %w", err)
	}

	if err := s.db.pdb.Set(msgKey(msg.ID), data, pebble.Sync); err != nil {
		telemetry.StoreErrors.Inc()
		logger.Log.Error("message write failed", zap.String("id", msg.ID), zap.Error(err))
		return model.Message{}, fmt.Errorf("write message %s: %w", msg.ID, err)
	}

	telemetry.MessagesStored.Inc()
	return msg, nil
}

// ListMessages returns all messages in ascending creation order. The
// sortable id keys make key order creation order.
func (s *MessageStore) ListMessages() ([]model.Message, error) {
	iter, err := s.db.pdb.NewIter(&pebble.IterOptions{
		LowerBound: msgPrefix,
		UpperBound: prefixUpperBound(msgPrefix),
	})
	if err != nil {
		return nil, fmt.Errorf("message iterator: %w", err)
	}
	defer iter.Close()

	out := []model.Message{}
	for iter.First(); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), msgPrefix) {
			break
		}

		var msg model.Message
		if err := json.Unmarshal(iter.Value(), &msg); err != nil {
			logger.Log.Warn("skipping undecodable message record",
				zap.ByteString("key", iter.Key()), zap.Error(err))
			continue
		}
		out = append(out, msg)
	}

	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("message scan: %w", err)
	}
	return out, nil
}

// DeleteMessage removes the record entirely. Deleting an absent id is
// not an error; the caller cannot distinguish the two outcomes.
func (s *MessageStore) DeleteMessage(id string) error {
	if err := s.db.pdb.Delete(msgKey(id), pebble.Sync); err != nil {
		telemetry.StoreErrors.Inc()
		return fmt.Errorf("delete message %s: %w", id, err)
	}

	telemetry.MessagesDeleted.Inc()
	return nil
}
