// Package store persists chat messages and blobs in a single embedded
// Pebble keyspace. Messages live under msg:, blob metadata under
// blob:meta: and blob content under blob:chunk:.
package store

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/logger"
)

// ErrNotFound is returned when a message or blob does not exist.
var ErrNotFound = errors.New("not found")

// seq reduces key collisions when multiple records share the same
// nanosecond timestamp.
var seq uint64

// DB wraps the opened Pebble database shared by the message and blob
// stores.
type DB struct {
	pdb *pebble.DB
}

// Open opens (or creates) a Pebble database at the given path.
func Open(path string) (*DB, error) {
	logger.Log.Info("opening pebble db", zap.String("path", path))

	pdb, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}

	return &DB{pdb: pdb}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.pdb.Close()
}

// newID returns a sortable, unique record identifier. Lexicographic key
// order equals creation order, which is what list endpoints rely on.
func newID(now time.Time) string {
	s := atomic.AddUint64(&seq, 1)
	return fmt.Sprintf("%020d-%06d", now.UnixNano(), s%1000000)
}

// get copies the value for key out of the database, mapping a missing
// key to ErrNotFound.
func (d *DB) get(key []byte) ([]byte, error) {
	val, closer, err := d.pdb.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// prefixUpperBound returns the smallest key greater than every key with
// the given prefix.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
