package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/model"
	"github.com/parleyhq/parley/internal/telemetry"
)

// chunkSize matches the GridFS default so multi-chunk behavior kicks in
// at the same payload sizes the original deployment saw.
const chunkSize = 255 * 1024

var blobMetaPrefix = []byte("blob:meta:")

func blobMetaKey(id string) []byte {
	return []byte("blob:meta:" + id)
}

func blobChunkKey(id string, n int) []byte {
	return []byte(fmt.Sprintf("blob:chunk:%s:%08d", id, n))
}

func blobChunkPrefix(id string) []byte {
	return []byte("blob:chunk:" + id + ":")
}

// BlobStore is durable storage of named binary objects. Content is
// chunked; the metadata record is written last, so a partially written
// blob is never visible to readers.
type BlobStore struct {
	db *DB
}

// NewBlobStore returns a blob store over the shared database.
func NewBlobStore(db *DB) *BlobStore {
	return &BlobStore{db: db}
}

// Upload relays the reader into chunk records and materializes the blob
// by writing its metadata once the stream is fully consumed. The whole
// payload is never held in memory. On failure any written chunks are
// removed best-effort and the blob does not exist.
func (s *BlobStore) Upload(r io.Reader, filename, contentType string) (model.BlobInfo, error) {
	now := time.Now().UTC()
	id := newID(now)

	var length int64
	buf := make([]byte, chunkSize)

	for n := 0; ; n++ {
		read, err := io.ReadFull(r, buf)
		if read > 0 {
			if werr := s.db.pdb.Set(blobChunkKey(id, n), buf[:read], pebble.NoSync); werr != nil {
				telemetry.StoreErrors.Inc()
				s.dropChunks(id)
				return model.BlobInfo{}, fmt.Errorf("write blob chunk %d: %w", n, werr)
			}
			length += int64(read)
		}

		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			s.dropChunks(id)
			return model.BlobInfo{}, fmt.Errorf("read upload stream: %w", err)
		}
	}

	info := model.BlobInfo{
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		Length:      length,
		UploadedAt:  now,
	}

	data, err := json.Marshal(info)
	if err != nil {
		s.dropChunks(id)
		return model.BlobInfo{}, fmt.Errorf("marshal blob metadata: %w", err)
	}

	// Sync here also persists the NoSync chunk writes above.
	if err := s.db.pdb.Set(blobMetaKey(id), data, pebble.Sync); err != nil {
		telemetry.StoreErrors.Inc()
		s.dropChunks(id)
		return model.BlobInfo{}, fmt.Errorf("write blob metadata: %w", err)
	}

	telemetry.BlobUploadBytes.Add(float64(length))
	logger.Log.Info("blob stored",
		zap.String("id", id),
		zap.String("filename", filename),
		zap.Int64("length", length))

	return info, nil
}

// List returns metadata for every stored blob in upload order.
func (s *BlobStore) List() ([]model.BlobInfo, error) {
	iter, err := s.db.pdb.NewIter(&pebble.IterOptions{
		LowerBound: blobMetaPrefix,
		UpperBound: prefixUpperBound(blobMetaPrefix),
	})
	if err != nil {
		return nil, fmt.Errorf("blob iterator: %w", err)
	}
	defer iter.Close()

	out := []model.BlobInfo{}
	for iter.First(); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), blobMetaPrefix) {
			break
		}

		var info model.BlobInfo
		if err := json.Unmarshal(iter.Value(), &info); err != nil {
			logger.Log.Warn("skipping undecodable blob record",
				zap.ByteString("key", iter.Key()), zap.Error(err))
			continue
		}
		out = append(out, info)
	}

	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("blob scan: %w", err)
	}
	return out, nil
}

// FindByFilename returns all blobs with the given filename, oldest
// first. Filenames are not unique; callers wanting a single blob take
// the first match.
func (s *BlobStore) FindByFilename(filename string) ([]model.BlobInfo, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	out := []model.BlobInfo{}
	for _, info := range all {
		if info.Filename == filename {
			out = append(out, info)
		}
	}
	return out, nil
}

// Stat returns metadata for a single blob.
func (s *BlobStore) Stat(id string) (model.BlobInfo, error) {
	data, err := s.db.get(blobMetaKey(id))
	if err != nil {
		return model.BlobInfo{}, err
	}

	var info model.BlobInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return model.BlobInfo{}, fmt.Errorf("decode blob metadata: %w", err)
	}
	return info, nil
}

// Download returns a lazy forward-only reader over the blob's chunks.
// It fails with ErrNotFound when no blob exists for the id.
func (s *BlobStore) Download(id string) (io.ReadCloser, error) {
	info, err := s.Stat(id)
	if err != nil {
		return nil, err
	}

	return &blobReader{
		store:     s,
		id:        id,
		remaining: info.Length,
	}, nil
}

// Delete removes the blob's metadata and chunks. The metadata goes
// first so the blob disappears atomically from readers.
func (s *BlobStore) Delete(id string) error {
	if _, err := s.Stat(id); err != nil {
		return err
	}

	if err := s.db.pdb.Delete(blobMetaKey(id), pebble.Sync); err != nil {
		telemetry.StoreErrors.Inc()
		return fmt.Errorf("delete blob metadata %s: %w", id, err)
	}

	s.dropChunks(id)
	return nil
}

// dropChunks removes all chunk records for id. Best-effort; orphaned
// chunks without metadata are unreachable either way.
func (s *BlobStore) dropChunks(id string) {
	prefix := blobChunkPrefix(id)
	err := s.db.pdb.DeleteRange(prefix, prefixUpperBound(prefix), pebble.Sync)
	if err != nil {
		logger.Log.Warn("failed to drop blob chunks", zap.String("id", id), zap.Error(err))
	}
}

// blobReader streams a blob chunk by chunk. It is forward-only and not
// restartable mid-stream; callers restart from Download.
type blobReader struct {
	store     *BlobStore
	id        string
	chunk     int
	buf       []byte
	remaining int64
}

func (r *blobReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		if r.remaining <= 0 {
			return 0, io.EOF
		}

		data, err := r.store.db.get(blobChunkKey(r.id, r.chunk))
		if err == ErrNotFound {
			// Metadata promised more bytes; the blob was deleted
			// underneath us.
			return 0, io.ErrUnexpectedEOF
		}
		if err != nil {
			return 0, fmt.Errorf("read blob chunk %d: %w", r.chunk, err)
		}

		r.buf = data
		r.chunk++
		r.remaining -= int64(len(data))
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *blobReader) Close() error {
	r.buf = nil
	r.remaining = 0
	return nil
}
