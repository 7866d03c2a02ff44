package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/store"
)

// UploadFile accepts a multipart upload with a single "file" field and
// relays the part straight into the blob store, so payload size is
// bounded by storage, not memory.
func UploadFile(blobs *store.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mr, err := r.MultipartReader()
		if err != nil {
			respondMessage(w, http.StatusBadRequest, "No file uploaded")
			return
		}

		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				respondMessage(w, http.StatusBadRequest, "No file uploaded")
				return
			}

			if part.FormName() != "file" {
				part.Close()
				continue
			}

			contentType := part.Header.Get("Content-Type")
			if contentType == "" {
				contentType = "application/octet-stream"
			}

			info, err := blobs.Upload(part, part.FileName(), contentType)
			part.Close()
			if err != nil {
				logger.Log.Error("upload failed",
					zap.String("filename", part.FileName()), zap.Error(err))
				respondMessage(w, http.StatusInternalServerError, "Error uploading file")
				return
			}

			respondJSON(w, http.StatusOK, map[string]string{
				"message": "File uploaded",
				"fileId":  info.ID,
			})
			return
		}

		respondMessage(w, http.StatusBadRequest, "No file uploaded")
	}
}

// ListFiles serves metadata for every stored blob.
func ListFiles(blobs *store.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := blobs.List()
		if err != nil {
			logger.Log.Error("failed to list blobs", zap.Error(err))
			respondMessage(w, http.StatusInternalServerError, "Error fetching files")
			return
		}

		respondJSON(w, http.StatusOK, list)
	}
}

// ServeFile streams the oldest blob with the given filename. Filenames
// are not unique; first match wins.
func ServeFile(blobs *store.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")

		matches, err := blobs.FindByFilename(filename)
		if err != nil {
			logger.Log.Error("failed to look up blob",
				zap.String("filename", filename), zap.Error(err))
			respondMessage(w, http.StatusInternalServerError, "Error fetching file")
			return
		}
		if len(matches) == 0 {
			respondMessage(w, http.StatusNotFound, "File not found")
			return
		}

		file := matches[0]

		rc, err := blobs.Download(file.ID)
		if err != nil {
			logger.Log.Error("failed to open blob",
				zap.String("id", file.ID), zap.Error(err))
			respondMessage(w, http.StatusInternalServerError, "Error fetching file")
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", file.ContentType)
		w.Header().Set("Content-Disposition",
			mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}))
		w.Header().Set("Content-Length", fmt.Sprintf("%d", file.Length))

		if _, err := io.Copy(w, rc); err != nil {
			// Headers are already gone; nothing to do but log.
			logger.Log.Warn("blob stream interrupted",
				zap.String("id", file.ID), zap.Error(err))
		}
	}
}

// DeleteFile removes the oldest blob with the given filename. Other
// blobs sharing the name stay retrievable.
func DeleteFile(blobs *store.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")

		matches, err := blobs.FindByFilename(filename)
		if err != nil {
			logger.Log.Error("failed to look up blob",
				zap.String("filename", filename), zap.Error(err))
			respondMessage(w, http.StatusInternalServerError, "Error deleting file")
			return
		}
		if len(matches) == 0 {
			respondMessage(w, http.StatusNotFound, "File not found")
			return
		}

		if err := blobs.Delete(matches[0].ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondMessage(w, http.StatusNotFound, "File not found")
				return
			}
			logger.Log.Error("failed to delete blob",
				zap.String("id", matches[0].ID), zap.Error(err))
			respondMessage(w, http.StatusInternalServerError, "Error deleting file")
			return
		}

		respondMessage(w, http.StatusOK, "File deleted")
	}
}
