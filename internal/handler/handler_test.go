package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/coordinator"
	"github.com/parleyhq/parley/internal/hub"
	"github.com/parleyhq/parley/internal/model"
	"github.com/parleyhq/parley/internal/store"
)

type testServer struct {
	srv      *httptest.Server
	messages *store.MessageStore
	blobs    *store.BlobStore
	coord    *coordinator.Coordinator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	messages := store.NewMessageStore(db)
	blobs := store.NewBlobStore(db)

	h := hub.NewHub()
	go h.Run(ctx)

	coord := coordinator.New(h, messages)

	r := chi.NewRouter()
	r.Get("/messages", ListMessages(messages))
	r.Delete("/messages/{id}", DeleteMessage(coord))
	r.Post("/upload", UploadFile(blobs))
	r.Get("/files", ListFiles(blobs))
	r.Get("/files/{filename}", ServeFile(blobs))
	r.Delete("/files/{filename}", DeleteFile(blobs))
	r.Get("/ws", ServeWS(h, coord))
	r.NotFound(ServeRoot())
	r.MethodNotAllowed(ServeRoot())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, messages: messages, blobs: blobs, coord: coord}
}

func (ts *testServer) do(t *testing.T, method, path string, body io.Reader) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, ts.srv.URL+path, body)
	require.NoError(t, err)

	res, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	return res
}

func uploadBody(t *testing.T, filename string, contents []byte) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(contents)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func TestWelcomeFallback(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(t, http.MethodGet, "/definitely/not/a/route", nil)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "Welcome to the chat & file upload server", string(body))
}

func TestListMessagesOrdered(t *testing.T) {
	ts := newTestServer(t)

	first, err := ts.messages.CreateMessage("one", "alice", nil)
	require.NoError(t, err)
	second, err := ts.messages.CreateMessage("two", "bob", nil)
	require.NoError(t, err)

	res := ts.do(t, http.MethodGet, "/messages", nil)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)

	var list []model.Message
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}

func TestDeleteMessageReturns204(t *testing.T) {
	ts := newTestServer(t)

	msg, err := ts.messages.CreateMessage("bye", "alice", nil)
	require.NoError(t, err)

	res := ts.do(t, http.MethodDelete, "/messages/"+msg.ID, nil)
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	list, err := ts.messages.ListMessages()
	require.NoError(t, err)
	assert.Empty(t, list)

	// Idempotent: deleting again still succeeds.
	res = ts.do(t, http.MethodDelete, "/messages/"+msg.ID, nil)
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}

func TestUploadAndDownloadFile(t *testing.T) {
	ts := newTestServer(t)
	contents := []byte("attachment payload")

	body, contentType := uploadBody(t, "note.txt", contents)
	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/upload", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	res, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var uploaded struct {
		Message string `json:"message"`
		FileID  string `json:"fileId"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&uploaded))
	assert.Equal(t, "File uploaded", uploaded.Message)
	assert.NotEmpty(t, uploaded.FileID)

	// Listed.
	res = ts.do(t, http.MethodGet, "/files", nil)
	var files []model.BlobInfo
	require.NoError(t, json.NewDecoder(res.Body).Decode(&files))
	res.Body.Close()
	require.Len(t, files, 1)
	assert.Equal(t, "note.txt", files[0].Filename)

	// Downloadable, byte for byte.
	res = ts.do(t, http.MethodGet, "/files/note.txt", nil)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Disposition"), "attachment")

	got, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, contents, got)
}

func TestUploadWithoutFileReturns400(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("comment", "no file here"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestDownloadMissingFileReturns404(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(t, http.MethodGet, "/files/nope.bin", nil)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestDeleteFileRemovesFirstDuplicate(t *testing.T) {
	ts := newTestServer(t)

	_, err := ts.blobs.Upload(bytes.NewReader([]byte("old")), "dup.txt", "text/plain")
	require.NoError(t, err)
	_, err = ts.blobs.Upload(bytes.NewReader([]byte("new")), "dup.txt", "text/plain")
	require.NoError(t, err)

	res := ts.do(t, http.MethodDelete, "/files/dup.txt", nil)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	// The newer duplicate is still retrievable.
	res = ts.do(t, http.MethodGet, "/files/dup.txt", nil)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	got, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestDeleteMissingFileReturns404(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(t, http.MethodDelete, "/files/ghost.txt", nil)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}
