package handler

import "net/http"

const welcome = "Welcome to the chat & file upload server"

// ServeRoot answers every unrouted path with the welcome string.
func ServeRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(welcome))
	}
}
