// Package respond writes the JSON bodies shared by the API handlers and
// middleware.
package respond

import (
	"encoding/json"
	"net/http"
)

const contentType = "application/json; charset=utf-8"

// JSON writes v with status. v is encoded before any header goes out so an
// encoding failure can still become a 500.
func JSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"internal server error"}`)
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// Error writes {"error": msg}.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"error": msg})
}
