// utils/http.go
package utils

import (
	"io"
	"net/http"
	"time"
)

// HTTPClient is shared by outbound service-to-service calls.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// DrainClose discards what is left of body and closes it so the connection
// can be reused.
func DrainClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

// ReadErrorBody reads at most 1KB of an error response.
func ReadErrorBody(body io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(body, 1024))
	return string(b)
}
