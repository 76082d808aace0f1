package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. Cashier stations sit on the local network, so
// timeouts are tight; anything slower than this indicates a stuck client.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
