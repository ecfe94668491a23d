// Package httpserver configures the process's HTTP listener.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server for the given handler. ReadHeaderTimeout bounds
// slow-header clients; IdleTimeout reaps keep-alive connections that
// session-holding frontends tend to leave open.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
