// Package api exposes the read-side HTTP surface: liveness, persistence
// status, prometheus metrics and guild leaderboards. Balance mutations enter
// through the service layer, not HTTP.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/capawawa/growmies-economy/internal/persistence"
	"github.com/capawawa/growmies-economy/internal/services/economy"
)

// NewServer creates a configured *http.Server for the economy API.
func NewServer(port uint16, mgr *persistence.Manager, svc *economy.Service) *http.Server {
	mux := NewRouter(mgr, svc)

	addr := fmt.Sprintf(":%d", port)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
