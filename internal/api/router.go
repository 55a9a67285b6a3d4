package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capawawa/growmies-economy/internal/persistence"
	"github.com/capawawa/growmies-economy/internal/services/economy"
)

// NewRouter constructs the router with all endpoints registered.
func NewRouter(mgr *persistence.Manager, svc *economy.Service) http.Handler {
	h := NewHandler(mgr, svc)
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/status", h.StatusHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/guilds/{guildID}/leaderboard", h.LeaderboardHandler)
	r.Get("/guilds/{guildID}/users/{userID}/balance", h.BalanceHandler)
	r.Get("/guilds/{guildID}/users/{userID}/history", h.HistoryHandler)

	return r
}
