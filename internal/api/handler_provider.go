package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/capawawa/growmies-economy/internal/persistence"
	"github.com/capawawa/growmies-economy/internal/repos/accounts"
	"github.com/capawawa/growmies-economy/internal/services/economy"
)

// HandlerProvider wraps the economy service and exposes HTTP handlers.
type HandlerProvider struct {
	mgr *persistence.Manager
	svc *economy.Service
}

func NewHandler(mgr *persistence.Manager, svc *economy.Service) *HandlerProvider {
	return &HandlerProvider{mgr: mgr, svc: svc}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		http.Error(w, `{"error":"internal json encode failure"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseSortKey maps the optional ?sort= query to a SortKey, defaulting to
// total value.
func parseSortKey(r *http.Request) accounts.SortKey {
	switch accounts.SortKey(r.URL.Query().Get("sort")) {
	case accounts.SortByCoins:
		return accounts.SortByCoins
	case accounts.SortBySeeds:
		return accounts.SortBySeeds
	case accounts.SortByStreak:
		return accounts.SortByStreak
	case accounts.SortByEarned:
		return accounts.SortByEarned
	default:
		return accounts.SortByTotal
	}
}

func parseLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}

	if n > max {
		return max
	}

	return n
}

// --- Handlers ---

// StatusHandler handles GET /status with the persistence manager's counters.
func (h *HandlerProvider) StatusHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.mgr.Status())
}

// LeaderboardHandler handles GET /guilds/{guildID}/leaderboard.
func (h *HandlerProvider) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	if guildID == "" {
		writeError(w, http.StatusBadRequest, "missing guildID in path")
		return
	}

	rows, err := h.svc.Leaderboard(r.Context(), guildID, parseSortKey(r), parseLimit(r, 10, 100))
	if err != nil {
		if errors.Is(err, accounts.ErrUnknownSortKey) {
			writeError(w, http.StatusBadRequest, "unknown sort key")
			return
		}

		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	entries := make([]map[string]any, 0, len(rows))
	for i, a := range rows {
		entries = append(entries, map[string]any{
			"position": i + 1,
			"userId":   a.UserID,
			"coins":    a.Coins,
			"seeds":    a.Seeds,
			"total":    a.Coins + a.Seeds*accounts.SeedValue,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"guildId":  guildID,
		"entries":  entries,
		"degraded": h.mgr.Accessors().Degraded,
	})
}

// BalanceHandler handles GET /guilds/{guildID}/users/{userID}/balance.
func (h *HandlerProvider) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	userID := chi.URLParam(r, "userID")

	if guildID == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "missing guildID or userID in path")
		return
	}

	acct, err := h.svc.GetOrCreate(r.Context(), userID, guildID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":      acct.UserID,
		"guildId":     acct.GuildID,
		"coins":       acct.Coins,
		"seeds":       acct.Seeds,
		"total":       acct.Coins + acct.Seeds*accounts.SeedValue,
		"dailyStreak": acct.DailyStreak,
		"workStreak":  acct.WorkStreak,
		"degraded":    h.mgr.Accessors().Degraded,
	})
}

// HistoryHandler handles GET /guilds/{guildID}/users/{userID}/history.
func (h *HandlerProvider) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	userID := chi.URLParam(r, "userID")

	if guildID == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "missing guildID or userID in path")
		return
	}

	records, err := h.svc.History(r.Context(), userID, guildID, parseLimit(r, 20, 200))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	entries := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		entries = append(entries, map[string]any{
			"reference":    rec.Reference,
			"kind":         rec.Kind,
			"currency":     rec.Currency,
			"amount":       rec.Amount,
			"balanceAfter": rec.BalanceAfter,
			"status":       rec.Status,
			"createdAt":    rec.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":  userID,
		"guildId": guildID,
		"entries": entries,
	})
}
