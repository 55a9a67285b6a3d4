// Package degraded provides the non-failing account store used while the
// database is unreachable. Every method logs at Warn and returns an empty
// result, so command handlers keep answering instead of erroring out.
package degraded

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/capawawa/growmies-economy/internal/repos/accounts"
)

var _ accounts.Accounts = (*accountsStub)(nil)

type accountsStub struct{}

func New() *accountsStub {
	return &accountsStub{}
}

func (s *accountsStub) warn(op string) {
	slog.Warn("account store degraded, returning stand-in result", "op", op)
}

func (s *accountsStub) Get(_ context.Context, userID, guildID string) (*accounts.Account, error) {
	s.warn("get")
	return &accounts.Account{UserID: userID, GuildID: guildID, Active: true}, nil
}

func (s *accountsStub) CreateIfAbsent(_ *sql.Tx, _, _ string, _ int64) (bool, error) {
	s.warn("create_if_absent")
	return false, nil
}

func (s *accountsStub) LockForUpdate(_ *sql.Tx, userID, guildID string) (*accounts.Account, error) {
	s.warn("lock_for_update")
	return &accounts.Account{UserID: userID, GuildID: guildID, Active: true}, nil
}

func (s *accountsStub) Credit(_ *sql.Tx, _, _ string, _ accounts.Currency, _ int64) error {
	s.warn("credit")
	return nil
}

func (s *accountsStub) Debit(_ *sql.Tx, _, _ string, _ accounts.Currency, _ int64) error {
	s.warn("debit")
	return nil
}

func (s *accountsStub) MarkDailyClaim(_ *sql.Tx, _, _ string, _, _ int, _ time.Time) error {
	s.warn("mark_daily_claim")
	return nil
}

func (s *accountsStub) MarkWork(_ *sql.Tx, _, _ string, _ int, _ time.Time) error {
	s.warn("mark_work")
	return nil
}

func (s *accountsStub) IncrementPurchases(_ *sql.Tx, _, _ string) error {
	s.warn("increment_purchases")
	return nil
}

func (s *accountsStub) IncrementGifts(_ *sql.Tx, _, _, _ string) error {
	s.warn("increment_gifts")
	return nil
}

func (s *accountsStub) Deactivate(_ context.Context, _, _ string) error {
	s.warn("deactivate")
	return nil
}

func (s *accountsStub) Rank(_ context.Context, _, _ string, _ accounts.SortKey) (int, error) {
	s.warn("rank")
	return 0, nil
}

func (s *accountsStub) Leaderboard(_ context.Context, _ string, _ accounts.SortKey, _ int) ([]accounts.Account, error) {
	s.warn("leaderboard")
	return nil, nil
}
