package economy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/capawawa/growmies-economy/internal/compliance"
	"github.com/capawawa/growmies-economy/internal/infra/pgutils"
	"github.com/capawawa/growmies-economy/internal/persistence"
	"github.com/capawawa/growmies-economy/internal/repos/accounts"
	"github.com/capawawa/growmies-economy/internal/repos/ledger"
)

type Service struct {
	mgr     *persistence.Manager
	checker compliance.Checker
	levels  LevelSource
	cfg     Config
}

func New(mgr *persistence.Manager, checker compliance.Checker, levels LevelSource, cfg Config) *Service {
	if checker == nil {
		checker = compliance.DenyAll
	}

	if levels == nil {
		levels = NoLevels{}
	}

	return &Service{mgr: mgr, checker: checker, levels: levels, cfg: cfg}
}

// GetOrCreate returns the account, creating it with the starting balance on
// first touch. Creation writes the initial grant to the transaction log so
// the ledger reconstructs the balance from record one.
func (s *Service) GetOrCreate(ctx context.Context, userID, guildID string) (*accounts.Account, error) {
	set := s.mgr.Accessors()

	if set.Degraded {
		return set.Accounts.Get(ctx, userID, guildID)
	}

	err := pgutils.WithTx(ctx, set.DB, func(tx *sql.Tx) error {
		return s.ensureAccount(tx, set, userID, guildID)
	})

	s.mgr.RecordQuery(err)

	if err != nil {
		return nil, fmt.Errorf("get or create account: %w", err)
	}

	return set.Accounts.Get(ctx, userID, guildID)
}

// ensureAccount creates the account inside the caller's transaction if it
// does not exist yet, recording the starting grant as an admin adjustment.
func (s *Service) ensureAccount(tx *sql.Tx, set persistence.Accessors, userID, guildID string) error {
	created, err := set.Accounts.CreateIfAbsent(tx, userID, guildID, s.cfg.StartingBalance)
	if err != nil {
		return err
	}

	if !created || s.cfg.StartingBalance == 0 {
		return nil
	}

	return set.Ledger.Insert(tx, &ledger.Record{
		Reference:    newReference(),
		UserID:       userID,
		GuildID:      guildID,
		Kind:         ledger.OpAdminAdjust,
		Currency:     accounts.CurrencyCoins,
		Amount:       s.cfg.StartingBalance,
		Description:  "starting balance",
		BalanceAfter: s.cfg.StartingBalance,
		Status:       ledger.StatusCompleted,
		CompletedAt:  time.Now(),
	})
}

func (s *Service) Rank(ctx context.Context, userID, guildID string, key accounts.SortKey) (int, error) {
	set := s.mgr.Accessors()

	rank, err := set.Accounts.Rank(ctx, userID, guildID, key)
	s.mgr.RecordQuery(err)

	return rank, err
}

func (s *Service) Leaderboard(ctx context.Context, guildID string, key accounts.SortKey, limit int) ([]accounts.Account, error) {
	set := s.mgr.Accessors()

	rows, err := set.Accounts.Leaderboard(ctx, guildID, key, limit)
	s.mgr.RecordQuery(err)

	return rows, err
}

func (s *Service) History(ctx context.Context, userID, guildID string, limit int) ([]ledger.Record, error) {
	set := s.mgr.Accessors()

	rows, err := set.Ledger.History(ctx, userID, guildID, limit)
	s.mgr.RecordQuery(err)

	return rows, err
}

// requireRestrictedAccess enforces the compliance gate for a participant.
func (s *Service) requireRestrictedAccess(ctx context.Context, userID, guildID string) error {
	granted, err := s.checker.IsRestrictedAccessGranted(ctx, userID, guildID)
	if err != nil {
		return fmt.Errorf("compliance check: %w", err)
	}

	if !granted {
		return fmt.Errorf("%w: user %s in guild %s", ErrComplianceRequired, userID, guildID)
	}

	return nil
}

// needsCompliance reports whether the operation touches the restricted
// currency or restricted content.
func needsCompliance(currency accounts.Currency, restrictedContent bool) bool {
	return currency == accounts.CurrencySeeds || restrictedContent
}
