// Package degraded provides the non-failing transaction log used while the
// database is unreachable.
package degraded

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/capawawa/growmies-economy/internal/repos/ledger"
)

var _ ledger.Records = (*recordsStub)(nil)

type recordsStub struct{}

func New() *recordsStub {
	return &recordsStub{}
}

func (s *recordsStub) warn(op string) {
	slog.Warn("transaction log degraded, returning stand-in result", "op", op)
}

func (s *recordsStub) Insert(_ *sql.Tx, _ *ledger.Record) error {
	s.warn("insert")
	return nil
}

func (s *recordsStub) ByReference(_ context.Context, _ string) (*ledger.Record, error) {
	s.warn("by_reference")
	return nil, ledger.ErrRecordNotFound
}

func (s *recordsStub) History(_ context.Context, _, _ string, _ int) ([]ledger.Record, error) {
	s.warn("history")
	return nil, nil
}

func (s *recordsStub) MarkReversed(_ *sql.Tx, _ string) error {
	s.warn("mark_reversed")
	return nil
}

func (s *recordsStub) PurgeExpired(_ context.Context, _ time.Time) (int64, error) {
	s.warn("purge_expired")
	return 0, nil
}
