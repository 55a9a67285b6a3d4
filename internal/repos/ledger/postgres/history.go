package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/capawawa/growmies-economy/internal/repos/accounts"
	"github.com/capawawa/growmies-economy/internal/repos/ledger"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*ledger.Record, error) {
	var (
		rec          ledger.Record
		counterparty sql.NullString
		reversalOf   sql.NullString
		completedAt  sql.NullTime
		kind         string
		currency     string
		status       string
	)

	err := row.Scan(
		&rec.ID, &rec.Reference, &rec.UserID, &rec.GuildID, &counterparty,
		&kind, &currency, &rec.Amount, &rec.Description,
		&rec.RequiresRestricted, &rec.RestrictedContent, &rec.ComplianceChecked,
		&rec.BalanceAfter, &status, &reversalOf, &rec.CreatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.CounterpartyID = counterparty.String
	rec.ReversalOf = reversalOf.String
	rec.Kind = ledger.OperationKind(kind)
	rec.Currency = accounts.Currency(currency)
	rec.Status = ledger.Status(status)

	if completedAt.Valid {
		rec.CompletedAt = completedAt.Time
	}

	return &rec, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func (r *recordsRepo) History(ctx context.Context, userID, guildID string, limit int) ([]ledger.Record, error) {
	if limit <= 0 {
		limit = 25
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM transactions
		WHERE user_id = $1 AND guild_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, userID, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("history query: %w", err)
	}
	defer rows.Close()

	var out []ledger.Record

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}

		out = append(out, *rec)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}

	return out, nil
}

// PurgeExpired removes aged rows that never became part of the audit trail:
// failed, cancelled, and stale pending records without compliance flags.
func (r *recordsRepo) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM transactions
		WHERE created_at < $1
		  AND requires_restricted = FALSE
		  AND restricted_content = FALSE
		  AND status IN ($2, $3, $4)
	`, before,
		string(ledger.StatusFailed),
		string(ledger.StatusCancelled),
		string(ledger.StatusPending),
	)
	if err != nil {
		return 0, fmt.Errorf("purge transactions: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return deleted, nil
}
