package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/capawawa/growmies-economy/internal/repos/ledger"
	"github.com/jackc/pgx/v5/pgconn"
)

var _ ledger.Records = (*recordsRepo)(nil)

type recordsRepo struct{ db *sql.DB }

func New(db *sql.DB) *recordsRepo {
	return &recordsRepo{db: db}
}

const recordColumns = `
	id, reference, user_id, guild_id, counterparty_id,
	kind, currency, amount, description,
	requires_restricted, restricted_content, compliance_checked,
	balance_after, status, reversal_of, created_at, completed_at
`

func (r *recordsRepo) Insert(tx *sql.Tx, rec *ledger.Record) error {
	err := tx.QueryRow(`
		INSERT INTO transactions (
			reference, user_id, guild_id, counterparty_id,
			kind, currency, amount, description,
			requires_restricted, restricted_content, compliance_checked,
			balance_after, status, reversal_of, completed_at
		)
		VALUES (
			$1, $2, $3, NULLIF($4, ''),
			$5, $6, $7, $8,
			$9, $10, $11,
			$12, $13, NULLIF($14, ''), $15
		)
		RETURNING id, created_at
	`,
		rec.Reference, rec.UserID, rec.GuildID, rec.CounterpartyID,
		string(rec.Kind), string(rec.Currency), rec.Amount, rec.Description,
		rec.RequiresRestricted, rec.RestrictedContent, rec.ComplianceChecked,
		rec.BalanceAfter, string(rec.Status), rec.ReversalOf, nullTime(rec.CompletedAt),
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return ledger.ErrDuplicateReference
		}

		return fmt.Errorf("insert transaction: %w", err)
	}

	return nil
}

func (r *recordsRepo) ByReference(ctx context.Context, reference string) (*ledger.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM transactions
		WHERE reference = $1
	`, reference)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrRecordNotFound
		}

		return nil, fmt.Errorf("get transaction: %w", err)
	}

	return rec, nil
}

func (r *recordsRepo) MarkReversed(tx *sql.Tx, reference string) error {
	res, err := tx.Exec(`
		UPDATE transactions
		SET status = $2
		WHERE reference = $1 AND status = $3
	`, reference, string(ledger.StatusReversed), string(ledger.StatusCompleted))
	if err != nil {
		return fmt.Errorf("mark reversed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		// Either the reference is unknown or a concurrent reversal got
		// there first; tell those apart for the caller.
		var status string

		err = tx.QueryRow(`SELECT status FROM transactions WHERE reference = $1`, reference).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.ErrRecordNotFound
		}
		if err != nil {
			return fmt.Errorf("mark reversed status check: %w", err)
		}

		return fmt.Errorf("%w: status %s", ledger.ErrNotReversible, status)
	}

	return nil
}
