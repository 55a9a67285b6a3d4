package accounts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/capawawa/growmies-economy/internal/repos/accounts"
)

var _ accounts.Accounts = (*accountsRepo)(nil)

type accountsRepo struct{ db *sql.DB }

func New(db *sql.DB) *accountsRepo {
	return &accountsRepo{db: db}
}

const accountColumns = `
	user_id, guild_id,
	coins, seeds,
	coins_earned, coins_spent, seeds_earned, seeds_spent,
	daily_streak, max_daily_streak, last_daily_at,
	work_streak, last_work_at,
	purchases, gifts_sent, gifts_received,
	metadata, active, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*accounts.Account, error) {
	var (
		acct        accounts.Account
		lastDaily   sql.NullTime
		lastWork    sql.NullTime
		rawMetadata []byte
	)

	err := row.Scan(
		&acct.UserID, &acct.GuildID,
		&acct.Coins, &acct.Seeds,
		&acct.CoinsEarned, &acct.CoinsSpent, &acct.SeedsEarned, &acct.SeedsSpent,
		&acct.DailyStreak, &acct.MaxDailyStreak, &lastDaily,
		&acct.WorkStreak, &lastWork,
		&acct.Purchases, &acct.GiftsSent, &acct.GiftsReceived,
		&rawMetadata, &acct.Active, &acct.CreatedAt, &acct.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastDaily.Valid {
		acct.LastDailyAt = lastDaily.Time
	}
	if lastWork.Valid {
		acct.LastWorkAt = lastWork.Time
	}

	if len(rawMetadata) > 0 {
		err = json.Unmarshal(rawMetadata, &acct.Metadata)
		if err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}

	return &acct, nil
}

func (r *accountsRepo) Get(ctx context.Context, userID, guildID string) (*accounts.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE user_id = $1 AND guild_id = $2
	`, userID, guildID)

	acct, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, accounts.ErrAccountNotFound
		}

		return nil, fmt.Errorf("get account: %w", err)
	}

	return acct, nil
}

func (r *accountsRepo) Deactivate(ctx context.Context, userID, guildID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET active = FALSE, updated_at = now()
		WHERE user_id = $1 AND guild_id = $2
	`, userID, guildID)
	if err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return accounts.ErrAccountNotFound
	}

	return nil
}
