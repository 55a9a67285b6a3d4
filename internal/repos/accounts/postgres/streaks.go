package accounts

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/capawawa/growmies-economy/internal/repos/accounts"
)

func (r *accountsRepo) MarkDailyClaim(tx *sql.Tx, userID, guildID string, streak, maxStreak int, at time.Time) error {
	res, err := tx.Exec(`
		UPDATE accounts
		SET daily_streak = $3,
		    max_daily_streak = $4,
		    last_daily_at = $5,
		    updated_at = now()
		WHERE user_id = $1 AND guild_id = $2
	`, userID, guildID, streak, maxStreak, at)
	if err != nil {
		return fmt.Errorf("mark daily claim: %w", err)
	}

	return requireRow(res, accounts.ErrAccountNotFound)
}

func (r *accountsRepo) MarkWork(tx *sql.Tx, userID, guildID string, streak int, at time.Time) error {
	res, err := tx.Exec(`
		UPDATE accounts
		SET work_streak = $3,
		    last_work_at = $4,
		    updated_at = now()
		WHERE user_id = $1 AND guild_id = $2
	`, userID, guildID, streak, at)
	if err != nil {
		return fmt.Errorf("mark work: %w", err)
	}

	return requireRow(res, accounts.ErrAccountNotFound)
}

func requireRow(res sql.Result, missing error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return missing
	}

	return nil
}
