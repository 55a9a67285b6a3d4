package accounts

import (
	"database/sql"
	"fmt"
)

func (r *accountsRepo) CreateIfAbsent(tx *sql.Tx, userID, guildID string, startingCoins int64) (bool, error) {
	res, err := tx.Exec(`
		INSERT INTO accounts (user_id, guild_id, coins, coins_earned)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id, guild_id) DO NOTHING
	`, userID, guildID, startingCoins)
	if err != nil {
		return false, fmt.Errorf("create account: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}
