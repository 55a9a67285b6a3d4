package accounts

import (
	"database/sql"
	"fmt"

	"github.com/capawawa/growmies-economy/internal/repos/accounts"
)

func (r *accountsRepo) IncrementPurchases(tx *sql.Tx, userID, guildID string) error {
	res, err := tx.Exec(`
		UPDATE accounts
		SET purchases = purchases + 1, updated_at = now()
		WHERE user_id = $1 AND guild_id = $2
	`, userID, guildID)
	if err != nil {
		return fmt.Errorf("increment purchases: %w", err)
	}

	return requireRow(res, accounts.ErrAccountNotFound)
}

// IncrementGifts bumps the sender's gifts_sent and the recipient's
// gifts_received inside the same transfer unit of work.
func (r *accountsRepo) IncrementGifts(tx *sql.Tx, senderID, recipientID, guildID string) error {
	res, err := tx.Exec(`
		UPDATE accounts
		SET gifts_sent = gifts_sent + 1, updated_at = now()
		WHERE user_id = $1 AND guild_id = $2
	`, senderID, guildID)
	if err != nil {
		return fmt.Errorf("increment gifts sent: %w", err)
	}

	err = requireRow(res, accounts.ErrAccountNotFound)
	if err != nil {
		return err
	}

	res, err = tx.Exec(`
		UPDATE accounts
		SET gifts_received = gifts_received + 1, updated_at = now()
		WHERE user_id = $1 AND guild_id = $2
	`, recipientID, guildID)
	if err != nil {
		return fmt.Errorf("increment gifts received: %w", err)
	}

	return requireRow(res, accounts.ErrAccountNotFound)
}
