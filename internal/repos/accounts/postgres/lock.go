package accounts

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/capawawa/growmies-economy/internal/repos/accounts"
)

func (r *accountsRepo) LockForUpdate(tx *sql.Tx, userID, guildID string) (*accounts.Account, error) {
	row := tx.QueryRow(`
		SELECT `+accountColumns+`
		FROM accounts
		WHERE user_id = $1 AND guild_id = $2
		FOR UPDATE
	`, userID, guildID)

	acct, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, accounts.ErrAccountNotFound
		}

		return nil, fmt.Errorf("lock account: %w", err)
	}

	return acct, nil
}
