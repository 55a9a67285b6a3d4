package accounts

import (
	"database/sql"
	"fmt"

	"github.com/capawawa/growmies-economy/internal/repos/accounts"
)

// balanceColumns maps a currency onto its balance/earned/spent columns.
// Column names come from this closed switch, never from caller input.
func balanceColumns(c accounts.Currency) (balance, earned, spent string, err error) {
	switch c {
	case accounts.CurrencyCoins:
		return "coins", "coins_earned", "coins_spent", nil
	case accounts.CurrencySeeds:
		return "seeds", "seeds_earned", "seeds_spent", nil
	default:
		return "", "", "", fmt.Errorf("unknown currency %q", c)
	}
}

func (r *accountsRepo) Credit(tx *sql.Tx, userID, guildID string, currency accounts.Currency, amount int64) error {
	bal, earned, _, err := balanceColumns(currency)
	if err != nil {
		return err
	}

	res, err := tx.Exec(fmt.Sprintf(`
		UPDATE accounts
		SET %[1]s = %[1]s + $3,
		    %[2]s = %[2]s + $3,
		    updated_at = now()
		WHERE user_id = $1 AND guild_id = $2
	`, bal, earned), userID, guildID, amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", currency, err)
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

func (r *accountsRepo) Debit(tx *sql.Tx, userID, guildID string, currency accounts.Currency, amount int64) error {
	bal, _, spent, err := balanceColumns(currency)
	if err != nil {
		return err
	}

	res, err := tx.Exec(fmt.Sprintf(`
		UPDATE accounts
		SET %[1]s = %[1]s - $3,
		    %[2]s = %[2]s + $3,
		    updated_at = now()
		WHERE user_id = $1 AND guild_id = $2
		  AND %[1]s >= $3
	`, bal, spent), userID, guildID, amount)
	if err != nil {
		return fmt.Errorf("debit %s: %w", currency, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return accounts.ErrInsufficientFunds
	}

	return nil
}
