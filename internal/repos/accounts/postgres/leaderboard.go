package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/capawawa/growmies-economy/internal/repos/accounts"
)

// sortExpr maps a sort key onto its SQL ordering expression. Closed switch:
// the expression is never built from caller input.
func sortExpr(key accounts.SortKey) (string, error) {
	switch key {
	case accounts.SortByTotal:
		return fmt.Sprintf("(coins + seeds * %d)", accounts.SeedValue), nil
	case accounts.SortByCoins:
		return "coins", nil
	case accounts.SortBySeeds:
		return "seeds", nil
	case accounts.SortByStreak:
		return "daily_streak", nil
	case accounts.SortByEarned:
		return "coins_earned", nil
	default:
		return "", fmt.Errorf("%w: %q", accounts.ErrUnknownSortKey, key)
	}
}

// Rank computes the account's 1-based position within its guild for the given
// sort key, server-side. Ties above count against the rank.
func (r *accountsRepo) Rank(ctx context.Context, userID, guildID string, key accounts.SortKey) (int, error) {
	expr, err := sortExpr(key)
	if err != nil {
		return 0, err
	}

	var mine int64

	err = r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM accounts
		WHERE user_id = $1 AND guild_id = $2
	`, expr), userID, guildID).Scan(&mine)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, accounts.ErrAccountNotFound
		}

		return 0, fmt.Errorf("rank lookup: %w", err)
	}

	var rank int

	err = r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*) + 1 FROM accounts
		WHERE guild_id = $1 AND active AND %s > $2
	`, expr), guildID, mine).Scan(&rank)
	if err != nil {
		return 0, fmt.Errorf("rank count: %w", err)
	}

	return rank, nil
}

func (r *accountsRepo) Leaderboard(ctx context.Context, guildID string, key accounts.SortKey, limit int) ([]accounts.Account, error) {
	expr, err := sortExpr(key)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT `+accountColumns+`
		FROM accounts
		WHERE guild_id = $1 AND active
		ORDER BY %s DESC, user_id
		LIMIT $2
	`, expr), guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard query: %w", err)
	}
	defer rows.Close()

	var out []accounts.Account

	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("leaderboard scan: %w", err)
		}

		out = append(out, *acct)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("leaderboard rows: %w", err)
	}

	return out, nil
}
