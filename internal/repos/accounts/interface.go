// Package accounts defines the ledger account model and its store contract.
// One account exists per (user, guild) pair; it is created lazily and only
// ever deactivated, never deleted. Balances move exclusively through the
// ledger transaction engine.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownSortKey    = errors.New("unknown sort key")
)

// Currency identifies one of the two balances an account holds.
type Currency string

const (
	// CurrencyCoins is the unrestricted, freely earned and spent currency.
	CurrencyCoins Currency = "coins"
	// CurrencySeeds is the restricted currency; acquiring or spending it
	// requires a passed compliance capability check.
	CurrencySeeds Currency = "seeds"
)

// SeedValue is the fixed coin-equivalent of one seed, used for total-value
// ranking.
const SeedValue = 10

// SortKey selects the ordering for Rank and Leaderboard queries.
type SortKey string

const (
	SortByTotal  SortKey = "total"
	SortByCoins  SortKey = "coins"
	SortBySeeds  SortKey = "seeds"
	SortByStreak SortKey = "streak"
	SortByEarned SortKey = "earned"
)

// Account is one user's economy state within a guild.
type Account struct {
	UserID  string
	GuildID string

	Coins int64
	Seeds int64

	CoinsEarned int64
	CoinsSpent  int64
	SeedsEarned int64
	SeedsSpent  int64

	DailyStreak    int
	MaxDailyStreak int
	LastDailyAt    time.Time // zero when never claimed

	WorkStreak int
	LastWorkAt time.Time // zero when never worked

	Purchases     int64
	GiftsSent     int64
	GiftsReceived int64

	Metadata map[string]string

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Balance returns the account's balance in the given currency.
func (a *Account) Balance(c Currency) int64 {
	if c == CurrencySeeds {
		return a.Seeds
	}
	return a.Coins
}

// Accounts is the account store contract. Methods taking *sql.Tx participate
// in the caller's unit of work; the rest run on their own connection.
type Accounts interface {
	Get(ctx context.Context, userID, guildID string) (*Account, error)

	// CreateIfAbsent inserts a fresh account holding startingCoins and
	// reports whether a row was actually created.
	CreateIfAbsent(tx *sql.Tx, userID, guildID string, startingCoins int64) (bool, error)

	// LockForUpdate reads the account under a row lock, serializing
	// concurrent balance mutations for the same account.
	LockForUpdate(tx *sql.Tx, userID, guildID string) (*Account, error)

	// Credit adds amount to the balance and the earned counter.
	Credit(tx *sql.Tx, userID, guildID string, currency Currency, amount int64) error

	// Debit subtracts amount from the balance and adds it to the spent
	// counter, guarded so the balance can never go negative. Returns
	// ErrInsufficientFunds when the guard rejects the update.
	Debit(tx *sql.Tx, userID, guildID string, currency Currency, amount int64) error

	MarkDailyClaim(tx *sql.Tx, userID, guildID string, streak, maxStreak int, at time.Time) error
	MarkWork(tx *sql.Tx, userID, guildID string, streak int, at time.Time) error

	IncrementPurchases(tx *sql.Tx, userID, guildID string) error
	IncrementGifts(tx *sql.Tx, senderID, recipientID, guildID string) error

	Deactivate(ctx context.Context, userID, guildID string) error

	Rank(ctx context.Context, userID, guildID string, key SortKey) (int, error)
	Leaderboard(ctx context.Context, guildID string, key SortKey, limit int) ([]Account, error)
}
