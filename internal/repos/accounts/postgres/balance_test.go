package accounts

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/capawawa/growmies-economy/internal/infra/pgtestutil"
	"github.com/capawawa/growmies-economy/internal/repos/accounts"
)

func seedAccount(t *testing.T, db *sql.DB, userID, guildID string, coins, seeds int64) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO accounts (user_id, guild_id, coins, seeds)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, guild_id) DO UPDATE SET coins = EXCLUDED.coins, seeds = EXCLUDED.seeds
	`, userID, guildID, coins, seeds)
	if err != nil {
		t.Fatalf("seed account(%s/%s): %v", userID, guildID, err)
	}
}

func TestAccounts_Debit_Table(t *testing.T) {
	t.Parallel()

	type tc struct {
		name        string
		seedCoins   int64
		seedSeeds   int64
		currency    accounts.Currency
		amount      int64
		wantBalance int64
		wantErr     error
	}

	tests := []tc{
		{
			name:        "sufficient_coins",
			seedCoins:   1_000,
			currency:    accounts.CurrencyCoins,
			amount:      250,
			wantBalance: 750,
		},
		{
			name:        "exact_to_zero",
			seedCoins:   300,
			currency:    accounts.CurrencyCoins,
			amount:      300,
			wantBalance: 0,
		},
		{
			name:        "insufficient_coins_balance_unchanged",
			seedCoins:   200,
			currency:    accounts.CurrencyCoins,
			amount:      300,
			wantBalance: 200,
			wantErr:     accounts.ErrInsufficientFunds,
		},
		{
			name:        "seeds_tracked_separately",
			seedCoins:   500,
			seedSeeds:   5,
			currency:    accounts.CurrencySeeds,
			amount:      3,
			wantBalance: 2,
		},
		{
			name:        "insufficient_seeds_despite_coins",
			seedCoins:   10_000,
			seedSeeds:   1,
			currency:    accounts.CurrencySeeds,
			amount:      2,
			wantBalance: 1,
			wantErr:     accounts.ErrInsufficientFunds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, _, cleanup := pgtestutil.NewTestDB(t)
			defer cleanup()

			seedAccount(t, db, "u1", "g1", tt.seedCoins, tt.seedSeeds)

			repo := New(db)

			ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
			defer cancel()

			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				t.Fatalf("begin tx: %v", err)
			}
			defer func() { _ = tx.Rollback() }()

			err = repo.Debit(tx, "u1", "g1", tt.currency, tt.amount)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
			} else {
				if err != nil {
					t.Fatalf("debit: %v", err)
				}
				if err := tx.Commit(); err != nil {
					t.Fatalf("commit: %v", err)
				}
			}

			acct, err := repo.Get(ctx, "u1", "g1")
			if err != nil {
				t.Fatalf("get account: %v", err)
			}
			if got := acct.Balance(tt.currency); got != tt.wantBalance {
				t.Fatalf("final balance mismatch: want %d, got %d", tt.wantBalance, got)
			}
		})
	}
}

func TestAccounts_Credit_UpdatesEarnedCounter(t *testing.T) {
	t.Parallel()

	db, _, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	seedAccount(t, db, "u1", "g1", 100, 0)

	repo := New(db)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}

	err = repo.Credit(tx, "u1", "g1", accounts.CurrencyCoins, 50)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	acct, err := repo.Get(ctx, "u1", "g1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}

	if acct.Coins != 150 {
		t.Fatalf("want coins 150, got %d", acct.Coins)
	}
	if acct.CoinsEarned != 50 {
		t.Fatalf("want coins_earned 50, got %d", acct.CoinsEarned)
	}
}

func TestAccounts_Credit_MissingAccount(t *testing.T) {
	t.Parallel()

	db, _, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	tx, err := db.BeginTx(t.Context(), nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = repo.Credit(tx, "nobody", "g1", accounts.CurrencyCoins, 10)
	if !errors.Is(err, accounts.ErrAccountNotFound) {
		t.Fatalf("want ErrAccountNotFound, got %v", err)
	}
}

func TestAccounts_Debit_ConcurrentGuard(t *testing.T) {
	t.Parallel()

	db, _, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	seedAccount(t, db, "u1", "g1", 1_000, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	success, insufficient := 0, 0

	worker := func(name string) {
		defer wg.Done()

		ctx := context.Background()
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Errorf("[%s] begin tx: %v", name, err)
			return
		}
		defer tx.Rollback()

		// Lock row first (this will serialize)
		_, err = repo.LockForUpdate(tx, "u1", "g1")
		if err != nil {
			t.Errorf("[%s] lock account: %v", name, err)
			return
		}

		err = repo.Debit(tx, "u1", "g1", accounts.CurrencyCoins, 1_000)
		if err == nil {
			mu.Lock()
			success++
			mu.Unlock()
			if err := tx.Commit(); err != nil {
				t.Errorf("[%s] commit: %v", name, err)
			}
			return
		}

		if errors.Is(err, accounts.ErrInsufficientFunds) {
			mu.Lock()
			insufficient++
			mu.Unlock()
			_ = tx.Rollback()
			return
		}

		t.Errorf("[%s] unexpected error: %v", name, err)
	}

	wg.Add(2)
	go worker("A")
	go worker("B")
	wg.Wait()

	if success != 1 || insufficient != 1 {
		t.Fatalf("want 1 success and 1 insufficient, got success=%d insufficient=%d", success, insufficient)
	}
}
