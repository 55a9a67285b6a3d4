// Package economy implements the transactional ledger engine: atomic
// balance-changing operations, dual-account transfers, reward state machines
// and reversal handling, all executed against the persistence manager's
// current accessor set.
package economy

import (
	"context"
	"errors"
	"time"

	"github.com/capawawa/growmies-economy/internal/repos/accounts"
	"github.com/capawawa/growmies-economy/internal/repos/ledger"
)

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidCounterparty = errors.New("counterparty must be a different account")
	ErrComplianceRequired  = errors.New("restricted access not granted")
	ErrCooldownActive      = errors.New("cooldown active")
	ErrUnknownActivity     = errors.New("unknown work activity")

	// ErrNotReversible is shared with the record store so callers see one
	// error whether the precheck or the status-guarded update rejects.
	ErrNotReversible = ledger.ErrNotReversible
)

// Operation is one requested balance change against a single account.
// Transfers use TransferRequest instead.
type Operation struct {
	UserID  string
	GuildID string

	Kind     ledger.OperationKind
	Currency accounts.Currency
	Amount   int64

	Description    string
	CounterpartyID string

	// Reference is an optional caller-supplied idempotency key. When empty
	// the engine mints one; when set, a second submission with the same
	// reference fails with ErrDuplicateReference instead of double-applying.
	Reference string

	// ReversalOf links a compensating record back to the reference of the
	// record it reverses. Set only by Reverse.
	ReversalOf string

	// RestrictedContent marks the operation as touching age-restricted
	// catalog items, forcing a compliance check even for the coin currency.
	RestrictedContent bool
}

// Result is the outcome of a successfully applied operation. In degraded
// mode valid operations return a zero Result with a nil error.
type Result struct {
	Record     *ledger.Record
	NewBalance int64
}

// Config carries the reward and account-creation tunables.
type Config struct {
	StartingBalance int64

	DailyCooldown    time.Duration
	DailyBase        int64
	DailyStreakBonus int64 // extra coins per consecutive day
	DailyBonusCap    int64
	SeedMilestone    int // streak length granting one bonus seed

	WorkCooldown   time.Duration
	WorkStreakCap  int
	WorkLevelBonus int64 // coins per user level on top of activity base
}

func DefaultConfig() Config {
	return Config{
		StartingBalance:  100,
		DailyCooldown:    20 * time.Hour,
		DailyBase:        100,
		DailyStreakBonus: 10,
		DailyBonusCap:    100,
		SeedMilestone:    7,
		WorkCooldown:     time.Hour,
		WorkStreakCap:    10,
		WorkLevelBonus:   5,
	}
}

// LevelSource supplies a user's progression level for work payout scaling.
type LevelSource interface {
	Level(ctx context.Context, userID, guildID string) (int, error)
}

// NoLevels is the default LevelSource: everyone is level zero.
type NoLevels struct{}

func (NoLevels) Level(context.Context, string, string) (int, error) { return 0, nil }
