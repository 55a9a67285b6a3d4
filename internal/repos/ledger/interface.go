// Package ledger defines the append-only transaction record and its store
// contract. A completed record is immutable: there is no update or delete
// path for its amounts or balances, and corrections are modeled as new
// reversal records. The only permitted mutation is the completed→reversed
// status transition that links a correction to its original.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/capawawa/growmies-economy/internal/repos/accounts"
)

var (
	ErrDuplicateReference = errors.New("duplicate transaction reference")
	ErrRecordNotFound     = errors.New("transaction record not found")
	ErrUnknownKind        = errors.New("unknown operation kind")
	ErrNotReversible      = errors.New("record is not reversible")
)

// OperationKind enumerates every balance-changing operation.
type OperationKind string

const (
	OpPurchase    OperationKind = "purchase"
	OpSale        OperationKind = "sale"
	OpTransferOut OperationKind = "transfer_out"
	OpTransferIn  OperationKind = "transfer_in"
	OpGiftOut     OperationKind = "gift_out"
	OpGiftIn      OperationKind = "gift_in"
	OpDailyReward OperationKind = "daily_reward"
	OpWorkReward  OperationKind = "work_reward"
	OpAdminAdjust OperationKind = "admin_adjustment"
	OpPenalty     OperationKind = "penalty"
	OpRefund      OperationKind = "refund"
)

// Direction states whether an operation kind subtracts from or adds to the
// account balance. Amounts are always non-negative; the kind implies the sign.
type Direction int

const (
	Debit Direction = iota
	Credit
)

// KindDirection is the exhaustive direction table. Every kind added above
// must be classified here; unknown kinds report false.
func KindDirection(k OperationKind) (Direction, bool) {
	switch k {
	case OpPurchase, OpTransferOut, OpGiftOut, OpPenalty:
		return Debit, true
	case OpSale, OpTransferIn, OpGiftIn, OpDailyReward, OpWorkReward, OpAdminAdjust, OpRefund:
		return Credit, true
	default:
		return 0, false
	}
}

// Kinds lists every known operation kind, in declaration order.
func Kinds() []OperationKind {
	return []OperationKind{
		OpPurchase, OpSale,
		OpTransferOut, OpTransferIn,
		OpGiftOut, OpGiftIn,
		OpDailyReward, OpWorkReward,
		OpAdminAdjust, OpPenalty, OpRefund,
	}
}

// Status is the lifecycle state of a record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusReversed  Status = "reversed"
)

// Record is one immutable ledger entry.
type Record struct {
	ID        int64
	Reference string

	UserID         string
	GuildID        string
	CounterpartyID string // other side of a transfer/gift, empty otherwise

	Kind     OperationKind
	Currency accounts.Currency
	Amount   int64

	Description string

	RequiresRestricted bool
	RestrictedContent  bool
	ComplianceChecked  bool

	// BalanceAfter is the post-transaction balance snapshot in the record's
	// currency, so audits reconstruct history without replay.
	BalanceAfter int64

	Status     Status
	ReversalOf string // reference of the record this one reverses

	CreatedAt   time.Time
	CompletedAt time.Time
}

// Records is the transaction log contract.
type Records interface {
	// Insert appends a record inside the caller's unit of work and fills in
	// ID and CreatedAt. A reference collision maps to ErrDuplicateReference.
	Insert(tx *sql.Tx, rec *Record) error

	ByReference(ctx context.Context, reference string) (*Record, error)

	// History returns the account's records, newest first.
	History(ctx context.Context, userID, guildID string, limit int) ([]Record, error)

	// MarkReversed transitions a completed record to reversed. Status is the
	// only column touched. A missing reference maps to ErrRecordNotFound; a
	// record in any other status maps to ErrNotReversible.
	MarkReversed(tx *sql.Tx, reference string) error

	// PurgeExpired deletes records created before the cutoff that carry no
	// compliance flags and never completed (failed, cancelled, stale
	// pending). Completed audit entries are never purged.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}
