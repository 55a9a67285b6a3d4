package economy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/capawawa/growmies-economy/internal/infra/pgutils"
	"github.com/capawawa/growmies-economy/internal/persistence"
	"github.com/capawawa/growmies-economy/internal/repos/accounts"
	"github.com/capawawa/growmies-economy/internal/repos/ledger"
)

func newReference() string {
	return uuid.NewString()
}

func validateOperation(op Operation) error {
	if op.Amount <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidAmount, op.Amount)
	}

	_, known := ledger.KindDirection(op.Kind)
	if !known {
		return fmt.Errorf("%w: %q", ledger.ErrUnknownKind, op.Kind)
	}

	// Transfer and gift legs always name the other account.
	switch op.Kind {
	case ledger.OpTransferOut, ledger.OpTransferIn, ledger.OpGiftOut, ledger.OpGiftIn:
		if op.CounterpartyID == "" || op.CounterpartyID == op.UserID {
			return fmt.Errorf("%w: %s requires a counterparty", ErrInvalidCounterparty, op.Kind)
		}
	}

	switch op.Currency {
	case accounts.CurrencyCoins, accounts.CurrencySeeds:
	default:
		return fmt.Errorf("unknown currency %q", op.Currency)
	}

	return nil
}

// Apply executes one balance-changing operation atomically: row lock, guarded
// balance mutation and ledger append commit or roll back together. Validation
// and compliance run before any transaction is opened, so rejected operations
// leave no trace.
func (s *Service) Apply(ctx context.Context, op Operation) (Result, error) {
	err := validateOperation(op)
	if err != nil {
		return Result{}, err
	}

	if needsCompliance(op.Currency, op.RestrictedContent) {
		err = s.requireRestrictedAccess(ctx, op.UserID, op.GuildID)
		if err != nil {
			return Result{}, err
		}
	}

	set := s.mgr.Accessors()

	if set.Degraded {
		// Valid operations succeed vacuously while the store is down.
		return Result{}, nil
	}

	var result Result

	err = pgutils.WithTx(ctx, set.DB, func(tx *sql.Tx) error {
		var txErr error

		result, txErr = s.applyInTx(tx, set, op)

		return txErr
	})

	s.mgr.RecordQuery(err)

	if err != nil {
		return Result{}, fmt.Errorf("apply %s: %w", op.Kind, err)
	}

	return result, nil
}

// applyInTx is the single-account mutation shared by Apply and the transfer
// legs. The caller owns the transaction.
func (s *Service) applyInTx(tx *sql.Tx, set persistence.Accessors, op Operation) (Result, error) {
	err := s.ensureAccount(tx, set, op.UserID, op.GuildID)
	if err != nil {
		return Result{}, err
	}

	acct, err := set.Accounts.LockForUpdate(tx, op.UserID, op.GuildID)
	if err != nil {
		return Result{}, err
	}

	direction, _ := ledger.KindDirection(op.Kind)

	var newBalance int64

	switch direction {
	case ledger.Debit:
		if acct.Balance(op.Currency) < op.Amount {
			return Result{}, fmt.Errorf("%w: have %d %s, need %d",
				accounts.ErrInsufficientFunds, acct.Balance(op.Currency), op.Currency, op.Amount)
		}

		err = set.Accounts.Debit(tx, op.UserID, op.GuildID, op.Currency, op.Amount)
		newBalance = acct.Balance(op.Currency) - op.Amount
	case ledger.Credit:
		err = set.Accounts.Credit(tx, op.UserID, op.GuildID, op.Currency, op.Amount)
		newBalance = acct.Balance(op.Currency) + op.Amount
	}

	if err != nil {
		return Result{}, err
	}

	if op.Kind == ledger.OpPurchase {
		err = set.Accounts.IncrementPurchases(tx, op.UserID, op.GuildID)
		if err != nil {
			return Result{}, err
		}
	}

	reference := op.Reference
	if reference == "" {
		reference = newReference()
	}

	rec := &ledger.Record{
		Reference:          reference,
		UserID:             op.UserID,
		GuildID:            op.GuildID,
		CounterpartyID:     op.CounterpartyID,
		Kind:               op.Kind,
		Currency:           op.Currency,
		Amount:             op.Amount,
		Description:        op.Description,
		RequiresRestricted: needsCompliance(op.Currency, op.RestrictedContent),
		RestrictedContent:  op.RestrictedContent,
		ComplianceChecked:  needsCompliance(op.Currency, op.RestrictedContent),
		BalanceAfter:       newBalance,
		Status:             ledger.StatusCompleted,
		ReversalOf:         op.ReversalOf,
		CompletedAt:        time.Now(),
	}

	err = set.Ledger.Insert(tx, rec)
	if err != nil {
		return Result{}, err
	}

	return Result{Record: rec, NewBalance: newBalance}, nil
}
