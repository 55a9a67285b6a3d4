package economy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/capawawa/growmies-economy/internal/infra/pgutils"
	"github.com/capawawa/growmies-economy/internal/persistence"
	"github.com/capawawa/growmies-economy/internal/repos/accounts"
	"github.com/capawawa/growmies-economy/internal/repos/ledger"
)

// TransferRequest moves value between two accounts in the same guild. Gift
// transfers additionally bump both parties' gift counters.
type TransferRequest struct {
	SenderID    string
	RecipientID string
	GuildID     string

	Currency accounts.Currency
	Amount   int64

	Description string
	Gift        bool
}

// TransferResult links the two records produced by one transfer.
type TransferResult struct {
	OutRecord        *ledger.Record
	InRecord         *ledger.Record
	SenderBalance    int64
	RecipientBalance int64
}

// Transfer debits the sender and credits the recipient in one transaction,
// producing two cross-referenced records. Either both legs commit or neither
// does, so the guild total is conserved.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	if req.Amount <= 0 {
		return TransferResult{}, fmt.Errorf("%w: got %d", ErrInvalidAmount, req.Amount)
	}

	if req.SenderID == req.RecipientID || req.RecipientID == "" {
		return TransferResult{}, ErrInvalidCounterparty
	}

	// Restricted currency needs the capability on both sides: the sender to
	// part with it, the recipient to hold it.
	if req.Currency == accounts.CurrencySeeds {
		for _, userID := range []string{req.SenderID, req.RecipientID} {
			err := s.requireRestrictedAccess(ctx, userID, req.GuildID)
			if err != nil {
				return TransferResult{}, err
			}
		}
	}

	set := s.mgr.Accessors()

	if set.Degraded {
		return TransferResult{}, nil
	}

	var result TransferResult

	err := pgutils.WithTx(ctx, set.DB, func(tx *sql.Tx) error {
		var txErr error

		result, txErr = s.transferInTx(tx, set, req)

		return txErr
	})

	s.mgr.RecordQuery(err)

	if err != nil {
		return TransferResult{}, fmt.Errorf("transfer: %w", err)
	}

	return result, nil
}

func (s *Service) transferInTx(tx *sql.Tx, set persistence.Accessors, req TransferRequest) (TransferResult, error) {
	for _, userID := range []string{req.SenderID, req.RecipientID} {
		err := s.ensureAccount(tx, set, userID, req.GuildID)
		if err != nil {
			return TransferResult{}, err
		}
	}

	// Lock both rows in a stable order so concurrent opposite-direction
	// transfers cannot deadlock.
	first, second := req.SenderID, req.RecipientID
	if second < first {
		first, second = second, first
	}

	locked := make(map[string]*accounts.Account, 2)

	for _, userID := range []string{first, second} {
		acct, err := set.Accounts.LockForUpdate(tx, userID, req.GuildID)
		if err != nil {
			return TransferResult{}, err
		}

		locked[userID] = acct
	}

	sender, recipient := locked[req.SenderID], locked[req.RecipientID]

	if sender.Balance(req.Currency) < req.Amount {
		return TransferResult{}, fmt.Errorf("%w: have %d %s, need %d",
			accounts.ErrInsufficientFunds, sender.Balance(req.Currency), req.Currency, req.Amount)
	}

	err := set.Accounts.Debit(tx, req.SenderID, req.GuildID, req.Currency, req.Amount)
	if err != nil {
		return TransferResult{}, err
	}

	err = set.Accounts.Credit(tx, req.RecipientID, req.GuildID, req.Currency, req.Amount)
	if err != nil {
		return TransferResult{}, err
	}

	outKind, inKind := ledger.OpTransferOut, ledger.OpTransferIn

	if req.Gift {
		outKind, inKind = ledger.OpGiftOut, ledger.OpGiftIn

		err = set.Accounts.IncrementGifts(tx, req.SenderID, req.RecipientID, req.GuildID)
		if err != nil {
			return TransferResult{}, err
		}
	}

	pair := newReference()
	restricted := req.Currency == accounts.CurrencySeeds
	now := time.Now()

	out := &ledger.Record{
		Reference:          pair + ":out",
		UserID:             req.SenderID,
		GuildID:            req.GuildID,
		CounterpartyID:     req.RecipientID,
		Kind:               outKind,
		Currency:           req.Currency,
		Amount:             req.Amount,
		Description:        req.Description,
		RequiresRestricted: restricted,
		ComplianceChecked:  restricted,
		BalanceAfter:       sender.Balance(req.Currency) - req.Amount,
		Status:             ledger.StatusCompleted,
		CompletedAt:        now,
	}

	in := &ledger.Record{
		Reference:          pair + ":in",
		UserID:             req.RecipientID,
		GuildID:            req.GuildID,
		CounterpartyID:     req.SenderID,
		Kind:               inKind,
		Currency:           req.Currency,
		Amount:             req.Amount,
		Description:        req.Description,
		RequiresRestricted: restricted,
		ComplianceChecked:  restricted,
		BalanceAfter:       recipient.Balance(req.Currency) + req.Amount,
		Status:             ledger.StatusCompleted,
		CompletedAt:        now,
	}

	for _, rec := range []*ledger.Record{out, in} {
		err = set.Ledger.Insert(tx, rec)
		if err != nil {
			return TransferResult{}, err
		}
	}

	return TransferResult{
		OutRecord:        out,
		InRecord:         in,
		SenderBalance:    out.BalanceAfter,
		RecipientBalance: in.BalanceAfter,
	}, nil
}
