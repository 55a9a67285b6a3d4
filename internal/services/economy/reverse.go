package economy

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/capawawa/growmies-economy/internal/infra/pgutils"
	"github.com/capawawa/growmies-economy/internal/repos/ledger"
)

// Reverse compensates a completed record: the original row keeps its amounts
// and flips to reversed status, and a new record moves the value back. A
// reversed debit comes back as a refund; a reversed credit is clawed back as
// a penalty.
func (s *Service) Reverse(ctx context.Context, reference string) (Result, error) {
	set := s.mgr.Accessors()

	if set.Degraded {
		return Result{}, nil
	}

	original, err := set.Ledger.ByReference(ctx, reference)
	if err != nil {
		s.mgr.RecordQuery(err)
		return Result{}, fmt.Errorf("reverse %s: %w", reference, err)
	}

	if original.Status != ledger.StatusCompleted {
		return Result{}, fmt.Errorf("%w: %s is %s", ErrNotReversible, reference, original.Status)
	}

	direction, known := ledger.KindDirection(original.Kind)
	if !known {
		return Result{}, fmt.Errorf("%w: %q", ledger.ErrUnknownKind, original.Kind)
	}

	compensatingKind := ledger.OpRefund
	if direction == ledger.Credit {
		compensatingKind = ledger.OpPenalty
	}

	var result Result

	err = pgutils.WithTx(ctx, set.DB, func(tx *sql.Tx) error {
		txErr := set.Ledger.MarkReversed(tx, reference)
		if txErr != nil {
			return txErr
		}

		result, txErr = s.applyInTx(tx, set, Operation{
			UserID:      original.UserID,
			GuildID:     original.GuildID,
			Kind:        compensatingKind,
			Currency:    original.Currency,
			Amount:      original.Amount,
			Description: fmt.Sprintf("reversal of %s", reference),
			ReversalOf:  reference,
		})

		return txErr
	})

	s.mgr.RecordQuery(err)

	if err != nil {
		return Result{}, fmt.Errorf("reverse %s: %w", reference, err)
	}

	return result, nil
}
