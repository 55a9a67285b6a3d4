package ledger

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/capawawa/growmies-economy/internal/infra/pgtestutil"
	"github.com/capawawa/growmies-economy/internal/repos/accounts"
	"github.com/capawawa/growmies-economy/internal/repos/ledger"
)

func insertRecord(t *testing.T, db *sql.DB, repo *recordsRepo, rec *ledger.Record) {
	t.Helper()

	tx, err := db.BeginTx(t.Context(), nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}

	err = repo.Insert(tx, rec)
	if err != nil {
		_ = tx.Rollback()
		t.Fatalf("insert record %s: %v", rec.Reference, err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func sampleRecord(reference string) *ledger.Record {
	return &ledger.Record{
		Reference:    reference,
		UserID:       "u1",
		GuildID:      "g1",
		Kind:         ledger.OpPurchase,
		Currency:     accounts.CurrencyCoins,
		Amount:       50,
		Description:  "test purchase",
		BalanceAfter: 450,
		Status:       ledger.StatusCompleted,
		CompletedAt:  time.Now(),
	}
}

func TestRecords_Insert_FillsIDAndCreatedAt(t *testing.T) {
	t.Parallel()

	db, _, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	rec := sampleRecord("ref-1")
	insertRecord(t, db, repo, rec)

	if rec.ID == 0 {
		t.Fatal("want ID filled in after insert")
	}
	if rec.CreatedAt.IsZero() {
		t.Fatal("want CreatedAt filled in after insert")
	}
}

func TestRecords_Insert_DuplicateReference(t *testing.T) {
	t.Parallel()

	db, _, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	insertRecord(t, db, repo, sampleRecord("ref-dup"))

	tx, err := db.BeginTx(t.Context(), nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = repo.Insert(tx, sampleRecord("ref-dup"))
	if !errors.Is(err, ledger.ErrDuplicateReference) {
		t.Fatalf("want ErrDuplicateReference, got %v", err)
	}
}

func TestRecords_ByReference(t *testing.T) {
	t.Parallel()

	db, _, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	rec := sampleRecord("ref-lookup")
	rec.CounterpartyID = "u2"
	insertRecord(t, db, repo, rec)

	got, err := repo.ByReference(t.Context(), "ref-lookup")
	if err != nil {
		t.Fatalf("by reference: %v", err)
	}

	if got.UserID != "u1" || got.CounterpartyID != "u2" || got.Amount != 50 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Kind != ledger.OpPurchase || got.Status != ledger.StatusCompleted {
		t.Fatalf("unexpected kind/status: %s/%s", got.Kind, got.Status)
	}
	if got.CompletedAt.IsZero() {
		t.Fatal("completed_at should round-trip for completed records")
	}

	_, err = repo.ByReference(t.Context(), "missing")
	if !errors.Is(err, ledger.ErrRecordNotFound) {
		t.Fatalf("want ErrRecordNotFound, got %v", err)
	}
}

func TestRecords_History_NewestFirst(t *testing.T) {
	t.Parallel()

	db, _, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	for _, ref := range []string{"h1", "h2", "h3"} {
		insertRecord(t, db, repo, sampleRecord(ref))
	}
	insertRecord(t, db, repo, &ledger.Record{
		Reference: "other-user", UserID: "u9", GuildID: "g1",
		Kind: ledger.OpSale, Currency: accounts.CurrencyCoins,
		Amount: 1, Status: ledger.StatusCompleted,
	})

	records, err := repo.History(t.Context(), "u1", "g1", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("want 2 records, got %d", len(records))
	}
	if records[0].Reference != "h3" || records[1].Reference != "h2" {
		t.Fatalf("want newest first [h3 h2], got [%s %s]", records[0].Reference, records[1].Reference)
	}
}

func TestRecords_MarkReversed(t *testing.T) {
	t.Parallel()

	db, _, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	insertRecord(t, db, repo, sampleRecord("ref-rev"))

	tx, err := db.BeginTx(t.Context(), nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}

	err = repo.MarkReversed(tx, "ref-rev")
	if err != nil {
		t.Fatalf("mark reversed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := repo.ByReference(t.Context(), "ref-rev")
	if err != nil {
		t.Fatalf("by reference: %v", err)
	}
	if got.Status != ledger.StatusReversed {
		t.Fatalf("want status reversed, got %s", got.Status)
	}
	// Amounts stay untouched; only the status flips.
	if got.Amount != 50 || got.BalanceAfter != 450 {
		t.Fatalf("reversal must not touch amounts: %+v", got)
	}

	// Already reversed: the row exists but is no longer reversible.
	tx2, err := db.BeginTx(t.Context(), nil)
	if err != nil {
		t.Fatalf("begin tx2: %v", err)
	}
	defer func() { _ = tx2.Rollback() }()

	err = repo.MarkReversed(tx2, "ref-rev")
	if !errors.Is(err, ledger.ErrNotReversible) {
		t.Fatalf("want ErrNotReversible on double reversal, got %v", err)
	}

	err = repo.MarkReversed(tx2, "no-such-ref")
	if !errors.Is(err, ledger.ErrRecordNotFound) {
		t.Fatalf("want ErrRecordNotFound for unknown reference, got %v", err)
	}
}

func TestRecords_PurgeExpired(t *testing.T) {
	t.Parallel()

	db, _, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	age := func(t *testing.T, reference string, d time.Duration) {
		t.Helper()

		_, err := db.Exec(`UPDATE transactions SET created_at = now() - $2::interval WHERE reference = $1`,
			reference, d.String())
		if err != nil {
			t.Fatalf("age record %s: %v", reference, err)
		}
	}

	mk := func(reference string, status ledger.Status, restricted bool) *ledger.Record {
		rec := sampleRecord(reference)
		rec.Status = status
		rec.RequiresRestricted = restricted
		return rec
	}

	for _, rec := range []*ledger.Record{
		mk("old-failed", ledger.StatusFailed, false),        // purged
		mk("old-cancelled", ledger.StatusCancelled, false),  // purged
		mk("old-pending", ledger.StatusPending, false),      // purged
		mk("old-completed", ledger.StatusCompleted, false),  // audit trail, kept
		mk("old-failed-restricted", ledger.StatusFailed, true), // compliance flag, kept
		mk("fresh-failed", ledger.StatusFailed, false),      // too young, kept
	} {
		insertRecord(t, db, repo, rec)
	}

	for _, ref := range []string{"old-failed", "old-cancelled", "old-pending", "old-completed", "old-failed-restricted"} {
		age(t, ref, 48*time.Hour)
	}

	purged, err := repo.PurgeExpired(t.Context(), time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 3 {
		t.Fatalf("want 3 purged, got %d", purged)
	}

	for _, ref := range []string{"old-completed", "old-failed-restricted", "fresh-failed"} {
		_, err = repo.ByReference(t.Context(), ref)
		if err != nil {
			t.Fatalf("record %s should survive purge: %v", ref, err)
		}
	}

	ctx := context.Background()

	var remaining int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&remaining)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 3 {
		t.Fatalf("want 3 remaining rows, got %d", remaining)
	}
}
