package migrate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/capawawa/growmies-economy/internal/infra/pgtestutil"
	. "github.com/capawawa/growmies-economy/internal/migrate"
)

func TestRunner_Run_IdempotentSecondPass(t *testing.T) {
	t.Parallel()

	db, _, cleanup := pgtestutil.NewBareDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(t.Context(), 15*time.Second)
	defer cancel()

	runner := NewRunner(db)

	applied, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if applied != len(All()) {
		t.Fatalf("want %d applied, got %d", len(All()), applied)
	}

	applied, err = runner.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if applied != 0 {
		t.Fatalf("second run must be a no-op, applied %d", applied)
	}

	history, err := runner.History(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != len(All()) {
		t.Fatalf("want %d history rows, got %d", len(All()), len(history))
	}
	for i, a := range history {
		if a.Name != All()[i].Name {
			t.Fatalf("history order mismatch at %d: want %s, got %s", i, All()[i].Name, a.Name)
		}
		if a.ExecutedAt.IsZero() {
			t.Fatalf("history row %s missing executed_at", a.Name)
		}
	}

	pending, err := runner.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("want no pending migrations, got %v", pending)
	}
}

func TestRunner_Run_FailureAbortsWithoutRecording(t *testing.T) {
	t.Parallel()

	db, _, cleanup := pgtestutil.NewBareDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(t.Context(), 15*time.Second)
	defer cancel()

	runner := NewRunnerWith(db, []Migration{
		{Name: "001_ok", Up: `CREATE TABLE IF NOT EXISTS t_ok (id INT)`, Down: `DROP TABLE IF EXISTS t_ok`},
		{Name: "002_broken", Up: `CREATE TABLE (syntax error`},
		{Name: "003_never_reached", Up: `CREATE TABLE IF NOT EXISTS t_unreached (id INT)`},
	})

	applied, err := runner.Run(ctx)
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("want ErrMigrationFailed, got %v", err)
	}
	if applied != 1 {
		t.Fatalf("want 1 applied before failure, got %d", applied)
	}

	pending, err := runner.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("want broken and unreached pending, got %v", pending)
	}
}

func TestRunner_RollbackLast(t *testing.T) {
	t.Parallel()

	db, _, cleanup := pgtestutil.NewBareDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(t.Context(), 15*time.Second)
	defer cancel()

	migrations := []Migration{
		{Name: "001_first", Up: `CREATE TABLE IF NOT EXISTS t_first (id INT)`, Down: `DROP TABLE IF EXISTS t_first`},
		{Name: "002_second", Up: `CREATE TABLE IF NOT EXISTS t_second (id INT)`, Down: `DROP TABLE IF EXISTS t_second`},
	}

	runner := NewRunnerWith(db, migrations)

	_, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	name, err := runner.RollbackLast(ctx)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if name != "002_second" {
		t.Fatalf("want newest rolled back, got %s", name)
	}

	var exists bool
	err = db.QueryRowContext(ctx, `SELECT EXISTS (
		SELECT FROM information_schema.tables WHERE table_name = 't_second'
	)`).Scan(&exists)
	if err != nil {
		t.Fatalf("check table: %v", err)
	}
	if exists {
		t.Fatal("t_second should be dropped after rollback")
	}

	// The rolled-back migration is pending again.
	pending, err := runner.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0] != "002_second" {
		t.Fatalf("want [002_second] pending, got %v", pending)
	}

	name, err = runner.RollbackLast(ctx)
	if err != nil {
		t.Fatalf("rollback first: %v", err)
	}
	if name != "001_first" {
		t.Fatalf("want 001_first, got %s", name)
	}

	_, err = runner.RollbackLast(ctx)
	if !errors.Is(err, ErrNothingToRoll) {
		t.Fatalf("want ErrNothingToRoll on empty history, got %v", err)
	}
}

func TestRunner_RollbackLast_NoDownPath(t *testing.T) {
	t.Parallel()

	db, _, cleanup := pgtestutil.NewBareDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(t.Context(), 15*time.Second)
	defer cancel()

	runner := NewRunnerWith(db, []Migration{
		{Name: "001_one_way", Up: `CREATE TABLE IF NOT EXISTS t_one_way (id INT)`},
	})

	_, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	_, err = runner.RollbackLast(ctx)
	if !errors.Is(err, ErrNoDownPath) {
		t.Fatalf("want ErrNoDownPath, got %v", err)
	}
}

func TestRunner_Validate_RejectsDuplicateNames(t *testing.T) {
	t.Parallel()

	db, _, cleanup := pgtestutil.NewBareDB(t)
	defer cleanup()

	runner := NewRunnerWith(db, []Migration{
		{Name: "001_same", Up: `SELECT 1`},
		{Name: "001_same", Up: `SELECT 1`},
	})

	_, err := runner.Run(t.Context())
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("want ErrDuplicateName, got %v", err)
	}
}
