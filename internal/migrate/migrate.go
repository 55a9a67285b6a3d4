// Package migrate applies ordered, named schema migrations exactly once,
// tracked in a persisted migration_history table, and supports reverse
// execution of the most recent migration.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/capawawa/growmies-economy/internal/infra/pgutils"
)

var (
	// ErrMigrationFailed wraps any failure while applying a migration. It is
	// fatal at startup: the process must not serve with an unmigrated schema.
	ErrMigrationFailed = errors.New("migration failed")
	ErrNoDownPath      = errors.New("migration defines no down path")
	ErrNothingToRoll   = errors.New("no migrations recorded")
	ErrDuplicateName   = errors.New("duplicate migration name")
)

// Migration is one named schema change. Up is required; Down is opt-in and
// only used by RollbackLast.
type Migration struct {
	Name string
	Up   string
	Down string
}

// Applied is one migration_history row.
type Applied struct {
	Name       string
	ExecutedAt time.Time
	Duration   time.Duration
}

type Runner struct {
	db         *sql.DB
	migrations []Migration
}

func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db, migrations: All()}
}

// NewRunnerWith uses an explicit migration list. Tests use it to exercise
// failure and rollback paths without touching the real schema set.
func NewRunnerWith(db *sql.DB, migrations []Migration) *Runner {
	return &Runner{db: db, migrations: migrations}
}

func (r *Runner) ensureHistory(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migration_history (
			name        TEXT PRIMARY KEY,
			executed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			duration_ms BIGINT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure history table: %w", err)
	}

	return nil
}

func (r *Runner) validate() error {
	seen := make(map[string]struct{}, len(r.migrations))

	for _, m := range r.migrations {
		if m.Name == "" || m.Up == "" {
			return fmt.Errorf("%w: migration with empty name or up", ErrMigrationFailed)
		}

		_, dup := seen[m.Name]
		if dup {
			return fmt.Errorf("%w: %s", ErrDuplicateName, m.Name)
		}

		seen[m.Name] = struct{}{}
	}

	return nil
}

func (r *Runner) appliedSet(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM migration_history`)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]struct{})

	for rows.Next() {
		var name string

		err = rows.Scan(&name)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}

		applied[name] = struct{}{}
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}

	return applied, nil
}

// Run applies every not-yet-recorded migration in declared order and returns
// the number applied. A failure aborts the run without recording the failed
// migration, leaving the already-applied prefix in place.
func (r *Runner) Run(ctx context.Context) (int, error) {
	err := r.validate()
	if err != nil {
		return 0, err
	}

	err = r.ensureHistory(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	applied, err := r.appliedSet(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	count := 0

	for _, m := range r.migrations {
		_, done := applied[m.Name]
		if done {
			continue
		}

		start := time.Now()

		err = pgutils.WithTx(ctx, r.db, func(tx *sql.Tx) error {
			_, execErr := tx.ExecContext(ctx, m.Up)
			if execErr != nil {
				return fmt.Errorf("exec up: %w", execErr)
			}

			_, execErr = tx.ExecContext(ctx, `
				INSERT INTO migration_history (name, executed_at, duration_ms)
				VALUES ($1, now(), $2)
			`, m.Name, time.Since(start).Milliseconds())
			if execErr != nil {
				return fmt.Errorf("record history: %w", execErr)
			}

			return nil
		})
		if err != nil {
			return count, fmt.Errorf("%w: %s: %v", ErrMigrationFailed, m.Name, err)
		}

		slog.Info("migration applied", "name", m.Name, "duration", time.Since(start))

		count++
	}

	return count, nil
}

// RollbackLast reverses the most recently recorded migration and deletes its
// history row. The migration must define a down path.
func (r *Runner) RollbackLast(ctx context.Context) (string, error) {
	var name string

	err := r.db.QueryRowContext(ctx, `
		SELECT name FROM migration_history
		ORDER BY executed_at DESC, name DESC
		LIMIT 1
	`).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNothingToRoll
		}

		return "", fmt.Errorf("find last migration: %w", err)
	}

	var target *Migration

	for i := range r.migrations {
		if r.migrations[i].Name == name {
			target = &r.migrations[i]
			break
		}
	}

	if target == nil {
		return "", fmt.Errorf("recorded migration %q not in declared list", name)
	}

	if target.Down == "" {
		return "", fmt.Errorf("%w: %s", ErrNoDownPath, name)
	}

	// Destructive by design; make it impossible to miss in the logs.
	slog.Warn("ROLLING BACK migration, down path is destructive", "name", name)

	err = pgutils.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, execErr := tx.ExecContext(ctx, target.Down)
		if execErr != nil {
			return fmt.Errorf("exec down: %w", execErr)
		}

		_, execErr = tx.ExecContext(ctx, `DELETE FROM migration_history WHERE name = $1`, name)
		if execErr != nil {
			return fmt.Errorf("delete history row: %w", execErr)
		}

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("rollback %s: %w", name, err)
	}

	return name, nil
}

// History returns every recorded migration, oldest first.
func (r *Runner) History(ctx context.Context) ([]Applied, error) {
	err := r.ensureHistory(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT name, executed_at, duration_ms
		FROM migration_history
		ORDER BY executed_at, name
	`)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer rows.Close()

	var out []Applied

	for rows.Next() {
		var (
			a  Applied
			ms int64
		)

		err = rows.Scan(&a.Name, &a.ExecutedAt, &ms)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}

		a.Duration = time.Duration(ms) * time.Millisecond

		out = append(out, a)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}

	return out, nil
}

// Pending lists declared migrations that have not been recorded yet.
func (r *Runner) Pending(ctx context.Context) ([]string, error) {
	err := r.ensureHistory(ctx)
	if err != nil {
		return nil, err
	}

	applied, err := r.appliedSet(ctx)
	if err != nil {
		return nil, err
	}

	var out []string

	for _, m := range r.migrations {
		_, done := applied[m.Name]
		if !done {
			out = append(out, m.Name)
		}
	}

	return out, nil
}
