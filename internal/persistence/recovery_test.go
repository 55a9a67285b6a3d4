package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capawawa/growmies-economy/internal/infra/pgtestutil"
)

// TestManager_ReconnectRecoversFromDegraded starts the manager against a
// database that does not exist yet, then creates it and waits for the
// reconnect timer to swap the live accessors back in.
func TestManager_ReconnectRecoversFromDegraded(t *testing.T) {
	t.Parallel()

	adminDSN, err := pgtestutil.ReplaceDBInDSN(pgtestutil.BaseDSN, "postgres")
	require.NoError(t, err)

	admin, err := sql.Open("pgx", adminDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = admin.Close() })

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	err = admin.PingContext(ctx)
	if err != nil {
		t.Skipf("postgres not reachable at %s: %v", pgtestutil.BaseDSN, err)
	}

	dbName := fmt.Sprintf("testdb_recovery_%d", time.Now().UnixNano())

	dsn, err := pgtestutil.ReplaceDBInDSN(pgtestutil.BaseDSN, dbName)
	require.NoError(t, err)

	mgr := NewManager(Config{
		DSN:                dsn,
		MaxConnectAttempts: 1,
		ConnectBackoff:     time.Millisecond,
		ConnectTimeout:     5 * time.Second,
		ReconnectInterval:  50 * time.Millisecond,
	}, NewMetrics(nil))

	t.Cleanup(func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = mgr.Shutdown(sctx)
	})

	// The target database is missing, so startup lands in degraded mode.
	require.NoError(t, mgr.Initialize(ctx))
	require.True(t, mgr.Status().Degraded)
	require.True(t, mgr.Accessors().Degraded)

	_, err = admin.ExecContext(ctx, fmt.Sprintf(`CREATE DATABASE "%s" WITH TEMPLATE template0 ENCODING 'UTF8'`, dbName))
	require.NoError(t, err)

	t.Cleanup(func() {
		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dcancel()
		_, _ = admin.ExecContext(dctx, fmt.Sprintf(`DROP DATABASE IF EXISTS "%s" WITH (FORCE)`, dbName))
	})

	deadline := time.Now().Add(20 * time.Second)
	for !mgr.Status().Connected && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	status := mgr.Status()
	require.True(t, status.Connected, "reconnect timer should restore live mode, state %s", status.State)
	assert.False(t, status.Degraded)

	set := mgr.Accessors()
	assert.False(t, set.Degraded, "live accessors replace the stand-ins")
	require.NotNil(t, set.DB)

	// Recovery also brought the schema up before going live.
	var applied int
	require.NoError(t, set.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM migration_history`).Scan(&applied))
	assert.Positive(t, applied)

	// The live account store answers real queries now.
	_, err = set.Accounts.Get(ctx, "nobody", "nowhere")
	require.Error(t, err, "live store reports missing accounts instead of stand-in zeros")
}
