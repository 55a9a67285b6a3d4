// Package persistence owns the database handle's lifecycle: connection with
// exponential backoff, schema migration at startup, background health checks
// and retention maintenance, and a degraded mode that swaps every data
// accessor for a non-failing stand-in while the store is unreachable.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/capawawa/growmies-economy/internal/infra/pgutils"
	"github.com/capawawa/growmies-economy/internal/migrate"
	"github.com/capawawa/growmies-economy/internal/repos/accounts"
	degradedaccounts "github.com/capawawa/growmies-economy/internal/repos/accounts/degraded"
	pgaccounts "github.com/capawawa/growmies-economy/internal/repos/accounts/postgres"
	"github.com/capawawa/growmies-economy/internal/repos/ledger"
	degradedledger "github.com/capawawa/growmies-economy/internal/repos/ledger/degraded"
	pgledger "github.com/capawawa/growmies-economy/internal/repos/ledger/postgres"
)

// ErrUnavailable is only surfaced if no accessor set at all, live or
// degraded, can be handed out. With constructible stand-ins this should
// never be observed by callers.
var ErrUnavailable = errors.New("persistence unavailable")

// State is the manager's lifecycle position.
type State int32

const (
	StateUninitialized State = iota
	StateConnecting
	StateConnected
	StateDegraded
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Accessors is the data-accessor set handed to components at call time.
// Components must not cache it across calls; the manager swaps it on
// degraded/recovered transitions.
type Accessors struct {
	DB       *sql.DB
	Accounts accounts.Accounts
	Ledger   ledger.Records
	Degraded bool
}

type Config struct {
	DSN string

	MaxConnectAttempts int
	ConnectBackoff     time.Duration
	ConnectBackoffCap  time.Duration
	ConnectTimeout     time.Duration

	HealthInterval      time.Duration
	MaintenanceInterval time.Duration
	RetentionAge        time.Duration
	ReconnectInterval   time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConnectAttempts <= 0 {
		c.MaxConnectAttempts = 5
	}
	if c.ConnectBackoff <= 0 {
		c.ConnectBackoff = time.Second
	}
	if c.ConnectBackoffCap <= 0 {
		c.ConnectBackoffCap = 30 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = 30 * time.Second
	}
	if c.MaintenanceInterval <= 0 {
		c.MaintenanceInterval = 6 * time.Hour
	}
	if c.RetentionAge <= 0 {
		c.RetentionAge = 90 * 24 * time.Hour
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = time.Minute
	}

	return c
}

// Status is the observability surface for monitoring collaborators.
type Status struct {
	State           string    `json:"state"`
	Connected       bool      `json:"connected"`
	Degraded        bool      `json:"degraded"`
	AttemptCount    int       `json:"attemptCount"`
	LastHealthCheck time.Time `json:"lastHealthCheck"`
	Queries         uint64    `json:"queries"`
	QueryErrors     uint64    `json:"queryErrors"`
}

type Manager struct {
	cfg     Config
	metrics *Metrics

	mu        sync.RWMutex
	state     State
	db        *sql.DB
	accessors Accessors

	attempts   int
	lastHealth time.Time

	queries     atomic.Uint64
	queryErrors atomic.Uint64

	healthStop      chan struct{}
	maintenanceStop chan struct{}
	reconnectStop   chan struct{}
	wg              sync.WaitGroup
}

func NewManager(cfg Config, metrics *Metrics) *Manager {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Manager{
		cfg:     cfg.withDefaults(),
		metrics: metrics,
		state:   StateUninitialized,
	}
}

// Initialize connects with bounded exponential backoff. On success it runs
// the schema migrator and starts the background timers; a migration failure
// is fatal and returned. On exhausted attempts it installs the degraded
// accessor set, starts the reconnect timer, and returns nil: the process
// stays available with reduced fidelity.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	m.state = StateConnecting
	m.mu.Unlock()

	db, attempts, err := pgutils.ConnectWithRetry(
		ctx, m.cfg.DSN,
		m.cfg.MaxConnectAttempts, m.cfg.ConnectBackoff, m.cfg.ConnectBackoffCap, m.cfg.ConnectTimeout,
	)

	m.mu.Lock()
	m.attempts += attempts
	m.mu.Unlock()

	m.metrics.ReconnectAttempts.Add(float64(attempts))

	if err != nil {
		if !errors.Is(err, pgutils.ErrConnectionExhausted) {
			return fmt.Errorf("initialize: %w", err)
		}

		slog.Error("store unreachable, entering degraded mode", "attempts", attempts, "error", err)
		m.enterDegraded()

		return nil
	}

	err = m.runMigrations(ctx, db)
	if err != nil {
		db.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	m.installLive(db)

	slog.Info("persistence connected", "attempts", attempts)

	return nil
}

func (m *Manager) runMigrations(ctx context.Context, db *sql.DB) error {
	applied, err := migrate.NewRunner(db).Run(ctx)
	if err != nil {
		return err
	}

	if applied > 0 {
		slog.Info("schema migrations applied", "count", applied)
	}

	return nil
}

func (m *Manager) installLive(db *sql.DB) {
	m.mu.Lock()
	m.db = db
	m.accessors = Accessors{
		DB:       db,
		Accounts: pgaccounts.New(db),
		Ledger:   pgledger.New(db),
	}
	m.state = StateConnected
	m.mu.Unlock()

	m.metrics.Degraded.Set(0)

	m.startHealthLoop()
	m.startMaintenanceLoop()
}

func (m *Manager) enterDegraded() {
	m.mu.Lock()
	m.db = nil
	m.accessors = Accessors{
		Accounts: degradedaccounts.New(),
		Ledger:   degradedledger.New(),
		Degraded: true,
	}
	m.state = StateDegraded
	m.mu.Unlock()

	m.metrics.Degraded.Set(1)

	m.startReconnectLoop()
}

// Accessors returns the current data-accessor set. Before Initialize (or
// after Shutdown) it hands out the degraded stand-ins so callers never
// receive nils.
func (m *Manager) Accessors() Accessors {
	m.mu.RLock()
	set := m.accessors
	m.mu.RUnlock()

	if set.Accounts == nil || set.Ledger == nil {
		return Accessors{
			Accounts: degradedaccounts.New(),
			Ledger:   degradedledger.New(),
			Degraded: true,
		}
	}

	return set
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Status{
		State:           m.state.String(),
		Connected:       m.state == StateConnected,
		Degraded:        m.state == StateDegraded,
		AttemptCount:    m.attempts,
		LastHealthCheck: m.lastHealth,
		Queries:         m.queries.Load(),
		QueryErrors:     m.queryErrors.Load(),
	}
}

// RecordQuery tallies one unit of work executed through the accessor set.
// Validation rejections are not store failures and should be tallied with
// err == nil.
func (m *Manager) RecordQuery(err error) {
	m.queries.Add(1)
	m.metrics.Queries.Inc()

	if err != nil {
		m.queryErrors.Add(1)
		m.metrics.QueryErrors.Inc()
	}
}

// Shutdown cancels all timers, waits for them, and closes the connection if
// open. Safe to call multiple times.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()

	if m.state == StateShuttingDown {
		m.mu.Unlock()
		return nil
	}

	m.state = StateShuttingDown

	for _, stop := range []*chan struct{}{&m.healthStop, &m.maintenanceStop, &m.reconnectStop} {
		if *stop != nil {
			close(*stop)
			*stop = nil
		}
	}

	db := m.db
	m.db = nil
	m.accessors = Accessors{}

	m.mu.Unlock()

	done := make(chan struct{})

	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("shutdown wait: %w", ctx.Err())
	}

	if db != nil {
		err := db.Close()
		if err != nil {
			return fmt.Errorf("close db: %w", err)
		}
	}

	return nil
}

// --- Background loops ---
// Each loop is started at most once at a time; the presence check on the
// stop channel makes a second start a no-op.

func (m *Manager) startHealthLoop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.healthStop != nil || m.state == StateShuttingDown {
		return
	}

	stop := make(chan struct{})
	m.healthStop = stop

	m.wg.Add(1)

	go m.healthLoop(stop)
}

func (m *Manager) healthLoop(stop chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.healthCheck()
		}
	}
}

// healthCheck probes connectivity. Failures count against the error metric
// but do not flip the manager to degraded; only connection establishment
// failures do that.
func (m *Manager) healthCheck() {
	m.mu.RLock()
	db := m.db
	m.mu.RUnlock()

	if db == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		m.metrics.HealthFailures.Inc()
		slog.Warn("health check failed", "error", err)

		return
	}

	now := time.Now()

	m.mu.Lock()
	m.lastHealth = now
	m.mu.Unlock()

	m.metrics.LastHealthCheck.Set(float64(now.Unix()))
}

func (m *Manager) startMaintenanceLoop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maintenanceStop != nil || m.state == StateShuttingDown {
		return
	}

	stop := make(chan struct{})
	m.maintenanceStop = stop

	m.wg.Add(1)

	go m.maintenanceLoop(stop)
}

func (m *Manager) maintenanceLoop(stop chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.maintenance()
		}
	}
}

func (m *Manager) maintenance() {
	set := m.Accessors()
	if set.Degraded {
		// Retention can wait for recovery.
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
	defer cancel()

	cutoff := time.Now().Add(-m.cfg.RetentionAge)

	purged, err := set.Ledger.PurgeExpired(ctx, cutoff)
	if err != nil {
		slog.Warn("retention sweep failed", "error", err)
		return
	}

	if purged > 0 {
		m.metrics.PurgedRecords.Add(float64(purged))
		slog.Info("retention sweep removed stale records", "count", purged, "cutoff", cutoff)
	}
}

func (m *Manager) startReconnectLoop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reconnectStop != nil || m.state == StateShuttingDown {
		return
	}

	stop := make(chan struct{})
	m.reconnectStop = stop

	m.wg.Add(1)

	go m.reconnectLoop(stop)
}

func (m *Manager) reconnectLoop(stop chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.ReconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if m.tryRecover() {
				m.mu.Lock()
				// The loop owns its channel; clear it so the next degraded
				// episode can start a fresh one.
				if m.reconnectStop != nil {
					close(m.reconnectStop)
					m.reconnectStop = nil
				}
				m.mu.Unlock()

				return
			}
		}
	}
}

// tryRecover makes one connection attempt. On success it re-runs pending
// migrations and swaps the live accessors back in; recovery needs no process
// restart.
func (m *Manager) tryRecover() bool {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
	defer cancel()

	m.metrics.ReconnectAttempts.Inc()

	m.mu.Lock()
	m.attempts++
	m.mu.Unlock()

	db, err := pgutils.OpenDB(ctx, m.cfg.DSN)
	if err != nil {
		slog.Debug("reconnect attempt failed", "error", err)
		return false
	}

	err = m.runMigrations(ctx, db)
	if err != nil {
		slog.Error("reconnected but migrations failed, staying degraded", "error", err)
		db.Close()

		return false
	}

	m.installLive(db)

	slog.Info("store recovered, degraded mode disengaged")

	return true
}
