// Package ledger records the outcome of every processed service day in a
// local SQLite database so backfills can resume where they stopped.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// OutcomeOK is the outcome Completed looks for.
const OutcomeOK = "ok"

// RunRecord is one (operator, date) run.
type RunRecord struct {
	RunID      string
	Operator   string
	Date       string
	Mode       string
	Outcome    string
	Reason     string
	Rows       int
	Sink       string
	StartedAt  time.Time
	FinishedAt time.Time
}

type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger at path and applies pending
// migrations.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	l := &Ledger{db: db}
	if err := l.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(l.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateUp does not close the migrate instance: that would close l.db.
func (l *Ledger) migrateUp() error {
	m, err := l.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Version returns the applied schema version.
func (l *Ledger) Version() (uint, bool, error) {
	m, err := l.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	logging.Logf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

func (l *Ledger) Close() error { return l.db.Close() }

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// Record stores rec, assigning a run id when it has none.
func (l *Ledger) Record(ctx context.Context, rec RunRecord) (RunRecord, error) {
	if rec.RunID == "" {
		rec.RunID = NewRunID()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, operator, service_date, mode, outcome, reason, row_count, sink, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Operator, rec.Date, rec.Mode, rec.Outcome, rec.Reason, rec.Rows, rec.Sink,
		rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return rec, fmt.Errorf("record run %s: %w", rec.RunID, err)
	}
	return rec, nil
}

// Completed reports whether (operator, date) has a successful run in mode on
// record.
func (l *Ledger) Completed(ctx context.Context, mode, operator, date string) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM runs WHERE mode = ? AND operator = ? AND service_date = ? AND outcome = ?`,
		mode, operator, date, OutcomeOK,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query ledger: %w", err)
	}
	return n > 0, nil
}

// Runs lists the runs of operator, oldest first.
func (l *Ledger) Runs(ctx context.Context, operator string) ([]RunRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, operator, service_date, mode, outcome, reason, row_count, sink, started_at, finished_at
		FROM runs WHERE operator = ? ORDER BY started_at, rowid`, operator)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var started, finished int64
		if err := rows.Scan(&r.RunID, &r.Operator, &r.Date, &r.Mode, &r.Outcome, &r.Reason, &r.Rows, &r.Sink, &started, &finished); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		r.FinishedAt = time.UnixMilli(finished).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
