// Package auditlog persists a record of proxied requests to SQLite.
package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"prismgate/pkg/proxy"
)

// recordQueueSize bounds the in-flight write queue. When the queue is full
// new entries are dropped rather than blocking the request path.
const recordQueueSize = 256

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id          TEXT PRIMARY KEY,
	recorded_at DATETIME NOT NULL,
	request_id  TEXT,
	path        TEXT NOT NULL,
	target      TEXT NOT NULL,
	method      TEXT NOT NULL,
	model       TEXT,
	status      INTEGER NOT NULL,
	converted   INTEGER NOT NULL,
	stream      INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_log_recorded_at ON audit_log(recorded_at);
`

// Store is an append-only audit trail backed by SQLite. Writes are applied
// by a single background goroutine fed from a bounded queue.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	queue   chan proxy.AuditEntry
	done    chan struct{}
	stopped chan struct{}
}

// Open opens (creating if necessary) the audit database at path and starts
// the background writer.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	s := &Store{
		db:      db,
		logger:  logger,
		queue:   make(chan proxy.AuditEntry, recordQueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.writer()
	return s, nil
}

// Record queues an entry for persistence. It never blocks; entries are
// dropped with a warning if the writer cannot keep up.
func (s *Store) Record(_ context.Context, e proxy.AuditEntry) {
	select {
	case s.queue <- e:
	default:
		s.logger.Warn("audit queue full, dropping entry", "path", e.Path)
	}
}

func (s *Store) writer() {
	defer close(s.stopped)
	for {
		select {
		case e := <-s.queue:
			s.insert(e)
		case <-s.done:
			// Drain whatever is still queued before shutdown.
			for {
				select {
				case e := <-s.queue:
					s.insert(e)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) insert(e proxy.AuditEntry) {
	_, err := s.db.Exec(
		`INSERT INTO audit_log
		 (id, recorded_at, request_id, path, target, method, model, status, converted, stream, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		time.Now().UTC(),
		e.RequestID,
		e.Path,
		e.Target,
		e.Method,
		e.Model,
		e.Status,
		e.Converted,
		e.Stream,
		e.Duration.Milliseconds(),
	)
	if err != nil {
		s.logger.Error("failed to write audit entry", "error", err)
	}
}

// Prune deletes entries recorded before the cutoff and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_log WHERE recorded_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit log: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&n)
	return n, err
}

// Close stops the background writer, waits for queued entries to land,
// and closes the database.
func (s *Store) Close() error {
	close(s.done)
	<-s.stopped
	return s.db.Close()
}
