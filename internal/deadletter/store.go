// Package deadletter implements the best-effort audit store for
// undeliverable or discarded actor messages. It is never a mailbox
// substitute: writes are fire-and-forget, and a full or unavailable store
// never blocks the actor loop that reports into it.
package deadletter

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// DefaultQueueSize bounds the number of pending records buffered between
// the actor runtime and the background writer goroutine.
const DefaultQueueSize = 256

type record struct {
	correlationID                      string
	actorID, msgType, senderID, reason string
	recordedAt                         time.Time
}

// DeadLetterRecord is a single row read back from the audit store. Its
// correlation id lets tooling cross-reference a dropped message against
// other logs.
type DeadLetterRecord struct {
	CorrelationID string
	ActorID       string
	MessageType   string
	SenderID      string
	Reason        string
	RecordedAt    time.Time
}

// Store is a SQLite-backed, append-only log of dead letters. It implements
// actor.DeadLetterSink without importing the actor package, so the actor
// runtime has no compile-time dependency on persistence.
type Store struct {
	db     *sql.DB
	queue  chan record
	done   chan struct{}
	closed chan struct{}
}

// Open opens (creating if necessary) a SQLite database at path, migrates it
// to the latest schema, and starts the background writer. Pass queueSize <=
// 0 for DefaultQueueSize.
func Open(path string, queueSize int) (*Store, error) {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create dead letter db directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open dead letter db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:     db,
		queue:  make(chan record, queueSize),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go s.writeLoop()

	return s, nil
}

func migrateUp(db *sql.DB) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migration driver: %w", err)
	}

	src, err := httpfs.New(http.FS(migrationFiles), "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("migrations", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Record implements actor.DeadLetterSink. It never blocks: if the queue is
// full, the record is dropped and a warning is logged, with no retry.
func (s *Store) Record(actorID, msgType, senderID, reason string) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	r := record{
		correlationID: id.String(),
		actorID:       actorID,
		msgType:       msgType,
		senderID:      senderID,
		reason:        reason,
		recordedAt:    time.Now(),
	}

	select {
	case s.queue <- r:
	default:
		log.WarnS(context.Background(), "dead letter queue full, dropping record",
			"actor_id", actorID, "msg_type", msgType, "reason", reason)
	}
}

func (s *Store) writeLoop() {
	defer close(s.closed)

	stmt, err := s.db.Prepare(`
		INSERT INTO dead_letters (correlation_id, recorded_at, actor_id, message_type, sender_id, reason)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		log.ErrorS(context.Background(), "dead letter store: prepare failed", err)
		return
	}
	defer stmt.Close()

	insert := func(r record) {
		if _, err := stmt.Exec(r.correlationID, r.recordedAt, r.actorID, r.msgType, r.senderID, r.reason); err != nil {
			log.WarnS(context.Background(), "dead letter insert failed", "err", err)
		}
	}

	for {
		select {
		case r := <-s.queue:
			insert(r)
		case <-s.done:
			for {
				select {
				case r := <-s.queue:
					insert(r)
				default:
					return
				}
			}
		}
	}
}

// Close stops accepting new writes' background processing, drains whatever
// is already queued, and closes the database handle.
func (s *Store) Close() error {
	close(s.done)
	<-s.closed
	return s.db.Close()
}

// Count returns the total number of dead letters recorded.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dead_letters").Scan(&n)
	return n, err
}

// Recent returns the most recently recorded dead letters, newest first,
// bounded by limit.
func (s *Store) Recent(ctx context.Context, limit int) ([]DeadLetterRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT correlation_id, actor_id, message_type, sender_id, reason, recorded_at
		FROM dead_letters
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent dead letters: %w", err)
	}
	defer rows.Close()

	var out []DeadLetterRecord
	for rows.Next() {
		var r DeadLetterRecord
		if err := rows.Scan(&r.CorrelationID, &r.ActorID, &r.MessageType, &r.SenderID, &r.Reason, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
