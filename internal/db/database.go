package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/josh-segal/text-me-assistant/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the SQLite implementation of LogStore
type Database struct {
	// mu is held for reading by every query and for writing by Close
	mu sync.RWMutex
	db *sql.DB
}

// NewDatabase opens the SQLite database at dsn and creates the schema
func NewDatabase(dsn string) (*Database, error) {
	if dsn == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer; one connection also keeps :memory: databases intact
	db.SetMaxOpenConns(1)

	// Verify we can actually connect to the database
	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("ping failed: %w, close failed: %v", err, closeErr)
		}
		return nil, err
	}

	if err := createTables(db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("create tables failed: %w, close failed: %v", err, closeErr)
		}
		return nil, err
	}

	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS message_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message_content TEXT NOT NULL,
			from_number TEXT NOT NULL,
			to_number TEXT NOT NULL,
			received_at INTEGER NOT NULL,
			importance_score REAL,
			was_escalated BOOLEAN NOT NULL DEFAULT 0,
			response_content TEXT,
			message_sid TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_message_logs_from ON message_logs(from_number);
		CREATE INDEX IF NOT EXISTS idx_message_logs_received_at ON message_logs(received_at);
	`)
	return err
}

// acquire read-locks d for the duration of one operation. The returned
// release func must be called even when err is non-nil.
func (d *Database) acquire() (release func(), err error) {
	if d == nil {
		return func() {}, errors.New("database is nil")
	}
	d.mu.RLock()
	if d.db == nil {
		return d.mu.RUnlock, ErrClosed
	}
	return d.mu.RUnlock, nil
}

// Close waits for in-flight operations before closing the handle
func (d *Database) Close() error {
	if d == nil {
		return errors.New("database is nil")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return errors.New("database already closed")
	}

	err := d.db.Close()
	d.db = nil
	return err
}

// AddLog inserts entry and sets its ID
func (d *Database) AddLog(ctx context.Context, entry *models.MessageLogEntry) (int64, error) {
	release, err := d.acquire()
	defer release()
	if err != nil {
		return 0, err
	}

	if err := prepareEntry(entry); err != nil {
		return 0, err
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO message_logs (message_content, from_number, to_number, received_at, importance_score, was_escalated, response_content, message_sid)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.MessageContent,
		entry.FromNumber,
		entry.ToNumber,
		entry.Timestamp.UnixNano(),
		entry.ImportanceScore,
		entry.WasEscalated,
		entry.ResponseContent,
		entry.MessageSid,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	entry.ID = models.Int64(id)
	return id, nil
}

const selectColumns = "id, message_content, from_number, to_number, received_at, importance_score, was_escalated, response_content, message_sid"

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (*models.MessageLogEntry, error) {
	var (
		id    int64
		nanos int64
		entry models.MessageLogEntry
	)

	err := row.Scan(
		&id,
		&entry.MessageContent,
		&entry.FromNumber,
		&entry.ToNumber,
		&nanos,
		&entry.ImportanceScore,
		&entry.WasEscalated,
		&entry.ResponseContent,
		&entry.MessageSid,
	)
	if err != nil {
		return nil, err
	}

	entry.ID = models.Int64(id)
	entry.Timestamp = time.Unix(0, nanos).UTC()
	return &entry, nil
}

func (d *Database) GetLog(ctx context.Context, id int64) (*models.MessageLogEntry, error) {
	release, err := d.acquire()
	defer release()
	if err != nil {
		return nil, err
	}

	row := d.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM message_logs WHERE id = ?", id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return entry, err
}

// ListLogs returns entries matching filter, newest first
func (d *Database) ListLogs(ctx context.Context, filter LogFilter) ([]*models.MessageLogEntry, error) {
	release, err := d.acquire()
	defer release()
	if err != nil {
		return nil, err
	}

	filter, err = filter.normalize()
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []interface{}
	)
	if filter.FromNumber != "" {
		where = append(where, "from_number = ?")
		args = append(args, filter.FromNumber)
	}
	if filter.Escalated != nil {
		where = append(where, "was_escalated = ?")
		args = append(args, *filter.Escalated)
	}

	query := "SELECT " + selectColumns + " FROM message_logs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY received_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*models.MessageLogEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (d *Database) MarkEscalated(ctx context.Context, id int64) error {
	release, err := d.acquire()
	defer release()
	if err != nil {
		return err
	}

	res, err := d.db.ExecContext(ctx, "UPDATE message_logs SET was_escalated = 1 WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
