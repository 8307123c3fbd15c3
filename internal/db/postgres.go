package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/josh-segal/text-me-assistant/internal/models"
	"github.com/josh-segal/text-me-assistant/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresStore is the PostgreSQL implementation of LogStore
type PostgresStore struct {
	pool *pgxpool.Pool
	// pool is never cleared; closed gates new operations and pgxpool
	// waits for acquired connections on Close
	closed atomic.Bool
}

// NewPostgresStore connects to databaseURL and creates the schema
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("invalid DATABASE_DSN")
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unexpected error while connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unexpected error while pinging database: %w", err)
	}

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS message_logs (
			id BIGSERIAL PRIMARY KEY,
			message_content TEXT NOT NULL,
			from_number TEXT NOT NULL,
			to_number TEXT NOT NULL,
			received_at TIMESTAMPTZ NOT NULL,
			importance_score DOUBLE PRECISION,
			was_escalated BOOLEAN NOT NULL DEFAULT FALSE,
			response_content TEXT,
			message_sid TEXT
		)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create message_logs table: %w", err)
	}

	logger.Info("PostgreSQL database connection established")
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.pool == nil || !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	s.pool.Close()
	return nil
}

func (s *PostgresStore) AddLog(ctx context.Context, entry *models.MessageLogEntry) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	if err := prepareEntry(entry); err != nil {
		return 0, err
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO message_logs (message_content, from_number, to_number, received_at, importance_score, was_escalated, response_content, message_sid)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		entry.MessageContent,
		entry.FromNumber,
		entry.ToNumber,
		entry.Timestamp,
		entry.ImportanceScore,
		entry.WasEscalated,
		entry.ResponseContent,
		entry.MessageSid,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message log: %w", err)
	}

	entry.ID = models.Int64(id)
	return id, nil
}

func scanPgEntry(row pgx.Row) (*models.MessageLogEntry, error) {
	var (
		id    int64
		entry models.MessageLogEntry
	)

	err := row.Scan(
		&id,
		&entry.MessageContent,
		&entry.FromNumber,
		&entry.ToNumber,
		&entry.Timestamp,
		&entry.ImportanceScore,
		&entry.WasEscalated,
		&entry.ResponseContent,
		&entry.MessageSid,
	)
	if err != nil {
		return nil, err
	}

	entry.ID = models.Int64(id)
	entry.Timestamp = entry.Timestamp.UTC()
	return &entry, nil
}

func (s *PostgresStore) GetLog(ctx context.Context, id int64) (*models.MessageLogEntry, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	entry, err := scanPgEntry(s.pool.QueryRow(ctx, "SELECT "+selectColumns+" FROM message_logs WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return entry, err
}

func (s *PostgresStore) ListLogs(ctx context.Context, filter LogFilter) ([]*models.MessageLogEntry, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	filter, err := filter.normalize()
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []interface{}
	)
	if filter.FromNumber != "" {
		args = append(args, filter.FromNumber)
		where = append(where, fmt.Sprintf("from_number = $%d", len(args)))
	}
	if filter.Escalated != nil {
		args = append(args, *filter.Escalated)
		where = append(where, fmt.Sprintf("was_escalated = $%d", len(args)))
	}

	query := "SELECT " + selectColumns + " FROM message_logs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY received_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*models.MessageLogEntry, 0)
	for rows.Next() {
		entry, err := scanPgEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (s *PostgresStore) MarkEscalated(ctx context.Context, id int64) error {
	if s.closed.Load() {
		return ErrClosed
	}

	tag, err := s.pool.Exec(ctx, "UPDATE message_logs SET was_escalated = TRUE WHERE id = $1", id)
	return pgRowAffected(tag, err, id)
}

func pgRowAffected(tag pgconn.CommandTag, err error, id int64) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		logger.Debug("No message log updated", zap.Int64("id", id))
		return ErrNotFound
	}
	return nil
}
