package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/josh-segal/text-me-assistant/internal/config"
	"github.com/josh-segal/text-me-assistant/internal/models"
)

var (
	// ErrNotFound is returned when no log entry has the requested ID
	ErrNotFound = errors.New("message log not found")
	// ErrClosed is returned by a store used after Close
	ErrClosed = errors.New("database is closed")
)

// DefaultLimit caps ListLogs when no limit is given
const DefaultLimit = 100

// LogFilter narrows ListLogs. Zero values mean "no filter".
type LogFilter struct {
	FromNumber string
	Escalated  *bool
	Limit      int
	Offset     int
}

func (f LogFilter) normalize() (LogFilter, error) {
	if f.Limit < 0 {
		return f, errors.New("limit cannot be negative")
	}
	if f.Offset < 0 {
		return f, errors.New("offset cannot be negative")
	}
	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}
	return f, nil
}

// LogStore persists message log entries
type LogStore interface {
	AddLog(ctx context.Context, entry *models.MessageLogEntry) (int64, error)
	GetLog(ctx context.Context, id int64) (*models.MessageLogEntry, error)
	ListLogs(ctx context.Context, filter LogFilter) ([]*models.MessageLogEntry, error)
	MarkEscalated(ctx context.Context, id int64) error
	Close() error
}

// NewStore opens the store selected by driver
func NewStore(ctx context.Context, driver, dsn string) (LogStore, error) {
	switch driver {
	case config.DriverSQLite, "":
		store, err := NewDatabase(dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverPostgres:
		store, err := NewPostgresStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// prepareEntry applies defaults and validates entry before it is written
func prepareEntry(entry *models.MessageLogEntry) error {
	if entry == nil {
		return errors.New("message log cannot be nil")
	}
	entry.ApplyDefaults()
	return entry.Validate()
}
