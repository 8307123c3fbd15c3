package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/josh-segal/text-me-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a file-backed SQLite store in a temp directory
func setupTestDB(t *testing.T) *Database {
	t.Helper()

	database, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		if database.db != nil {
			database.Close()
		}
	})

	return database
}

func newEntry(from, content string, ts time.Time) *models.MessageLogEntry {
	return &models.MessageLogEntry{
		MessageContent: content,
		FromNumber:     from,
		ToNumber:       "+15550000000",
		Timestamp:      ts,
	}
}

func TestNewDatabase(t *testing.T) {
	_, err := NewDatabase("")
	assert.Error(t, err)

	database, err := NewDatabase(":memory:")
	require.NoError(t, err)
	assert.NotNil(t, database.db)
	assert.NoError(t, database.Close())
	assert.Error(t, database.Close(), "closing twice should fail")
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(context.Background(), "sqlite", filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	assert.IsType(t, &Database{}, store)
	assert.NoError(t, store.Close())

	store, err = NewStore(context.Background(), "mysql", "dsn")
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestAddAndGetLog(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	ts := time.Date(2024, 6, 1, 10, 30, 0, 123456789, time.UTC)
	entry := &models.MessageLogEntry{
		MessageContent:  "Do you have vegan gelato?",
		FromNumber:      "+15551234567",
		ToNumber:        "+15550000000",
		Timestamp:       ts,
		ImportanceScore: models.Float(0.2),
		ResponseContent: models.String("Yes, we offer vegan and dairy-free gelato options."),
		MessageSid:      models.String("SM123"),
	}

	id, err := database.AddLog(ctx, entry)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))
	require.NotNil(t, entry.ID)
	assert.Equal(t, id, *entry.ID)

	got, err := database.GetLog(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, *got.ID)
	assert.Equal(t, entry.MessageContent, got.MessageContent)
	assert.Equal(t, entry.FromNumber, got.FromNumber)
	assert.Equal(t, entry.ToNumber, got.ToNumber)
	assert.True(t, ts.Equal(got.Timestamp))
	require.NotNil(t, got.ImportanceScore)
	assert.InDelta(t, 0.2, *got.ImportanceScore, 1e-9)
	assert.False(t, got.WasEscalated)
	assert.Equal(t, "Yes, we offer vegan and dairy-free gelato options.", *got.ResponseContent)
	assert.Equal(t, "SM123", *got.MessageSid)
}

func TestAddLog_OptionalFieldsStayNull(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	id, err := database.AddLog(ctx, &models.MessageLogEntry{
		MessageContent: "hello",
		FromNumber:     "+15551234567",
		ToNumber:       "+15550000000",
	})
	require.NoError(t, err)

	got, err := database.GetLog(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.ImportanceScore)
	assert.Nil(t, got.ResponseContent)
	assert.Nil(t, got.MessageSid)
	assert.WithinDuration(t, time.Now().UTC(), got.Timestamp, 5*time.Second)
}

func TestAddLog_Validation(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	_, err := database.AddLog(ctx, nil)
	assert.Error(t, err)

	_, err = database.AddLog(ctx, &models.MessageLogEntry{MessageContent: "hi", ToNumber: "+2"})
	assert.True(t, errors.Is(err, models.ErrValidation))

	// media-only messages carry no text
	id, err := database.AddLog(ctx, &models.MessageLogEntry{FromNumber: "+1", ToNumber: "+2"})
	require.NoError(t, err)
	got, err := database.GetLog(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got.MessageContent)
}

func TestGetLog_NotFound(t *testing.T) {
	database := setupTestDB(t)

	_, err := database.GetLog(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListLogs(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, from := range []string{"+1111", "+2222", "+1111", "+3333"} {
		_, err := database.AddLog(ctx, newEntry(from, "msg", base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}
	require.NoError(t, database.MarkEscalated(ctx, 2))

	escalated := true
	notEscalated := false

	tests := []struct {
		name      string
		filter    LogFilter
		wantIDs   []int64
		wantError bool
	}{
		{name: "all newest first", filter: LogFilter{}, wantIDs: []int64{4, 3, 2, 1}},
		{name: "by sender", filter: LogFilter{FromNumber: "+1111"}, wantIDs: []int64{3, 1}},
		{name: "escalated only", filter: LogFilter{Escalated: &escalated}, wantIDs: []int64{2}},
		{name: "not escalated from sender", filter: LogFilter{FromNumber: "+2222", Escalated: &notEscalated}, wantIDs: []int64{}},
		{name: "limit and offset", filter: LogFilter{Limit: 2, Offset: 1}, wantIDs: []int64{3, 2}},
		{name: "negative limit", filter: LogFilter{Limit: -1}, wantError: true},
		{name: "negative offset", filter: LogFilter{Offset: -1}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := database.ListLogs(ctx, tt.filter)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			ids := make([]int64, 0, len(entries))
			for _, e := range entries {
				ids = append(ids, *e.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestMarkEscalated(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	id, err := database.AddLog(ctx, newEntry("+15551234567", "my order is wrong", time.Now()))
	require.NoError(t, err)

	require.NoError(t, database.MarkEscalated(ctx, id))
	require.NoError(t, database.MarkEscalated(ctx, id), "marking twice is harmless")

	got, err := database.GetLog(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.WasEscalated)

	assert.ErrorIs(t, database.MarkEscalated(ctx, 999), ErrNotFound)
}

func TestClosedDatabase(t *testing.T) {
	database := setupTestDB(t)
	require.NoError(t, database.Close())
	ctx := context.Background()

	_, err := database.AddLog(ctx, newEntry("+1", "x", time.Now()))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = database.GetLog(ctx, 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = database.ListLogs(ctx, LogFilter{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, database.MarkEscalated(ctx, 1), ErrClosed)

	var nilDB *Database
	assert.Error(t, nilDB.Close())
}

func TestCloseDuringWrites(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	const writers = 20
	var (
		wg      sync.WaitGroup
		written atomic.Int64
	)
	start := make(chan struct{})
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := database.AddLog(ctx, newEntry("+15551234567", "concurrent", time.Now()))
			if err == nil {
				written.Add(1)
				return
			}
			assert.ErrorIs(t, err, ErrClosed)
		}()
	}

	close(start)
	require.NoError(t, database.Close())
	wg.Wait()

	_, err := database.AddLog(ctx, newEntry("+15551234567", "late", time.Now()))
	assert.ErrorIs(t, err, ErrClosed)
	assert.LessOrEqual(t, written.Load(), int64(writers))
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	ctx := context.Background()

	store, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	id, err := store.AddLog(ctx, newEntry("+15551234567", "postgres roundtrip", time.Now()))
	require.NoError(t, err)

	require.NoError(t, store.MarkEscalated(ctx, id))
	got, err := store.GetLog(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "postgres roundtrip", got.MessageContent)
	assert.True(t, got.WasEscalated)

	entries, err := store.ListLogs(ctx, LogFilter{FromNumber: "+15551234567", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNewPostgresStore_EmptyDSN(t *testing.T) {
	_, err := NewPostgresStore(context.Background(), "")
	assert.Error(t, err)
}
