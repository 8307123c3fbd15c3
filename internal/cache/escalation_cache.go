package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cooldownKeyPrefix = "escalation:cooldown:"
	recentKey         = "escalations:recent"
	recentMaxLen      = 1000
)

// EscalationCache remembers recent escalations so a sender cannot page the
// manager repeatedly inside the cooldown window
type EscalationCache interface {
	// Remember stores escalationID for fromNumber unless one is already held.
	// It reports whether the value was stored.
	Remember(ctx context.Context, fromNumber, escalationID string, ttl time.Duration) (bool, error)
	// Forget drops a remembered escalation, releasing the sender's cooldown
	Forget(ctx context.Context, fromNumber, escalationID string) error
	// Recent returns up to limit escalation IDs, newest first
	Recent(ctx context.Context, limit int) ([]string, error)
}

type redisEscalationCache struct {
	client *redis.Client
}

// NewEscalationCache returns a Redis-backed EscalationCache
func NewEscalationCache(client *redis.Client) EscalationCache {
	return &redisEscalationCache{client: client}
}

func (r *redisEscalationCache) Remember(ctx context.Context, fromNumber, escalationID string, ttl time.Duration) (bool, error) {
	if ttl > 0 {
		ok, err := r.client.SetNX(ctx, cooldownKeyPrefix+fromNumber, escalationID, ttl).Result()
		if err != nil || !ok {
			return false, err
		}
	}

	member := redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: escalationID,
	}

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, recentKey, member)
	pipe.ZRemRangeByRank(ctx, recentKey, 0, -recentMaxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return true, nil
}

func (r *redisEscalationCache) Forget(ctx context.Context, fromNumber, escalationID string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, cooldownKeyPrefix+fromNumber)
	pipe.ZRem(ctx, recentKey, escalationID)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisEscalationCache) Recent(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}
	return r.client.ZRevRange(ctx, recentKey, 0, int64(limit-1)).Result()
}

// MemoryEscalationCache is an in-process EscalationCache for development
// and single-instance deployments
type MemoryEscalationCache struct {
	mu       sync.Mutex
	held     map[string]time.Time
	recent   []string
	now      func() time.Time
	maxCount int
}

func NewMemoryEscalationCache() *MemoryEscalationCache {
	return &MemoryEscalationCache{
		held:     make(map[string]time.Time),
		now:      time.Now,
		maxCount: recentMaxLen,
	}
}

func (m *MemoryEscalationCache) Remember(ctx context.Context, fromNumber, escalationID string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if ttl > 0 {
		if until, ok := m.held[fromNumber]; ok && now.Before(until) {
			return false, nil
		}
		m.held[fromNumber] = now.Add(ttl)
	}

	m.recent = append(m.recent, escalationID)
	if len(m.recent) > m.maxCount {
		m.recent = m.recent[len(m.recent)-m.maxCount:]
	}

	return true, nil
}

func (m *MemoryEscalationCache) Forget(ctx context.Context, fromNumber, escalationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.held, fromNumber)
	for i := len(m.recent) - 1; i >= 0; i-- {
		if m.recent[i] == escalationID {
			m.recent = append(m.recent[:i], m.recent[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryEscalationCache) Recent(ctx context.Context, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if limit > len(m.recent) {
		limit = len(m.recent)
	}
	if limit < 0 {
		limit = 0
	}

	ids := make([]string, 0, limit)
	for i := len(m.recent) - 1; i >= 0 && len(ids) < limit; i-- {
		ids = append(ids, m.recent[i])
	}
	return ids, nil
}
