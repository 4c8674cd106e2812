package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ProcessedTracker records webhook events that were already handled.
type ProcessedTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

const defaultProcessedTTL = 7 * 24 * time.Hour

// RedisProcessedStore keeps processed markers in Redis with a TTL longer
// than Stripe's retry horizon.
type RedisProcessedStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProcessedStore(client *redis.Client, ttl time.Duration) *RedisProcessedStore {
	if client == nil {
		panic("billing: redis client required")
	}
	if ttl <= 0 {
		ttl = defaultProcessedTTL
	}
	return &RedisProcessedStore{client: client, ttl: ttl}
}

func processedKey(provider, eventID string) string {
	return fmt.Sprintf("webhook:processed:%s:%s", provider, eventID)
}

func (s *RedisProcessedStore) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, processedKey(provider, eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("billing: check processed: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed sets the marker, returning false if it already existed.
func (s *RedisProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, processedKey(provider, eventID), time.Now().Unix(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("billing: mark processed: %w", err)
	}
	return ok, nil
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresProcessedStore keeps processed markers in the processed_events table.
type PostgresProcessedStore struct {
	pool rowQuerier
}

func NewPostgresProcessedStore(pool *pgxpool.Pool) *PostgresProcessedStore {
	if pool == nil {
		panic("billing: pgx pool required")
	}
	return &PostgresProcessedStore{pool: pool}
}

func newPostgresProcessedStoreWithExec(exec rowQuerier) *PostgresProcessedStore {
	if exec == nil {
		panic("billing: exec required")
	}
	return &PostgresProcessedStore{pool: exec}
}

func (s *PostgresProcessedStore) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE provider = $1 AND event_id = $2`
	var exists int
	if err := s.pool.QueryRow(ctx, query, provider, eventID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("billing: check processed: %w", err)
	}
	return true, nil
}

func (s *PostgresProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	query := `
		INSERT INTO processed_events (provider, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, provider, eventID)
	if err != nil {
		return false, fmt.Errorf("billing: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
