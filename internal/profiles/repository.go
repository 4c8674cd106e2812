// Package profiles stores member coaching profiles in Postgres.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/coach-ai-platform/internal/coach"
)

// ErrNotFound is returned when no profile matches.
var ErrNotFound = errors.New("profiles: not found")

// DB is the subset of pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads and updates member profiles.
type Repository struct {
	db DB
}

// NewRepository initializes a repo backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("profiles: pgx pool required")
	}
	return &Repository{db: pool}
}

func newRepositoryWithDB(db DB) *Repository {
	if db == nil {
		panic("profiles: db required")
	}
	return &Repository{db: db}
}

// GetByID fetches a profile by its auth subject.
func (r *Repository) GetByID(ctx context.Context, id string) (*coach.Profile, error) {
	query := `
		SELECT id, display_name, relationship_status, goals, message_count, premium
		FROM profiles
		WHERE id = $1
	`
	var p coach.Profile
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.DisplayName,
		&p.RelationshipStatus,
		&p.Goals,
		&p.MessageCount,
		&p.Premium,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("profiles: get by id: %w", err)
	}
	return &p, nil
}

// IncrementMessageCount bumps the member's lifetime message count and
// returns the new value.
func (r *Repository) IncrementMessageCount(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE profiles
		SET message_count = message_count + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING message_count
	`
	var count int
	if err := r.db.QueryRow(ctx, query, id).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("profiles: increment message count: %w", err)
	}
	return count, nil
}

// LinkCustomer attaches a Stripe customer to a profile after checkout.
func (r *Repository) LinkCustomer(ctx context.Context, id, customerID string) error {
	query := `
		UPDATE profiles
		SET stripe_customer_id = $2, updated_at = NOW()
		WHERE id = $1
	`
	ct, err := r.db.Exec(ctx, query, id, customerID)
	if err != nil {
		return fmt.Errorf("profiles: link customer: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSubscription records the Stripe subscription status for the
// customer's profile. Active and trialing subscriptions grant premium.
func (r *Repository) UpdateSubscription(ctx context.Context, customerID, status string) error {
	status = strings.ToLower(strings.TrimSpace(status))
	query := `
		UPDATE profiles
		SET subscription_status = $2, premium = $3, updated_at = NOW()
		WHERE stripe_customer_id = $1
	`
	ct, err := r.db.Exec(ctx, query, customerID, status, IsPremiumStatus(status))
	if err != nil {
		return fmt.Errorf("profiles: update subscription: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IsPremiumStatus reports whether a Stripe subscription status grants
// premium coaching.
func IsPremiumStatus(status string) bool {
	switch strings.ToLower(status) {
	case "active", "trialing":
		return true
	}
	return false
}
