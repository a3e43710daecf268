package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"bargenix-billing-core/internal/domain"
)

// PlanRepo implements PlanRepository using PostgreSQL.
type PlanRepo struct{ db *DB }

// NewPlanRepo constructs a plan repository.
func NewPlanRepo(db *DB) *PlanRepo { return &PlanRepo{db: db} }

// Prices travel as text so NUMERIC round-trips without float loss.
const selectPlan = `SELECT id, slug, name, price::text, trial_days, created_at FROM plans`

func scanPlan(row pgx.Row) (*domain.Plan, error) {
	var (
		p        domain.Plan
		priceStr string
	)
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &priceStr, &p.TrialDays, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if p.Price, err = decimal.NewFromString(priceStr); err != nil {
		return nil, fmt.Errorf("failed to parse plan price: %w", err)
	}
	return &p, nil
}

// GetBySlug returns the plan with the given slug.
func (r *PlanRepo) GetBySlug(ctx context.Context, slug string) (*domain.Plan, error) {
	return scanPlan(r.db.Pool.QueryRow(ctx, selectPlan+` WHERE slug=$1`, slug))
}

// GetByID returns the plan with the given id.
func (r *PlanRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	return scanPlan(r.db.Pool.QueryRow(ctx, selectPlan+` WHERE id=$1`, id))
}
