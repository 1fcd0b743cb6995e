package repository

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type shipmentJobRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewShipmentJobRepository creates a new PostgreSQL-backed shipment outbox.
func NewShipmentJobRepository(pool *pgxpool.Pool, logger zerolog.Logger) ShipmentJobRepository {
	return &shipmentJobRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "shipment_job").Logger(),
	}
}

func (r *shipmentJobRepository) Enqueue(ctx context.Context, tx pgx.Tx, job *model.ShipmentJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = model.ShipmentJobPending
	}
	if job.NextAttemptAt.IsZero() {
		job.NextAttemptAt = time.Now()
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO shipment_jobs (id, order_id, kind, reason, attempts, next_attempt_at, status)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
	`, job.ID, job.OrderID, job.Kind, job.Reason, job.NextAttemptAt, job.Status)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", job.OrderID.String()).Msg("failed to enqueue shipment job")
		return fmt.Errorf("failed to enqueue shipment job: %w", err)
	}
	return nil
}

// ClaimDue bumps attempts and pushes next_attempt_at to leaseUntil, so a crashed
// worker's jobs become due again once the lease expires.
func (r *shipmentJobRepository) ClaimDue(ctx context.Context, limit int, leaseUntil time.Time) ([]model.ShipmentJob, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE shipment_jobs
		SET attempts = attempts + 1, next_attempt_at = $2, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM shipment_jobs
			WHERE status = 'pending' AND next_attempt_at <= NOW()
			ORDER BY next_attempt_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, order_id, kind, reason, attempts, next_attempt_at, last_error, status, created_at
	`, limit, leaseUntil)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to claim shipment jobs")
		return nil, fmt.Errorf("failed to claim shipment jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.ShipmentJob
	for rows.Next() {
		var j model.ShipmentJob
		if err := rows.Scan(&j.ID, &j.OrderID, &j.Kind, &j.Reason, &j.Attempts, &j.NextAttemptAt,
			&j.LastError, &j.Status, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan shipment job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shipment jobs: %w", err)
	}
	return jobs, nil
}

func (r *shipmentJobRepository) Complete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE shipment_jobs SET status = $2, last_error = NULL, updated_at = NOW() WHERE id = $1
	`, id, model.ShipmentJobDone)
	if err != nil {
		r.logger.Error().Err(err).Str("job_id", id.String()).Msg("failed to complete shipment job")
		return fmt.Errorf("failed to complete shipment job: %w", err)
	}
	return nil
}

func (r *shipmentJobRepository) Fail(ctx context.Context, id uuid.UUID, lastErr string, nextAttempt time.Time, terminal bool) error {
	status := model.ShipmentJobPending
	if terminal {
		status = model.ShipmentJobFailed
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE shipment_jobs SET status = $2, last_error = $3, next_attempt_at = $4, updated_at = NOW()
		WHERE id = $1
	`, id, status, lastErr, nextAttempt)
	if err != nil {
		r.logger.Error().Err(err).Str("job_id", id.String()).Msg("failed to record shipment job failure")
		return fmt.Errorf("failed to record shipment job failure: %w", err)
	}
	return nil
}
