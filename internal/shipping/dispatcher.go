package shipping

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JobQueue is the outbox the dispatcher drains.
type JobQueue interface {
	ClaimDue(ctx context.Context, limit int, leaseUntil time.Time) ([]model.ShipmentJob, error)
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, lastErr string, nextAttempt time.Time, terminal bool) error
}

// OrderShipments reads orders and records courier references on them.
// SetShipment reports the order's status as of the write, and queues a cancel job
// when a courier order lands on an already cancelled order.
type OrderShipments interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	SetShipment(ctx context.Context, id uuid.UUID, shipmentID, courierOrderID, awb *string) (model.OrderStatus, error)
}

// DispatcherConfig controls polling and retries.
type DispatcherConfig struct {
	Workers      int
	PollInterval time.Duration
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	Lease        time.Duration
}

func (c *DispatcherConfig) setDefaults() {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 10 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Minute
	}
	if c.Lease <= 0 {
		c.Lease = 2 * time.Minute
	}
}

// Dispatcher performs shipment registration and cancellation after orders commit.
// Courier failures are retried and never affect the order's totals or status.
type Dispatcher struct {
	jobs      JobQueue
	orders    OrderShipments
	registrar Registrar
	cfg       DispatcherConfig
	now       func() time.Time
	wake      chan struct{}
	logger    zerolog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(jobs JobQueue, orders OrderShipments, registrar Registrar, cfg DispatcherConfig, logger zerolog.Logger) *Dispatcher {
	cfg.setDefaults()
	return &Dispatcher{
		jobs:      jobs,
		orders:    orders,
		registrar: registrar,
		cfg:       cfg,
		now:       time.Now,
		wake:      make(chan struct{}, 1),
		logger:    logger.With().Str("component", "shipment-dispatcher").Logger(),
	}
}

// Notify wakes the dispatcher without waiting for the next poll.
func (d *Dispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run polls for due jobs until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info().
		Int("workers", d.cfg.Workers).
		Dur("poll_interval", d.cfg.PollInterval).
		Msg("shipment dispatcher started")

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := d.RunOnce(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error().Err(err).Msg("failed to claim shipment jobs")
		}

		select {
		case <-ctx.Done():
			d.logger.Info().Msg("shipment dispatcher stopped")
			return nil
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

// RunOnce claims one batch of due jobs and processes it across the worker pool.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	jobs, err := d.jobs.ClaimDue(ctx, d.cfg.Workers*4, d.now().Add(d.cfg.Lease))
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	jobChan := make(chan model.ShipmentJob)
	var wg sync.WaitGroup

	workers := d.cfg.Workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				d.process(ctx, job)
			}
		}()
	}

	for _, job := range jobs {
		jobChan <- job
	}
	close(jobChan)
	wg.Wait()

	return len(jobs), nil
}

func (d *Dispatcher) process(ctx context.Context, job model.ShipmentJob) {
	logger := d.logger.With().
		Str("job_id", job.ID.String()).
		Str("order_id", job.OrderID.String()).
		Str("kind", string(job.Kind)).
		Int("attempt", job.Attempts).
		Logger()

	var err error
	switch job.Kind {
	case model.ShipmentJobRegister:
		err = d.register(ctx, job, logger)
	case model.ShipmentJobCancel:
		err = d.cancel(ctx, job)
	default:
		err = fmt.Errorf("unknown job kind %q", job.Kind)
	}

	if err == nil {
		if cerr := d.jobs.Complete(ctx, job.ID); cerr != nil {
			logger.Error().Err(cerr).Msg("failed to complete shipment job")
			return
		}
		metrics.ShipmentJobs.WithLabelValues(string(job.Kind), "done").Inc()
		logger.Info().Msg("shipment job completed")
		return
	}

	terminal := job.Attempts >= d.cfg.MaxAttempts
	next := d.now().Add(d.backoff(job.Attempts))
	if ferr := d.jobs.Fail(ctx, job.ID, err.Error(), next, terminal); ferr != nil {
		logger.Error().Err(ferr).Msg("failed to record shipment job failure")
	}

	if terminal {
		metrics.ShipmentJobs.WithLabelValues(string(job.Kind), "failed").Inc()
		logger.Error().Err(err).Msg("shipment job failed permanently")
		return
	}
	metrics.ShipmentJobs.WithLabelValues(string(job.Kind), "retry").Inc()
	logger.Warn().Err(err).Time("next_attempt_at", next).Msg("shipment job failed, will retry")
}

// register resumes from whatever step a previous attempt completed.
func (d *Dispatcher) register(ctx context.Context, job model.ShipmentJob, logger zerolog.Logger) error {
	order, err := d.orders.GetByID(ctx, job.OrderID)
	if err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("order %s not found", job.OrderID)
	}
	if order.Status == model.OrderStatusCancelled {
		logger.Info().Msg("order cancelled before shipment registration, skipping")
		return nil
	}

	if order.ShipmentID == nil {
		shipment, err := d.registrar.CreateShipment(ctx, order)
		if err != nil {
			return err
		}
		status, err := d.orders.SetShipment(ctx, order.ID, &shipment.ShipmentID, &shipment.CourierOrderID, nil)
		if err != nil {
			return err
		}
		if status == model.OrderStatusCancelled {
			logger.Info().Str("courier_order_id", shipment.CourierOrderID).Msg("order cancelled during registration, courier cancellation queued")
			d.Notify()
			return nil
		}
		order.ShipmentID = &shipment.ShipmentID
		order.CourierOrderID = &shipment.CourierOrderID
	}

	if order.AWBCode == nil {
		awb, err := d.registrar.AssignCarrier(ctx, *order.ShipmentID, order.CourierID)
		if err != nil {
			return err
		}
		status, err := d.orders.SetShipment(ctx, order.ID, nil, nil, &awb)
		if err != nil {
			return err
		}
		if status == model.OrderStatusCancelled {
			logger.Info().Msg("order cancelled during registration, skipping pickup")
			return nil
		}
	}

	if err := d.registrar.SchedulePickup(ctx, *order.ShipmentID); err != nil {
		logger.Warn().Err(err).Msg("pickup scheduling failed")
	}
	return nil
}

func (d *Dispatcher) cancel(ctx context.Context, job model.ShipmentJob) error {
	order, err := d.orders.GetByID(ctx, job.OrderID)
	if err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("order %s not found", job.OrderID)
	}
	if order.CourierOrderID == nil {
		return nil
	}

	reason := ""
	if job.Reason != nil {
		reason = *job.Reason
	}
	return d.registrar.CancelShipment(ctx, *order.CourierOrderID, reason)
}

// backoff doubles from BaseBackoff per attempt, capped at MaxBackoff.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= d.cfg.MaxBackoff {
			return d.cfg.MaxBackoff
		}
	}
	return delay
}
