package service

import (
	"context"
	"fmt"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// orderService implements OrderService.
type orderService struct {
	orderRepo repository.OrderRepository
	jobRepo   repository.ShipmentJobRepository
	notifier  ShipmentNotifier
	logger    zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	jobRepo repository.ShipmentJobRepository,
	notifier ShipmentNotifier,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		orderRepo: orderRepo,
		jobRepo:   jobRepo,
		notifier:  notifier,
		logger:    logger.With().Str("service", "order").Logger(),
	}
}

// GetByID retrieves an order by its ID with all items.
func (s *orderService) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if order == nil {
		s.logger.Debug().Str("order_id", id.String()).Msg("order not found")
		return nil, model.ErrOrderNotFound
	}

	return order, nil
}

// GetForUser hides orders of other users behind ErrOrderNotFound.
func (s *orderService) GetForUser(ctx context.Context, userID string, id uuid.UUID) (*model.Order, error) {
	order, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		s.logger.Warn().Str("order_id", id.String()).Str("user_id", userID).Msg("order requested by another user")
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

// ListForUser returns the user's order history, newest first.
func (s *orderService) ListForUser(ctx context.Context, userID string) ([]model.Order, error) {
	if userID == "" {
		return nil, errSignInRequired
	}

	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

// UpdateStatus moves an order along its lifecycle. Cancelling goes through Cancel.
func (s *orderService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, model.ErrInvalidRequest.WithMessage(fmt.Sprintf("unknown order status %q", status))
	}
	if status == model.OrderStatusCancelled {
		return s.Cancel(ctx, id, "")
	}

	err := s.transition(ctx, id, status, func(ctx context.Context, tx pgx.Tx, _ *model.Order) error {
		return s.orderRepo.UpdateStatus(ctx, tx, id, status)
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Cancel cancels an order and, when the courier already holds it, queues a courier cancellation.
func (s *orderService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Order, error) {
	queued := false
	err := s.transition(ctx, id, model.OrderStatusCancelled, func(ctx context.Context, tx pgx.Tx, current *model.Order) error {
		if err := s.orderRepo.Cancel(ctx, tx, id, reason); err != nil {
			return err
		}
		if current.CourierOrderID == nil {
			return nil
		}
		job := &model.ShipmentJob{OrderID: id, Kind: model.ShipmentJobCancel}
		if reason != "" {
			job.Reason = &reason
		}
		queued = true
		return s.jobRepo.Enqueue(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}

	if queued && s.notifier != nil {
		s.notifier.Notify()
	}
	return s.GetByID(ctx, id)
}

// transition locks the order, checks the lifecycle rule and applies fn in one transaction.
func (s *orderService) transition(
	ctx context.Context,
	id uuid.UUID,
	next model.OrderStatus,
	fn func(ctx context.Context, tx pgx.Tx, current *model.Order) error,
) (err error) {
	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return fmt.Errorf("failed to update order: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	current, err := s.orderRepo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("failed to get order: %w", err)
	}
	if current == nil {
		return model.ErrOrderNotFound
	}

	if !current.Status.CanTransitionTo(next) {
		s.logger.Warn().
			Str("order_id", id.String()).
			Str("from", string(current.Status)).
			Str("to", string(next)).
			Msg("order status transition rejected")
		return model.ErrInvalidStatusTransition.WithMessage(
			fmt.Sprintf("Cannot move order from %s to %s", current.Status, next))
	}

	if err = fn(ctx, tx, current); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to commit transaction")
		return fmt.Errorf("failed to update order: %w", err)
	}

	s.logger.Info().
		Str("order_id", id.String()).
		Str("from", string(current.Status)).
		Str("to", string(next)).
		Msg("order status updated")

	return nil
}
