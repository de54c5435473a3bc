package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxNotesLength   = 4000
)

type DBLayer interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	UpdateOrderFields(ctx context.Context, id string, update models.OrderUpdate, at time.Time) (*models.Order, error)
}

type KafkaPublisher interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
}

type OrderService struct {
	DB     DBLayer
	Kafka  KafkaPublisher
	Logger *logger.Logger

	updatedTopic string
	now          func() time.Time
}

func NewOrderService(db DBLayer, kafka KafkaPublisher, log *logger.Logger, updatedTopic string) *OrderService {
	return &OrderService{
		DB:           db,
		Kafka:        kafka,
		Logger:       log,
		updatedTopic: updatedTopic,
		now:          time.Now,
	}
}

// ---------------- ORDERS ----------------

func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.DB.GetOrderByID(ctx, id)
	if err != nil {
		return nil, s.mapStoreError(err)
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, filter.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	orders, err := s.DB.ListOrders(ctx, filter)
	if err != nil {
		return nil, s.mapStoreError(err)
	}
	return orders, nil
}

// UpdateOrder applies a partial update. Omitted fields keep their stored values.
func (s *OrderService) UpdateOrder(ctx context.Context, id string, update models.OrderUpdate) (*models.Order, error) {
	if err := validateUpdate(update); err != nil {
		return nil, err
	}

	order, err := s.DB.UpdateOrderFields(ctx, id, update, s.now().UTC())
	if err != nil {
		return nil, s.mapStoreError(err)
	}

	fields := update.Fields()
	s.Logger.LogOrder("UPDATE", order.OrderNumber, "fields: "+strings.Join(fields, ","))

	if s.Kafka != nil {
		event := models.OrderUpdatedEvent{
			OrderID:   order.ID,
			Fields:    fields,
			Status:    update.Status,
			UpdatedAt: order.UpdatedAt,
		}
		if err := s.Kafka.Publish(ctx, s.updatedTopic, order.ID, event); err != nil {
			s.Logger.Error("ORDER", fmt.Sprintf("Failed to publish update for %s: %v", order.ID, err))
		}
	}
	return order, nil
}

func validateUpdate(update models.OrderUpdate) error {
	if update.IsEmpty() {
		return fmt.Errorf("%w: no fields to update", ErrValidation)
	}
	if update.Status != nil && !update.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, *update.Status)
	}
	if update.Notes != nil && utf8.RuneCountInString(*update.Notes) > maxNotesLength {
		return fmt.Errorf("%w: notes exceed %d characters", ErrValidation, maxNotesLength)
	}
	return nil
}

func (s *OrderService) mapStoreError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	s.Logger.Error("ORDER", fmt.Sprintf("Store error: %v", err))
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
