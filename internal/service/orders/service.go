package orders

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
	"github.com/vladislavdragonenkov/vstore/internal/messaging/kafka"
)

// Service — админские операции над заказами: просмотр и переводы статусов.
type Service interface {
	Get(id string) (domain.Order, error)
	GetByNumber(orderNumber string) (domain.Order, error)
	List(filter domain.OrderFilter) ([]domain.Order, error)
	// Timeline возвращает события жизненного цикла заказа.
	Timeline(orderID string) ([]domain.TimelineEvent, error)
	// UpdateStatus переводит заказ в новый статус по графу переходов.
	// Для перехода в shipped можно приложить трек-номер.
	UpdateStatus(ctx context.Context, orderID string, to domain.OrderStatus, trackingNumber string) (domain.Order, error)
	// Cancel отменяет заказ из любого pre-shipped статуса.
	// Зарезервированные остатки при отмене не возвращаются в каталог.
	Cancel(ctx context.Context, orderID, reason string) (domain.Order, error)
}

type service struct {
	orders        domain.OrderRepository
	outbox        domain.OutboxRepository
	timeline      domain.TimelineRepository
	logger        *log.Entry
	kafkaProducer *kafka.Producer // опциональный Kafka producer
}

// NewService создаёт админский сервис заказов.
func NewService(
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &service{
		orders:   orders,
		outbox:   outbox,
		timeline: timeline,
		logger:   logger,
	}
}

// NewServiceWithKafka создаёт сервис с Kafka producer для event-driven архитектуры.
func NewServiceWithKafka(
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	kafkaProducer *kafka.Producer,
	logger *log.Entry,
) Service {
	svc := NewService(orders, outbox, timeline, logger).(*service)
	svc.kafkaProducer = kafkaProducer
	return svc
}

func (s *service) Get(id string) (domain.Order, error) {
	return s.orders.Get(id)
}

func (s *service) GetByNumber(orderNumber string) (domain.Order, error) {
	return s.orders.GetByNumber(orderNumber)
}

func (s *service) List(filter domain.OrderFilter) ([]domain.Order, error) {
	return s.orders.List(filter)
}

func (s *service) Timeline(orderID string) ([]domain.TimelineEvent, error) {
	if _, err := s.orders.Get(orderID); err != nil {
		return nil, err
	}
	return s.timeline.List(orderID)
}

// UpdateStatus переводит заказ в новый статус.
func (s *service) UpdateStatus(ctx context.Context, orderID string, to domain.OrderStatus, trackingNumber string) (domain.Order, error) {
	if !to.Valid() {
		return domain.Order{}, &domain.InvalidTransitionError{To: to}
	}
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	err = s.saveWithRetry(&order, func(o *domain.Order) error {
		if err := o.Transition(to); err != nil {
			return err
		}
		if to == domain.OrderStatusShipped && trackingNumber != "" {
			o.TrackingNumber = trackingNumber
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	payload := map[string]interface{}{
		"status": string(to),
	}
	if order.TrackingNumber != "" {
		payload["tracking_number"] = order.TrackingNumber
	}
	s.emitEvent(&order, "OrderStatusChanged", payload)
	s.publishStatusEvent(&order, "")

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"status":   to,
	}).Info("order status updated")
	return order, nil
}

// Cancel — shortcut для перевода в cancelled с причиной в timeline.
func (s *service) Cancel(ctx context.Context, orderID, reason string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status == domain.OrderStatusCancelled {
		s.logger.WithField("order_id", order.ID).Debug("order already cancelled")
		return order, nil
	}

	err = s.saveWithRetry(&order, func(o *domain.Order) error {
		return o.Transition(domain.OrderStatusCancelled)
	})
	if err != nil {
		return domain.Order{}, err
	}

	payload := map[string]interface{}{
		"status": string(domain.OrderStatusCancelled),
	}
	if strings.TrimSpace(reason) != "" {
		payload["reason"] = reason
	}
	s.emitEvent(&order, "OrderCancelled", payload)
	s.publishStatusEvent(&order, reason)

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"reason":   reason,
	}).Info("order cancelled")
	return order, nil
}

// saveWithRetry сохраняет заказ с retry на version conflict.
func (s *service) saveWithRetry(order *domain.Order, apply func(*domain.Order) error) error {
	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := apply(order); err != nil {
			return err
		}
		order.UpdatedAt = time.Now().UTC()
		prevVersion := order.Version

		if err := s.orders.Save(*order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				s.logger.WithFields(log.Fields{
					"order_id": order.ID,
					"attempt":  attempt + 1,
					"version":  order.Version,
				}).Warn("version conflict detected, retrying")

				fresh, loadErr := s.orders.Get(order.ID)
				if loadErr != nil {
					s.logger.WithError(loadErr).WithField("order_id", order.ID).Error("failed to reload order after conflict")
					return loadErr
				}
				*order = fresh

				delay := baseDelay * time.Duration(1<<uint(attempt))
				time.Sleep(delay)
				continue
			}

			s.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"attempt":  attempt + 1,
			}).Error("failed to persist order status")
			return err
		}

		order.Version = prevVersion + 1
		return nil
	}

	return domain.ErrOrderVersionConflict
}

func (s *service) emitEvent(order *domain.Order, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID
	payload["ts"] = order.UpdatedAt.Format(time.RFC3339Nano)
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
	}

	if s.timeline != nil {
		var reason string
		if r, ok := payload["reason"].(string); ok {
			reason = r
		}
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     eventType,
			Reason:   reason,
			Occurred: order.UpdatedAt,
		}
		if err := s.timeline.Append(event); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"event":    eventType,
			}).Warn("append timeline event failed")
		}
	}
}

func (s *service) publishStatusEvent(order *domain.Order, reason string) {
	if s.kafkaProducer == nil {
		return
	}

	eventType := kafka.EventTypeOrderStatusChanged
	var metadata map[string]interface{}
	if order.Status == domain.OrderStatusCancelled {
		eventType = kafka.EventTypeOrderCancelled
		if reason != "" {
			metadata = map[string]interface{}{"reason": reason}
		}
	}

	event := kafka.NewOrderEvent(eventType, order.ID, order.OrderNumber, string(order.Status), metadata)
	if err := s.kafkaProducer.PublishEvent(kafka.TopicOrderEvents, order.ID, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   order.ID,
		}).Warn("failed to publish order event to kafka")
	}
}

var _ Service = (*service)(nil)
