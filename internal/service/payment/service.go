package payment

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
	"github.com/vladislavdragonenkov/vstore/internal/messaging/kafka"
)

// Service применяет асинхронные результаты платёжного шлюза к заказам.
type Service interface {
	// Confirm обновляет paymentStatus заказа по результату шлюза. Идемпотентен:
	// повторное успешное подтверждение — no-op с успешным результатом.
	Confirm(ctx context.Context, orderID, gatewayRef string, outcome domain.GatewayOutcome) (domain.Order, error)
}

type service struct {
	orders        domain.OrderRepository
	outbox        domain.OutboxRepository
	timeline      domain.TimelineRepository
	logger        *log.Entry
	kafkaProducer *kafka.Producer // опциональный Kafka producer
}

// NewService создаёт сервис подтверждения оплаты.
func NewService(
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "payment")
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

// Confirm применяет результат шлюза к заказу.
//
// Неудачная оплата переводит paymentStatus в failed, но заказ остаётся в
// pending и остатки не освобождаются — повторная попытка оплаты возможна
// для того же заказа.
func (s *service) Confirm(ctx context.Context, orderID, gatewayRef string, outcome domain.GatewayOutcome) (domain.Order, error) {
	if outcome != domain.GatewayOutcomeSuccess && outcome != domain.GatewayOutcomeFailure {
		return domain.Order{}, domain.ErrGatewayOutcomeInvalid
	}

	order, err := s.orders.Get(orderID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("order not found for payment confirmation")
		return domain.Order{}, err
	}

	if outcome == domain.GatewayOutcomeSuccess {
		return s.confirmSuccess(order, gatewayRef)
	}
	return s.confirmFailure(order, gatewayRef)
}

func (s *service) confirmSuccess(order domain.Order, gatewayRef string) (domain.Order, error) {
	// Повторное подтверждение уже оплаченного заказа — no-op.
	if order.PaymentStatus == domain.PaymentStatusCompleted {
		s.logger.WithField("order_id", order.ID).Debug("payment already completed, skipping")
		return order, nil
	}

	err := s.saveWithRetry(&order, func(o *domain.Order) error {
		o.PaymentStatus = domain.PaymentStatusCompleted
		o.PaymentRef = gatewayRef
		if o.Status == domain.OrderStatusPending {
			return o.Transition(domain.OrderStatusConfirmed)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.emitEvent(&order, "PaymentCompleted", map[string]interface{}{
		"gateway_ref": gatewayRef,
	})
	s.publishPaymentEvent(kafka.EventTypePaymentCompleted, &order, gatewayRef)
	if order.Status == domain.OrderStatusConfirmed {
		s.publishOrderConfirmed(&order)
	}

	s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"gateway_ref": gatewayRef,
	}).Info("payment confirmed")
	return order, nil
}

func (s *service) confirmFailure(order domain.Order, gatewayRef string) (domain.Order, error) {
	if order.PaymentStatus == domain.PaymentStatusFailed {
		s.logger.WithField("order_id", order.ID).Debug("payment already failed, skipping")
		return order, nil
	}
	// Успешно оплаченный заказ не переводим в failed задним числом.
	if order.PaymentStatus == domain.PaymentStatusCompleted {
		s.logger.WithField("order_id", order.ID).Warn("ignoring failure outcome for completed payment")
		return order, nil
	}

	err := s.saveWithRetry(&order, func(o *domain.Order) error {
		o.PaymentStatus = domain.PaymentStatusFailed
		o.PaymentRef = gatewayRef
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.emitEvent(&order, "PaymentFailed", map[string]interface{}{
		"gateway_ref": gatewayRef,
	})
	s.publishPaymentEvent(kafka.EventTypePaymentFailed, &order, gatewayRef)

	s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"gateway_ref": gatewayRef,
	}).Warn("payment failed")
	return order, nil
}

// saveWithRetry применяет мутацию и сохраняет заказ с retry на version conflict.
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
			}).Error("failed to persist payment status")
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
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     eventType,
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

func (s *service) publishPaymentEvent(eventType kafka.EventType, order *domain.Order, gatewayRef string) {
	if s.kafkaProducer == nil {
		return
	}
	event := kafka.NewPaymentEvent(eventType, order.ID, gatewayRef, string(order.PaymentStatus))
	if err := s.kafkaProducer.PublishEvent(kafka.TopicPaymentEvents, order.ID, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   order.ID,
		}).Warn("failed to publish payment event to kafka")
	}
}

func (s *service) publishOrderConfirmed(order *domain.Order) {
	if s.kafkaProducer == nil {
		return
	}
	event := kafka.NewOrderEvent(kafka.EventTypeOrderConfirmed, order.ID, order.OrderNumber, string(order.Status), nil)
	if err := s.kafkaProducer.PublishEvent(kafka.TopicOrderEvents, order.ID, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
		}).Warn("failed to publish order event to kafka")
	}
}

var _ Service = (*service)(nil)
