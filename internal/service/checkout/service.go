package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
	"github.com/vladislavdragonenkov/vstore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/vstore/internal/metrics"
)

// PlacementItem — одна позиция корзины: ссылка на товар и количество.
// Цена и имя не принимаются от клиента, а снимаются с каталога в момент оформления.
type PlacementItem struct {
	ProductID string
	Qty       int32
}

// PlacementRequest — входные данные оформления заказа.
type PlacementRequest struct {
	Items         []PlacementItem
	Customer      domain.CustomerInfo
	Shipping      domain.ShippingAddress
	PaymentMethod domain.PaymentMethod
	Notes         string

	// PaymentRef и PaymentVerified заполняются, когда онлайн-оплата прошла
	// проверку подписи шлюза до оформления заказа.
	PaymentRef      string
	PaymentVerified bool
}

// Service описывает операцию оформления заказа.
type Service interface {
	// PlaceOrder резервирует остатки и создаёт заказ. Операция атомарна с точки
	// зрения вызывающего: либо заказ создан и все остатки уменьшены, либо
	// возвращена ошибка и остатки не изменились.
	PlaceOrder(ctx context.Context, req PlacementRequest) (domain.Order, error)
	// Wait дожидается завершения фоновых отправок уведомлений (graceful shutdown).
	Wait()
}

// service реализует последовательность: Validate → Reserve → Persist → Notify.
type service struct {
	products      domain.ProductRepository
	orders        domain.OrderRepository
	outbox        domain.OutboxRepository
	timeline      domain.TimelineRepository
	notifier      domain.NotificationSender
	numbers       *NumberGenerator
	logger        *log.Entry
	metrics       *metrics.CheckoutMetrics
	kafkaProducer *kafka.Producer // опциональный Kafka producer для event-driven архитектуры
	wg            sync.WaitGroup
}

// NewService создаёт рабочий экземпляр сервиса оформления.
func NewService(
	products domain.ProductRepository,
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	notifier domain.NotificationSender,
	logger *log.Entry,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &service{
		products: products,
		orders:   orders,
		outbox:   outbox,
		timeline: timeline,
		notifier: notifier,
		numbers:  NewNumberGenerator(),
		logger:   logger,
		metrics:  metrics.NewCheckoutMetrics(),
	}
}

// NewServiceWithKafka создаёт сервис с Kafka producer для event-driven архитектуры.
func NewServiceWithKafka(
	products domain.ProductRepository,
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	notifier domain.NotificationSender,
	kafkaProducer *kafka.Producer,
	logger *log.Entry,
) Service {
	svc := NewService(products, orders, outbox, timeline, notifier, logger).(*service)
	svc.kafkaProducer = kafkaProducer
	return svc
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	products domain.ProductRepository,
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	notifier domain.NotificationSender,
	logger *log.Entry,
) Service {
	svc := NewService(products, orders, outbox, timeline, notifier, logger).(*service)
	svc.metrics = nil
	return svc
}

// reservedLine фиксирует успешно зарезервированную позицию для возможного отката.
type reservedLine struct {
	productID string
	qty       int32
}

// PlaceOrder выполняет оформление заказа целиком.
func (s *service) PlaceOrder(ctx context.Context, req PlacementRequest) (domain.Order, error) {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.RecordPlacementStarted()
	}
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordPlacementFinished()
			s.metrics.RecordPlacementDuration(time.Since(start))
		}
	}()

	// Валидация формы запроса — до любых обращений к хранилищу.
	if err := validateRequest(req); err != nil {
		s.rejectPlacement("validation")
		return domain.Order{}, err
	}

	// Read-only проход: существование товаров и достаточность остатков.
	// Именуем первого нарушителя в порядке корзины.
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		product, err := s.products.Get(line.ProductID)
		if err != nil {
			s.rejectPlacement("product_not_found")
			return domain.Order{}, fmt.Errorf("product %s: %w", line.ProductID, err)
		}
		if product.Stock < line.Qty {
			s.rejectPlacement("insufficient_stock")
			return domain.Order{}, &domain.InsufficientStockError{
				ProductID: product.ID,
				Name:      product.Name,
				Requested: line.Qty,
				Available: product.Stock,
			}
		}
		items = append(items, domain.OrderItem{
			ProductID:  product.ID,
			Name:       product.Name,
			PriceMinor: product.PriceMinor,
			Qty:        line.Qty,
			Image:      product.PrimaryImage(),
		})
	}

	// Отключившийся клиент не должен резервировать остатки.
	if err := ctx.Err(); err != nil {
		s.rejectPlacement("context_cancelled")
		return domain.Order{}, err
	}

	// Резервирование: атомарный условный декремент по каждой позиции.
	// Декремент проверяет остаток в момент записи, а не более раннего чтения,
	// поэтому конкурентный заказ может провалить позицию даже после валидации.
	reserved := make([]reservedLine, 0, len(items))
	for _, item := range items {
		ok, err := s.products.ConditionalDecrement(item.ProductID, item.Qty)
		if err != nil {
			s.rollback(reserved)
			s.failPlacement()
			return domain.Order{}, &domain.PersistenceError{Op: "reserve stock", Err: err}
		}
		if !ok {
			s.rollback(reserved)
			s.rejectPlacement("insufficient_stock")
			return domain.Order{}, s.insufficientAtReserve(item)
		}
		reserved = append(reserved, reservedLine{productID: item.ProductID, qty: item.Qty})
	}

	order := s.buildOrder(req, items)
	if err := s.orders.Create(order); err != nil {
		// Остатки уже уменьшены, а заказа нет — откатываем всё до возврата ошибки.
		s.rollback(reserved)
		s.failPlacement()
		s.logger.WithError(err).WithField("order_number", order.OrderNumber).Error("failed to persist order")
		return domain.Order{}, &domain.PersistenceError{Op: "create order", Err: err}
	}

	s.emitPlaced(&order)
	if s.metrics != nil {
		s.metrics.RecordPlacementCompleted()
	}
	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"items":        len(order.Items),
		"total_minor":  order.TotalMinor,
	}).Info("order placed")

	// Уведомление best-effort: не блокирует ответ и не влияет на результат.
	s.notifyAsync(order)

	return order, nil
}

// Wait дожидается завершения фоновых горутин уведомлений.
func (s *service) Wait() {
	s.wg.Wait()
}

func (s *service) buildOrder(req PlacementRequest, items []domain.OrderItem) domain.Order {
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:              uuid.NewString(),
		OrderNumber:     s.numbers.Next(),
		CustomerInfo:    req.Customer,
		ShippingAddress: req.Shipping,
		Items:           items,
		TotalMinor:      total,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   domain.PaymentStatusPending,
		Status:          domain.OrderStatusPending,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.PaymentVerified {
		order.PaymentStatus = domain.PaymentStatusCompleted
		order.PaymentRef = req.PaymentRef
	}
	return order
}

// insufficientAtReserve строит ошибку нехватки по состоянию на момент резервирования.
func (s *service) insufficientAtReserve(item domain.OrderItem) error {
	available := int32(0)
	if fresh, err := s.products.Get(item.ProductID); err == nil {
		available = fresh.Stock
	}
	return &domain.InsufficientStockError{
		ProductID: item.ProductID,
		Name:      item.Name,
		Requested: item.Qty,
		Available: available,
	}
}

// rollback возвращает зарезервированные количества обратно в остатки.
func (s *service) rollback(reserved []reservedLine) {
	if len(reserved) == 0 {
		return
	}
	if s.metrics != nil {
		s.metrics.RecordRollback()
	}
	for _, line := range reserved {
		if err := s.products.Increment(line.productID, line.qty); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"product_id": line.productID,
				"qty":        line.qty,
			}).Error("stock rollback failed")
		}
	}
}

func (s *service) rejectPlacement(reason string) {
	if s.metrics != nil {
		s.metrics.RecordPlacementRejected(reason)
	}
}

func (s *service) failPlacement() {
	if s.metrics != nil {
		s.metrics.RecordPlacementFailed()
	}
}

// emitPlaced пишет событие оформления в timeline и transactional outbox
// и публикует его в Kafka (если producer настроен).
func (s *service) emitPlaced(order *domain.Order) {
	payload := map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total_minor":  order.TotalMinor,
		"items_count":  len(order.Items),
		"ts":           order.CreatedAt.Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     "OrderPlaced",
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("enqueue event failed")
	} else if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}

	if s.timeline != nil {
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     "OrderPlaced",
			Occurred: order.CreatedAt,
		}
		if err := s.timeline.Append(event); err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Warn("append timeline event failed")
		} else if s.metrics != nil {
			s.metrics.RecordTimelineEvent()
		}
	}

	s.publishOrderEvent(kafka.EventTypeOrderPlaced, order, map[string]interface{}{
		"total_minor": order.TotalMinor,
		"items_count": len(order.Items),
	})
}

// publishOrderEvent публикует событие заказа в Kafka (если producer настроен).
func (s *service) publishOrderEvent(eventType kafka.EventType, order *domain.Order, metadata map[string]interface{}) {
	if s.kafkaProducer == nil {
		return
	}

	event := kafka.NewOrderEvent(eventType, order.ID, order.OrderNumber, string(order.Status), metadata)
	if err := s.kafkaProducer.PublishEvent(kafka.TopicOrderEvents, order.ID, event); err != nil {
		// Логируем ошибку, но не прерываем оформление - Kafka опциональный
		s.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   order.ID,
		}).Warn("failed to publish order event to kafka")
	}
}

// notifyAsync отправляет подтверждение заказа в фоне. Ошибка только логируется.
func (s *service) notifyAsync(order domain.Order) {
	if s.notifier == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.notifier.NotifyOrderPlaced(order); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"email":    order.CustomerInfo.Email,
			}).Warn("order confirmation notification failed")
		}
	}()
}

var (
	pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	emailPattern   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

const maxNotesLen = 500

// validateRequest проверяет форму запроса и собирает все нарушения разом.
func validateRequest(req PlacementRequest) error {
	var errs []error

	if strings.TrimSpace(req.Customer.Name) == "" {
		errs = append(errs, domain.ErrCustomerNameRequired)
	}
	if !emailPattern.MatchString(req.Customer.Email) {
		errs = append(errs, domain.ErrCustomerEmailInvalid)
	}
	if strings.TrimSpace(req.Customer.Phone) == "" {
		errs = append(errs, domain.ErrCustomerPhoneRequired)
	}
	if strings.TrimSpace(req.Shipping.Area) == "" {
		errs = append(errs, domain.ErrAddressAreaRequired)
	}
	if strings.TrimSpace(req.Shipping.City) == "" {
		errs = append(errs, domain.ErrAddressCityRequired)
	}
	if strings.TrimSpace(req.Shipping.State) == "" {
		errs = append(errs, domain.ErrAddressStateRequired)
	}
	if !pincodePattern.MatchString(req.Shipping.Pincode) {
		errs = append(errs, domain.ErrAddressPincodeInvalid)
	}
	if req.PaymentMethod != domain.PaymentMethodCOD && req.PaymentMethod != domain.PaymentMethodOnline {
		errs = append(errs, domain.ErrPaymentMethodInvalid)
	}
	if len(req.Items) == 0 {
		errs = append(errs, domain.ErrItemsRequired)
	}
	for _, line := range req.Items {
		if line.Qty < 1 {
			errs = append(errs, domain.ErrItemQtyInvalid)
			break
		}
	}
	if len(req.Notes) > maxNotesLen {
		errs = append(errs, domain.ErrNotesTooLong)
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errs: errs}
	}
	return nil
}

var _ Service = (*service)(nil)
