package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Ошибка отсутствующего имени покупателя.
	ErrCustomerNameRequired = errors.New("customer name is required")
	// Ошибка отсутствующего или некорректного email.
	ErrCustomerEmailInvalid = errors.New("valid customer email is required")
	// Ошибка отсутствующего телефона покупателя.
	ErrCustomerPhoneRequired = errors.New("customer phone is required")
	// Ошибка отсутствующего района доставки.
	ErrAddressAreaRequired = errors.New("shipping area is required")
	// Ошибка отсутствующего города доставки.
	ErrAddressCityRequired = errors.New("shipping city is required")
	// Ошибка отсутствующего штата/региона доставки.
	ErrAddressStateRequired = errors.New("shipping state is required")
	// Ошибка некорректного почтового индекса (6 цифр, первая 1-9).
	ErrAddressPincodeInvalid = errors.New("shipping pincode must be a valid 6-digit code")
	// Ошибка отсутствия хотя бы одной позиции в корзине.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be at least 1")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrTotalMismatch = errors.New("order total does not match items sum")
	// Ошибка неподдерживаемого способа оплаты.
	ErrPaymentMethodInvalid = errors.New("payment method must be cod or online")
	// Ошибка слишком длинного комментария к заказу.
	ErrNotesTooLong = errors.New("notes cannot exceed 500 characters")

	// ErrProductNotFound возвращается при ссылке на несуществующий товар.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductExists возвращается при создании товара с занятым ID.
	ErrProductExists = errors.New("product already exists")
	// ErrProductNameRequired — у товара должно быть имя.
	ErrProductNameRequired = errors.New("product name is required")
	// ErrProductPriceInvalid — цена товара не может быть отрицательной.
	ErrProductPriceInvalid = errors.New("product price must be non-negative")
	// ErrProductStockInvalid — остаток товара не может быть отрицательным.
	ErrProductStockInvalid = errors.New("product stock must be non-negative")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")

	// ErrGatewayAmountInvalid — сумма платёжного поручения должна быть положительной.
	ErrGatewayAmountInvalid = errors.New("gateway amount must be positive")
	// ErrGatewaySignatureInvalid — подпись платёжного шлюза не прошла проверку.
	ErrGatewaySignatureInvalid = errors.New("invalid payment signature")
	// ErrGatewayOutcomeInvalid — неподдерживаемое значение результата оплаты.
	ErrGatewayOutcomeInvalid = errors.New("unsupported gateway outcome")

	// Ошибки идемпотентности запросов.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")

	// Ошибки OTP-аутентификации.
	ErrOTPNotFound        = errors.New("otp not found or expired")
	ErrOTPExpired         = errors.New("otp has expired")
	ErrOTPInvalid         = errors.New("invalid otp")
	ErrOTPTooManyAttempts = errors.New("too many failed otp attempts")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// ValidationError агрегирует нарушения формы запроса, обнаруженные до любых
// побочных эффектов. Остатки при этой ошибке гарантированно не тронуты.
type ValidationError struct {
	Errs []error
}

func (e *ValidationError) Error() string {
	if len(e.Errs) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		parts = append(parts, err.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() []error {
	return e.Errs
}

// IsValidation проверяет, является ли ошибка ошибкой валидации запроса.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// InsufficientStockError возвращается, когда запрошенное количество превышает
// доступный остаток. Содержит товар и фактическую доступность на момент проверки.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	name := e.Name
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", name, e.Requested, e.Available)
}

// IsInsufficientStock проверяет, является ли ошибка нехваткой остатка.
func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}

// InvalidTransitionError возвращается при недопустимом переходе статуса заказа.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order status transition %s -> %s", e.From, e.To)
}

// PersistenceError оборачивает ошибку хранилища, возникшую после резервирования
// остатков; сигнал вызывающему коду, что был выполнен откат.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
