package domain

import (
	"regexp"
	"strings"
	"time"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, остатки зарезервированы, оплата не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — заказ подтверждён (оплата прошла или принят COD).
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing — заказ собирается на складе.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен покупателю.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён до отгрузки.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentMethod — способ оплаты заказа.
type PaymentMethod string

const (
	// PaymentMethodCOD — оплата наличными при получении.
	PaymentMethodCOD PaymentMethod = "cod"
	// PaymentMethodOnline — онлайн-оплата через платёжный шлюз.
	PaymentMethodOnline PaymentMethod = "online"
)

// PaymentStatus — состояние оплаты заказа.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// AddressType — тип адреса доставки.
type AddressType string

const (
	AddressTypeHome  AddressType = "home"
	AddressTypeWork  AddressType = "work"
	AddressTypeOther AddressType = "other"
)

// CustomerInfo — снапшот контактов покупателя на момент оформления.
type CustomerInfo struct {
	Name  string
	Email string
	Phone string
}

// ShippingAddress — снапшот адреса доставки на момент оформления.
type ShippingAddress struct {
	Area        string
	Landmark    string
	City        string
	State       string
	Pincode     string
	AddressType AddressType
}

// OrderItem представляет одну позицию заказа. Поля фиксируются при создании
// заказа и не меняются, даже если товар в каталоге позже изменится.
type OrderItem struct {
	ProductID  string
	Name       string
	PriceMinor int64
	Qty        int32
	Image      string
}

// Subtotal возвращает стоимость позиции: qty * price.
func (i OrderItem) Subtotal() int64 {
	return int64(i.Qty) * i.PriceMinor
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID              string
	OrderNumber     string
	CustomerInfo    CustomerInfo
	ShippingAddress ShippingAddress
	Items           []OrderItem
	TotalMinor      int64
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	PaymentRef      string
	Status          OrderStatus
	TrackingNumber  string
	Notes           string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const maxNotesLen = 500

var (
	// Почтовый индекс: шесть цифр, первая не ноль.
	pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	emailPattern   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if strings.TrimSpace(o.CustomerInfo.Name) == "" {
		errs = append(errs, ErrCustomerNameRequired)
	}
	if !emailPattern.MatchString(o.CustomerInfo.Email) {
		errs = append(errs, ErrCustomerEmailInvalid)
	}
	if strings.TrimSpace(o.CustomerInfo.Phone) == "" {
		errs = append(errs, ErrCustomerPhoneRequired)
	}
	if strings.TrimSpace(o.ShippingAddress.Area) == "" {
		errs = append(errs, ErrAddressAreaRequired)
	}
	if strings.TrimSpace(o.ShippingAddress.City) == "" {
		errs = append(errs, ErrAddressCityRequired)
	}
	if strings.TrimSpace(o.ShippingAddress.State) == "" {
		errs = append(errs, ErrAddressStateRequired)
	}
	if !pincodePattern.MatchString(o.ShippingAddress.Pincode) {
		errs = append(errs, ErrAddressPincodeInvalid)
	}
	if o.PaymentMethod != PaymentMethodCOD && o.PaymentMethod != PaymentMethodOnline {
		errs = append(errs, ErrPaymentMethodInvalid)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if len(o.Notes) > maxNotesLen {
		errs = append(errs, ErrNotesTooLong)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += item.Subtotal()
	}
	if calc != o.TotalMinor {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// allowedTransitions задаёт граф переходов статусов заказа.
// cancelled достижим только из pre-shipped состояний.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// CanTransition сообщает, допустим ли переход статуса from -> to.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition переводит заказ в новый статус или возвращает InvalidTransitionError.
func (o *Order) Transition(to OrderStatus) error {
	if !CanTransition(o.Status, to) {
		return &InvalidTransitionError{From: o.Status, To: to}
	}
	o.Status = to
	return nil
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}
