package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:          "order-1",
		OrderNumber: "ORD17000000000001",
		CustomerInfo: domain.CustomerInfo{
			Name:  "Asha Rao",
			Email: "asha@example.com",
			Phone: "+919876543210",
		},
		ShippingAddress: domain.ShippingAddress{
			Area:        "Indiranagar",
			City:        "Bengaluru",
			State:       "Karnataka",
			Pincode:     "560038",
			AddressType: domain.AddressTypeHome,
		},
		Items: []domain.OrderItem{
			{
				ProductID:  "prod-1",
				Name:       "Sony WH-1000XM5 Headphones",
				PriceMinor: 2999000,
				Qty:        2,
				Image:      "https://img.example.com/wh1000xm5.jpg",
			},
		},
		TotalMinor:    5998000,
		PaymentMethod: domain.PaymentMethodCOD,
		PaymentStatus: domain.PaymentStatusPending,
		Status:        domain.OrderStatusPending,
		Version:       0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no customer name",
			mut: func(o *domain.Order) {
				o.CustomerInfo.Name = ""
			},
		},
		{
			name: "bad email",
			mut: func(o *domain.Order) {
				o.CustomerInfo.Email = "not-an-email"
			},
		},
		{
			name: "no phone",
			mut: func(o *domain.Order) {
				o.CustomerInfo.Phone = "  "
			},
		},
		{
			name: "no area",
			mut: func(o *domain.Order) {
				o.ShippingAddress.Area = ""
			},
		},
		{
			name: "pincode too short",
			mut: func(o *domain.Order) {
				o.ShippingAddress.Pincode = "5600"
			},
		},
		{
			name: "pincode leading zero",
			mut: func(o *domain.Order) {
				o.ShippingAddress.Pincode = "060038"
			},
		},
		{
			name: "bad payment method",
			mut: func(o *domain.Order) {
				o.PaymentMethod = "card"
			},
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
			},
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Items[0].Qty = 0
			},
		},
		{
			name: "price invalid",
			mut: func(o *domain.Order) {
				o.Items[0].PriceMinor = -5
			},
		},
		{
			name: "total mismatch",
			mut: func(o *domain.Order) {
				o.TotalMinor = 999
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			// Изменяем состояние согласно сценарию.
			mutOrder := order
			tc.mut(&mutOrder)

			if len(mutOrder.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestOrderTransitions(t *testing.T) {
	cases := []struct {
		from    domain.OrderStatus
		to      domain.OrderStatus
		allowed bool
	}{
		{domain.OrderStatusPending, domain.OrderStatusConfirmed, true},
		{domain.OrderStatusPending, domain.OrderStatusCancelled, true},
		{domain.OrderStatusPending, domain.OrderStatusShipped, false},
		{domain.OrderStatusConfirmed, domain.OrderStatusProcessing, true},
		{domain.OrderStatusConfirmed, domain.OrderStatusCancelled, true},
		{domain.OrderStatusProcessing, domain.OrderStatusShipped, true},
		{domain.OrderStatusProcessing, domain.OrderStatusCancelled, true},
		{domain.OrderStatusShipped, domain.OrderStatusDelivered, true},
		{domain.OrderStatusShipped, domain.OrderStatusCancelled, false},
		{domain.OrderStatusDelivered, domain.OrderStatusPending, false},
		{domain.OrderStatusCancelled, domain.OrderStatusConfirmed, false},
	}

	for _, tc := range cases {
		if got := domain.CanTransition(tc.from, tc.to); got != tc.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestOrderTransition_InvalidReturnsTypedError(t *testing.T) {
	order := makeOrder()
	order.Status = domain.OrderStatusDelivered

	err := order.Transition(domain.OrderStatusPending)
	if err == nil {
		t.Fatal("expected error for delivered -> pending")
	}

	transErr, ok := err.(*domain.InvalidTransitionError)
	if !ok {
		t.Fatalf("expected *InvalidTransitionError, got %T", err)
	}
	if transErr.From != domain.OrderStatusDelivered || transErr.To != domain.OrderStatusPending {
		t.Fatalf("unexpected transition error fields: %+v", transErr)
	}
	if order.Status != domain.OrderStatusDelivered {
		t.Fatalf("status must be unchanged after failed transition, got %s", order.Status)
	}
}

func TestOrderItemSubtotal(t *testing.T) {
	item := domain.OrderItem{PriceMinor: 14990, Qty: 3}
	if got := item.Subtotal(); got != 44970 {
		t.Fatalf("subtotal = %d, want 44970", got)
	}
}
