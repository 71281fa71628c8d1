package notification

import (
	"errors"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
)

type capturingSender struct {
	to      string
	subject string
	body    string
	err     error
}

func (c *capturingSender) Send(to, subject, body string) error {
	c.to = to
	c.subject = subject
	c.body = body
	return c.err
}

func sampleOrder() domain.Order {
	return domain.Order{
		ID:          "o-1",
		OrderNumber: "ORD100",
		CustomerInfo: domain.CustomerInfo{
			Name:  "Asha Rao",
			Email: "asha@example.com",
			Phone: "+919900112233",
		},
		Items: []domain.OrderItem{
			{ProductID: "p1", Name: "Masala Chai", PriceMinor: 250, Qty: 2},
		},
		TotalMinor:    500,
		PaymentMethod: domain.PaymentMethodCOD,
	}
}

func TestNotifyOrderPlaced(t *testing.T) {
	sender := &capturingSender{}
	svc := NewService(sender, nil)

	if err := svc.NotifyOrderPlaced(sampleOrder()); err != nil {
		t.Fatalf("NotifyOrderPlaced: %v", err)
	}
	if sender.to != "asha@example.com" {
		t.Fatalf("unexpected recipient %q", sender.to)
	}
	if !strings.Contains(sender.subject, "ORD100") {
		t.Fatalf("subject lacks order number: %q", sender.subject)
	}
	if !strings.Contains(sender.body, "Masala Chai x2") {
		t.Fatalf("body lacks item line: %q", sender.body)
	}
}

func TestNotifyOrderPlacedWrapsError(t *testing.T) {
	sendErr := errors.New("smtp down")
	svc := NewService(&capturingSender{err: sendErr}, nil)

	err := svc.NotifyOrderPlaced(sampleOrder())
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestNotifyOTP(t *testing.T) {
	sender := &capturingSender{}
	svc := NewService(sender, nil)

	if err := svc.NotifyOTP("asha@example.com", "123456"); err != nil {
		t.Fatalf("NotifyOTP: %v", err)
	}
	if !strings.Contains(sender.body, "123456") {
		t.Fatalf("body lacks code: %q", sender.body)
	}
}

func TestLogSenderNeverFails(t *testing.T) {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)

	sender := NewLogSender(logger.WithField("component", "email-test"))
	if err := sender.Send("asha@example.com", "subject", "body"); err != nil {
		t.Fatalf("log sender returned error: %v", err)
	}
}
