package notification

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
)

// EmailSender отправляет письмо на один адрес.
type EmailSender interface {
	Send(to, subject, body string) error
}

// LogSender пишет письма в лог вместо SMTP (демо-режим).
type LogSender struct {
	logger *log.Entry
}

// NewLogSender создаёт лог-отправителя.
func NewLogSender(logger *log.Entry) *LogSender {
	if logger == nil {
		logger = log.New().WithField("component", "email")
	}
	return &LogSender{logger: logger}
}

// Send логирует письмо и всегда завершается успешно.
func (s *LogSender) Send(to, subject, body string) error {
	s.logger.WithFields(log.Fields{
		"to":      to,
		"subject": subject,
	}).Info("email dispatched (log mode)")
	s.logger.WithField("to", to).Debug(body)
	return nil
}

// Service реализует уведомления покупателя поверх EmailSender.
type Service struct {
	sender EmailSender
	logger *log.Entry
}

// NewService создаёт сервис уведомлений.
func NewService(sender EmailSender, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "notification")
	}
	return &Service{sender: sender, logger: logger}
}

// NotifyOrderPlaced отправляет подтверждение оформленного заказа.
func (s *Service) NotifyOrderPlaced(order domain.Order) error {
	subject := fmt.Sprintf("Order %s confirmed", order.OrderNumber)
	body := orderPlacedBody(order)
	if err := s.sender.Send(order.CustomerInfo.Email, subject, body); err != nil {
		return fmt.Errorf("send order confirmation: %w", err)
	}
	return nil
}

// NotifyOTP отправляет одноразовый код входа.
func (s *Service) NotifyOTP(email, code string) error {
	body := fmt.Sprintf("Your VStore login code is %s. It expires in 5 minutes.", code)
	if err := s.sender.Send(email, "Your VStore login code", body); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	return nil
}

func orderPlacedBody(order domain.Order) string {
	body := fmt.Sprintf("Hi %s,\n\nyour order %s has been placed.\n\nItems:\n",
		order.CustomerInfo.Name, order.OrderNumber)
	for _, item := range order.Items {
		body += fmt.Sprintf("  - %s x%d — %d\n", item.Name, item.Qty, item.Subtotal())
	}
	body += fmt.Sprintf("\nTotal: %d\nPayment: %s\n", order.TotalMinor, order.PaymentMethod)
	return body
}

var _ domain.NotificationSender = (*Service)(nil)
