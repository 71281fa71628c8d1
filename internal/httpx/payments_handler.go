package httpx

import (
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
	"github.com/vladislavdragonenkov/vstore/internal/service/checkout"
	"github.com/vladislavdragonenkov/vstore/internal/service/payment"
)

// PaymentsHandler обслуживает онлайн-оплату: создание платёжного поручения
// у провайдера, проверку подписи с последующим оформлением заказа и
// асинхронный webhook провайдера по уже существующим заказам.
type PaymentsHandler struct {
	gateway  domain.PaymentGateway
	checkout checkout.Service
	payments payment.Service
	logger   *log.Entry
}

// NewPaymentsHandler создаёт обработчик платежей.
func NewPaymentsHandler(gateway domain.PaymentGateway, checkoutSvc checkout.Service, paymentsSvc payment.Service, logger *log.Entry) *PaymentsHandler {
	if logger == nil {
		logger = log.New().WithField("component", "http-payments")
	}
	return &PaymentsHandler{gateway: gateway, checkout: checkoutSvc, payments: paymentsSvc, logger: logger}
}

func (h *PaymentsHandler) createGatewayOrder(w http.ResponseWriter, r *http.Request) {
	var payload createGatewayOrderPayload
	if err := decodeAndValidate(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	currency := strings.ToUpper(payload.Currency)
	if currency == "" {
		currency = "INR"
	}

	gatewayOrder, err := h.gateway.CreateOrder(r.Context(), payload.AmountMinor, currency)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{
		"success": true,
		"gatewayOrder": map[string]any{
			"id":          gatewayOrder.ID,
			"amountMinor": gatewayOrder.AmountMinor,
			"currency":    gatewayOrder.Currency,
			"status":      gatewayOrder.Status,
		},
	})
}

// verifyAndPlace проверяет подпись провайдера и оформляет заказ с уже
// подтверждённой оплатой. Неверная подпись не создаёт заказ и не трогает остатки.
func (h *PaymentsHandler) verifyAndPlace(w http.ResponseWriter, r *http.Request) {
	var payload verifyPaymentPayload
	if err := decodeAndValidate(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.gateway.VerifySignature(payload.GatewayOrderID, payload.GatewayPaymentID, payload.Signature); err != nil {
		if errors.Is(err, domain.ErrGatewaySignatureInvalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeDomainError(w, err)
		return
	}

	placement := payload.Order.toPlacement()
	placement.PaymentMethod = domain.PaymentMethodOnline
	placement.PaymentRef = payload.GatewayPaymentID
	placement.PaymentVerified = true

	order, err := h.checkout.PlaceOrder(r.Context(), placement)
	if err != nil {
		h.logger.WithError(err).WithField("gateway_payment_id", payload.GatewayPaymentID).
			Warn("payment verified but order placement failed")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{
		"success": true,
		"message": "payment verified, order placed",
		"order":   toOrderView(order),
	})
}

// webhook принимает асинхронный результат провайдера по ранее оформленному
// заказу. Подпись проверяется до любого обращения к заказу, идемпотентность
// повторных доставок обеспечивает сервис подтверждения.
func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	var payload paymentWebhookPayload
	if err := decodeAndValidate(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.gateway.VerifySignature(payload.GatewayOrderID, payload.GatewayPaymentID, payload.Signature); err != nil {
		if errors.Is(err, domain.ErrGatewaySignatureInvalid) {
			h.logger.WithField("order_id", payload.OrderID).Warn("webhook with invalid signature rejected")
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeDomainError(w, err)
		return
	}

	order, err := h.payments.Confirm(r.Context(), payload.OrderID, payload.GatewayPaymentID, domain.GatewayOutcome(payload.Outcome))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"success": true,
		"order":   toOrderView(order),
	})
}
