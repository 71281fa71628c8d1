package httpx

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
	"github.com/vladislavdragonenkov/vstore/internal/service/checkout"
	ordersvc "github.com/vladislavdragonenkov/vstore/internal/service/orders"
)

const idempotencyTTL = 24 * time.Hour

// OrdersHandler обслуживает оформление и админские операции над заказами.
type OrdersHandler struct {
	checkout    checkout.Service
	orders      ordersvc.Service
	idempotency domain.IdempotencyRepository
	logger      *log.Entry
}

// NewOrdersHandler создаёт обработчик заказов. idempotency опционален:
// без него заголовок Idempotency-Key игнорируется.
func NewOrdersHandler(
	checkoutSvc checkout.Service,
	ordersSvc ordersvc.Service,
	idempotency domain.IdempotencyRepository,
	logger *log.Entry,
) *OrdersHandler {
	if logger == nil {
		logger = log.New().WithField("component", "http-orders")
	}
	return &OrdersHandler{
		checkout:    checkoutSvc,
		orders:      ordersSvc,
		idempotency: idempotency,
		logger:      logger,
	}
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && h.idempotency != nil {
		if done := h.replayOrClaim(w, idemKey, body); done {
			return
		}
	}

	var payload placeOrderPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.finishIdempotent(idemKey, http.StatusBadRequest, nil)
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := validate.Struct(payload); err != nil {
		h.finishIdempotent(idemKey, http.StatusBadRequest, nil)
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	order, err := h.checkout.PlaceOrder(r.Context(), payload.toPlacement())
	if err != nil {
		h.finishIdempotent(idemKey, statusForError(err), nil)
		writeDomainError(w, err)
		return
	}

	response := envelope{
		"success": true,
		"message": "order placed",
		"order":   toOrderView(order),
	}
	if idemKey != "" && h.idempotency != nil {
		raw, _ := json.Marshal(response)
		if err := h.idempotency.MarkDone(idemKey, raw, http.StatusCreated); err != nil {
			h.logger.WithError(err).Warn("failed to persist idempotent response")
		}
	}
	writeJSON(w, http.StatusCreated, response)
}

// replayOrClaim возвращает true, когда ответ уже отправлен (повтор или конфликт).
func (h *OrdersHandler) replayOrClaim(w http.ResponseWriter, key string, body []byte) bool {
	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])

	record, err := h.idempotency.Get(key)
	switch {
	case err == nil:
		if record.RequestHash != hash {
			writeError(w, http.StatusUnprocessableEntity, domain.ErrIdempotencyHashMismatch.Error())
			return true
		}
		switch record.Status {
		case domain.IdempotencyStatusProcessing:
			writeError(w, http.StatusConflict, "request with this idempotency key is still processing")
			return true
		case domain.IdempotencyStatusDone:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(record.HTTPStatus)
			_, _ = w.Write(record.ResponseBody)
			return true
		default:
			// Прошлая попытка упала: разрешаем повтор под тем же ключом.
			return false
		}
	case errors.Is(err, domain.ErrIdempotencyKeyNotFound):
		if _, err := h.idempotency.CreateProcessing(key, hash, time.Now().UTC().Add(idempotencyTTL)); err != nil {
			if errors.Is(err, domain.ErrIdempotencyHashMismatch) {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return true
			}
			if errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
				writeError(w, http.StatusConflict, "request with this idempotency key is still processing")
				return true
			}
			h.logger.WithError(err).Warn("idempotency claim failed, proceeding without replay")
		}
		return false
	default:
		h.logger.WithError(err).Warn("idempotency lookup failed, proceeding without replay")
		return false
	}
}

func (h *OrdersHandler) finishIdempotent(key string, status int, body []byte) {
	if key == "" || h.idempotency == nil {
		return
	}
	if err := h.idempotency.MarkFailed(key, body, status); err != nil {
		h.logger.WithError(err).Warn("failed to mark idempotency record failed")
	}
}

func statusForError(err error) int {
	var insufficient *domain.InsufficientStockError
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.As(err, &insufficient):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	filter := domain.OrderFilter{
		Status: domain.OrderStatus(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("search"),
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	orders, err := h.orders.List(filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "orders": toOrderViews(orders)})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := h.orders.Get(id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		// Позволяем искать и по человекочитаемому номеру.
		order, err = h.orders.GetByNumber(id)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "order": toOrderView(order)})
}

func (h *OrdersHandler) getTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := h.orders.Timeline(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "timeline": toTimelineViews(events)})
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var payload updateStatusPayload
	if err := decodeAndValidate(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	var (
		order domain.Order
		err   error
	)
	if domain.OrderStatus(payload.Status) == domain.OrderStatusCancelled {
		order, err = h.orders.Cancel(r.Context(), id, payload.Reason)
	} else {
		order, err = h.orders.UpdateStatus(r.Context(), id, domain.OrderStatus(payload.Status), payload.TrackingNumber)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "order": toOrderView(order)})
}
