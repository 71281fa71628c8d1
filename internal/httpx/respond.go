package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
)

// envelope — единый формат ответа API: success/message плюс полезная нагрузка.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, code int, v envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, envelope{"success": false, "message": message})
}

// writeDomainError переводит доменные ошибки в HTTP-статусы.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		insufficient *domain.InsufficientStockError
		transition   *domain.InvalidTransitionError
		validation   *domain.ValidationError
	)

	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, envelope{
			"success":   false,
			"message":   insufficient.Error(),
			"productId": insufficient.ProductID,
			"requested": insufficient.Requested,
			"available": insufficient.Available,
		})
	case errors.As(err, &transition):
		writeError(w, http.StatusConflict, transition.Error())
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrProductExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrOrderVersionConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrOTPInvalid),
		errors.Is(err, domain.ErrOTPNotFound),
		errors.Is(err, domain.ErrOTPTooManyAttempts):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrCustomerEmailInvalid),
		errors.Is(err, domain.ErrGatewayOutcomeInvalid),
		errors.Is(err, domain.ErrGatewayAmountInvalid),
		errors.Is(err, domain.ErrGatewaySignatureInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
