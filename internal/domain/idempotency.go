package domain

import "time"

// IdempotencyStatus — фаза обработки запроса с ключом идемпотентности.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing — запрос принят, ответ ещё не сохранён.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone — запрос выполнен, сохранённый ответ можно отдавать повторно.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed — обработка упала; повтор с тем же ключом разрешён.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// IdempotencyRecord связывает ключ идемпотентности с хэшем тела запроса и
// сохранённым HTTP-ответом. После TTLAt запись подлежит удалению.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}
