package checkout

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// NumberGenerator выдаёт уникальные человекочитаемые номера заказов.
//
// Формат: ORD<unix millis><4 символа нонса процесса><счётчик>.
// Миллисекунды дают грубую сортируемость по времени, нонс исключает коллизии
// между процессами, атомарный счётчик — между конкурентными вызовами внутри
// одного процесса. Схема "timestamp + количество заказов" от этого отличается
// принципиально: та допускала дубли при двух заказах в одну миллисекунду.
type NumberGenerator struct {
	nonce   string
	counter atomic.Int64
}

// NewNumberGenerator создаёт генератор со случайным нонсом процесса.
func NewNumberGenerator() *NumberGenerator {
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
	return &NumberGenerator{nonce: nonce}
}

// Next возвращает следующий номер заказа. Потокобезопасен.
func (g *NumberGenerator) Next() string {
	return fmt.Sprintf("ORD%d%s%d", time.Now().UnixMilli(), g.nonce, g.counter.Add(1))
}
