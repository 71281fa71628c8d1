package domain

import "time"

// TimelineEvent — запись аудита жизненного цикла заказа. Type совпадает с
// типом события во внешней шине (например, "OrderPlaced"), Reason заполняется
// только для отмен.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
