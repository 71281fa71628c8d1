package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
)

// timelineRepositoryInMemory хранит события заказов в памяти; используется
// memory-драйвером хранилища и тестами.
type timelineRepositoryInMemory struct {
	mu     sync.RWMutex
	events map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{events: make(map[string][]domain.TimelineEvent)}
}

// Append добавляет событие и поддерживает хронологический порядок списка.
func (r *timelineRepositoryInMemory) Append(event domain.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	timeline := append(r.events[event.OrderID], event)
	sort.Slice(timeline, func(i, j int) bool {
		return timeline[i].Occurred.Before(timeline[j].Occurred)
	})
	r.events[event.OrderID] = timeline

	return nil
}

// List возвращает события заказа в хронологическом порядке.
func (r *timelineRepositoryInMemory) List(orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[orderID]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
