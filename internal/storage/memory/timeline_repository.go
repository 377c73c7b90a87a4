package memory

import (
	"sort"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// timelineStore хранит события в памяти; синхронизацию обеспечивает OrderRepository.
type timelineStore struct {
	events map[int64][]domain.TimelineEvent
}

func newTimelineStore() *timelineStore {
	return &timelineStore{
		events: make(map[int64][]domain.TimelineEvent),
	}
}

// append добавляет событие, сохраняя хронологический порядок.
func (s *timelineStore) append(event domain.TimelineEvent) {
	events := append(s.events[event.OrderID], event)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Occurred.Before(events[j].Occurred)
	})
	s.events[event.OrderID] = events
}

// list возвращает копию событий заказа.
func (s *timelineStore) list(orderID int64) []domain.TimelineEvent {
	events := s.events[orderID]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result
}
