package library

import (
	"time"

	"github.com/google/uuid"
)

// Logger is the structured logging surface used across the library.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// EventType names a lending transition.
type EventType string

const (
	EventBorrowed            EventType = "BookBorrowed"
	EventQueued              EventType = "BorrowQueued"
	EventReturned            EventType = "BookReturned"
	EventPromoted            EventType = "ReservationPromoted"
	EventReservationAdded    EventType = "ReservationAdded"
	EventReservationCanceled EventType = "ReservationCanceled"
	EventRecordsDeleted      EventType = "BorrowRecordsDeleted"
	EventBookRetired         EventType = "BookRetired"
	EventMemberRetired       EventType = "MemberRetired"
)

// Event describes one state transition performed by the Engine.
type Event struct {
	ID         uuid.UUID
	Type       EventType
	BookID     string
	MemberID   string
	MemberName string
	At         time.Time
}

// Observer receives engine events. Implementations must not call back into the engine.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) { f(e) }

type nopObserver struct{}

func (nopObserver) Notify(Event) {}

// LogObserver writes every event as a structured log line.
type LogObserver struct {
	logger Logger
}

func NewLogObserver(logger Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Notify(e Event) {
	o.logger.Info("lending event",
		"event_id", e.ID.String(),
		"event_type", string(e.Type),
		"book_id", e.BookID,
		"member_id", e.MemberID,
		"member_name", e.MemberName,
		"at", e.At.Format(DateLayout),
	)
}

// MultiObserver fans an event out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) Notify(e Event) {
	for _, o := range m {
		o.Notify(e)
	}
}

func newEvent(t EventType, bookID, memberID, memberName string, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		BookID:     bookID,
		MemberID:   memberID,
		MemberName: memberName,
		At:         at,
	}
}
