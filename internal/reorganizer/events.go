package reorganizer

import "sync"

// EventKind names a change reflected into the visual layer.
type EventKind string

const (
	EventReset           EventKind = "reset"
	EventThumbnailReady  EventKind = "thumbnail-ready"
	EventThumbnailFailed EventKind = "thumbnail-failed"
	EventReordered       EventKind = "reordered"
)

// Event is one entry of the EventLog.
type Event struct {
	Seq         uint64
	Kind        EventKind
	SessionID   string
	Generation  Generation
	Position    int
	SourceIndex int
	Order       []int
}

const defaultEventCapacity = 1024

// EventLog is a View that records changes so remote clients can poll for them.
// Only the most recent events are retained.
type EventLog struct {
	mu       sync.Mutex
	seq      uint64
	capacity int
	events   []Event
}

func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = defaultEventCapacity
	}
	return &EventLog{capacity: capacity}
}

func (l *EventLog) Reset(sessionID string, gen Generation, order []int) {
	l.append(Event{Kind: EventReset, SessionID: sessionID, Generation: gen, Position: -1, SourceIndex: -1, Order: append([]int(nil), order...)})
}

func (l *EventLog) ThumbnailReady(sessionID string, gen Generation, position int, page PageView) {
	l.append(Event{Kind: EventThumbnailReady, SessionID: sessionID, Generation: gen, Position: position, SourceIndex: page.SourceIndex})
}

func (l *EventLog) ThumbnailFailed(sessionID string, gen Generation, position int, page PageView) {
	l.append(Event{Kind: EventThumbnailFailed, SessionID: sessionID, Generation: gen, Position: position, SourceIndex: page.SourceIndex})
}

func (l *EventLog) Reordered(sessionID string, gen Generation, order []int) {
	l.append(Event{Kind: EventReordered, SessionID: sessionID, Generation: gen, Position: -1, SourceIndex: -1, Order: append([]int(nil), order...)})
}

func (l *EventLog) append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	e.Seq = l.seq
	l.events = append(l.events, e)
	if over := len(l.events) - l.capacity; over > 0 {
		l.events = append(l.events[:0:0], l.events[over:]...)
	}
}

// Since returns events with a sequence number greater than seq.
func (l *EventLog) Since(seq uint64) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}
