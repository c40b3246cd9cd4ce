package reorganizer

import (
	"bytes"
	"time"
)

// Phase is the lifecycle stage of a load session.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseFailed  Phase = "failed"
)

// session is one load lifecycle. It is owned by the Organizer and only touched
// with the organizer lock held.
type session struct {
	id         string
	generation Generation
	source     []byte
	pageCount  int
	order      *OrderModel
	phase      Phase
	pending    int
	failed     int
	err        error
	createdAt  time.Time
}

func (s *session) usable() bool {
	return s != nil && s.order != nil && s.phase != PhaseFailed
}

// PageView is a read-only copy of a PageEntry at a display position.
type PageView struct {
	Position    int
	SourceIndex int
	Label       string
	State       ThumbnailState
	Thumbnail   []byte
	Err         error
}

func viewOf(pos int, e *PageEntry) PageView {
	return PageView{
		Position:    pos,
		SourceIndex: e.SourceIndex,
		Label:       e.Label(),
		State:       e.State,
		Thumbnail:   e.Thumbnail,
		Err:         e.Err,
	}
}

// SessionState is a consistent copy of the active session.
type SessionState struct {
	SessionID  string
	Generation Generation
	Phase      Phase
	PageCount  int
	Pending    int
	Failed     int
	Err        error
	CreatedAt  time.Time
	Pages      []PageView
}

// Order returns the source-index sequence of the copied pages.
func (s SessionState) Order() []int {
	order := make([]int, len(s.Pages))
	for i, p := range s.Pages {
		order[i] = p.SourceIndex
	}
	return order
}

func (s *session) state() SessionState {
	st := SessionState{
		SessionID:  s.id,
		Generation: s.generation,
		Phase:      s.phase,
		PageCount:  s.pageCount,
		Pending:    s.pending,
		Failed:     s.failed,
		Err:        s.err,
		CreatedAt:  s.createdAt,
	}
	if s.order != nil {
		st.Pages = make([]PageView, s.order.Len())
		for pos := range st.Pages {
			st.Pages[pos] = viewOf(pos, s.order.At(pos))
		}
	}
	return st
}

// Snapshot is an atomic read of a session's order together with the bytes it
// applies to. Later moves do not affect it.
type Snapshot struct {
	SessionID  string
	Generation Generation
	Source     []byte
	Order      []int
}

func (s *session) snapshot() Snapshot {
	return Snapshot{
		SessionID:  s.id,
		Generation: s.generation,
		Source:     s.source,
		Order:      s.order.Snapshot(),
	}
}

// IsPDF reports whether data carries a PDF header within its first kilobyte.
func IsPDF(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte("%PDF-"))
}
