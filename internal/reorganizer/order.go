package reorganizer

import (
	"fmt"
	"math"
)

// Generation identifies one load lifecycle. It increases every time a file is accepted.
type Generation uint64

// ThumbnailState tracks the render progress of a single page preview.
type ThumbnailState int

const (
	ThumbnailPending ThumbnailState = iota
	ThumbnailRendered
	ThumbnailFailed
	ThumbnailSkipped
)

func (s ThumbnailState) String() string {
	switch s {
	case ThumbnailPending:
		return "pending"
	case ThumbnailRendered:
		return "rendered"
	case ThumbnailFailed:
		return "failed"
	case ThumbnailSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("ThumbnailState(%d)", int(s))
	}
}

// PageEntry is one logical page. SourceIndex is fixed at load and never renumbered.
type PageEntry struct {
	SourceIndex int
	Generation  Generation
	Thumbnail   []byte // PNG, nil until rendered
	State       ThumbnailState
	Err         error
}

// Label is the caption shown on the page card, numbered from 1.
func (e *PageEntry) Label() string {
	return fmt.Sprintf("Page %d", e.SourceIndex+1)
}

// OrderModel is the authoritative page arrangement of a session. It is always a
// permutation of [0,N): the only mutation it offers is Move.
type OrderModel struct {
	entries []*PageEntry
}

func newOrderModel(gen Generation, n int) *OrderModel {
	entries := make([]*PageEntry, n)
	for i := range entries {
		entries[i] = &PageEntry{SourceIndex: i, Generation: gen}
	}
	return &OrderModel{entries: entries}
}

func (m *OrderModel) Len() int {
	return len(m.entries)
}

// At returns the entry displayed at pos, or nil when pos is out of range.
func (m *OrderModel) At(pos int) *PageEntry {
	if pos < 0 || pos >= len(m.entries) {
		return nil
	}
	return m.entries[pos]
}

// Position returns the display position of sourceIndex, or -1.
func (m *OrderModel) Position(sourceIndex int) int {
	for pos, e := range m.entries {
		if e.SourceIndex == sourceIndex {
			return pos
		}
	}
	return -1
}

// Move removes the entry at from and reinserts it at to, clamped to the valid
// range. It reports whether the order changed.
func (m *OrderModel) Move(from, to int) bool {
	n := len(m.entries)
	if from < 0 || from >= n {
		return false
	}
	to = max(0, min(to, n-1))
	if to == from {
		return false
	}
	e := m.entries[from]
	if from < to {
		copy(m.entries[from:to], m.entries[from+1:to+1])
	} else {
		copy(m.entries[to+1:from+1], m.entries[to:from])
	}
	m.entries[to] = e
	return true
}

// Snapshot copies the current source-index sequence.
func (m *OrderModel) Snapshot() []int {
	order := make([]int, len(m.entries))
	for i, e := range m.entries {
		order[i] = e.SourceIndex
	}
	return order
}

// Verify checks the permutation invariant.
func (m *OrderModel) Verify() error {
	return verifyPermutation(m.Snapshot(), len(m.entries))
}

func (m *OrderModel) clone() []*PageEntry {
	return append([]*PageEntry(nil), m.entries...)
}

func (m *OrderModel) restore(entries []*PageEntry) {
	m.entries = entries
}

func verifyPermutation(order []int, n int) error {
	if len(order) != n {
		return fmt.Errorf("%w: expected %d pages, got %d", ErrInvalidOrder, n, len(order))
	}
	seen := make([]bool, n)
	for pos, idx := range order {
		if idx < 0 || idx >= n {
			return fmt.Errorf("%w: source index %d at position %d is out of range", ErrInvalidOrder, idx, pos)
		}
		if seen[idx] {
			return fmt.Errorf("%w: source index %d appears more than once", ErrInvalidOrder, idx)
		}
		seen[idx] = true
	}
	return nil
}

// resolveDropSlot turns a geometry-derived insertion slot into an integer slot in
// [0, length]. Slot k means "before the entry at k"; length means "after the last".
func resolveDropSlot(slot float64, length int) (int, error) {
	if math.IsNaN(slot) || math.IsInf(slot, 0) || slot != math.Trunc(slot) {
		return 0, fmt.Errorf("%w: slot %v is not a whole position", ErrInvalidDropTarget, slot)
	}
	if slot < 0 || slot > float64(length) {
		return 0, fmt.Errorf("%w: slot %v outside [0, %d]", ErrInvalidDropTarget, slot, length)
	}
	return int(slot), nil
}
