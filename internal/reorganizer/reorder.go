package reorganizer

import "fmt"

// MoveHandler receives move gestures from any input source, independent of how
// they were detected.
type MoveHandler interface {
	OnMove(from, to int) error
}

// ReorderController turns gestures into OrderModel moves. Every mutation is
// checked against the permutation invariant and rolled back if it fails.
type ReorderController struct {
	o *Organizer
}

var _ MoveHandler = (*ReorderController)(nil)

// OnMove moves the entry displayed at from to position to. to is clamped to the
// ends of the order; from must name an existing position.
func (c *ReorderController) OnMove(from, to int) error {
	return c.o.mutate(func(m *OrderModel) (bool, error) {
		if from < 0 || from >= m.Len() {
			return false, fmt.Errorf("%w: position %d outside [0, %d)", ErrInvalidMove, from, m.Len())
		}
		return m.Move(from, to), nil
	})
}

// MoveEntry moves the page with the given source index to newPosition and
// returns its resulting position.
func (c *ReorderController) MoveEntry(sourceIndex, newPosition int) (int, error) {
	var at int
	err := c.o.mutate(func(m *OrderModel) (bool, error) {
		from := m.Position(sourceIndex)
		if from < 0 {
			return false, fmt.Errorf("%w: source index %d", ErrUnknownPage, sourceIndex)
		}
		changed := m.Move(from, newPosition)
		at = m.Position(sourceIndex)
		return changed, nil
	})
	return at, err
}

// Drop applies a drop computed from pixel geometry. slot is the insertion slot
// in [0, len]; anything fractional or out of range is rejected and the order is
// left untouched.
func (c *ReorderController) Drop(sourceIndex int, slot float64) (int, error) {
	var at int
	err := c.o.mutate(func(m *OrderModel) (bool, error) {
		from := m.Position(sourceIndex)
		if from < 0 {
			return false, fmt.Errorf("%w: source index %d", ErrUnknownPage, sourceIndex)
		}
		k, err := resolveDropSlot(slot, m.Len())
		if err != nil {
			return false, err
		}
		to := k
		if k > from {
			to = k - 1
		}
		changed := m.Move(from, to)
		at = m.Position(sourceIndex)
		return changed, nil
	})
	return at, err
}

// Arrange realizes a complete target order as a sequence of moves. The target
// is validated before anything is moved.
func (c *ReorderController) Arrange(order []int) error {
	return c.o.mutate(func(m *OrderModel) (bool, error) {
		if err := verifyPermutation(order, m.Len()); err != nil {
			return false, err
		}
		changed := false
		for pos, sourceIndex := range order {
			if m.Move(m.Position(sourceIndex), pos) {
				changed = true
			}
		}
		return changed, nil
	})
}

// mutate runs fn against the active order under the lock, verifies the
// permutation invariant, and reflects a change into the view.
func (o *Organizer) mutate(fn func(m *OrderModel) (bool, error)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.session
	if !s.usable() {
		return ErrNoDocument
	}
	before := s.order.clone()
	changed, err := fn(s.order)
	if err != nil {
		s.order.restore(before)
		return err
	}
	if err := s.order.Verify(); err != nil {
		s.order.restore(before)
		o.logger.Error("Reorder broke the page permutation; rolled back.", "sessionId", s.id, "error", err)
		return err
	}
	if changed {
		o.view.Reordered(s.id, s.generation, s.order.Snapshot())
	}
	return nil
}
