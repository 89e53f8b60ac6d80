package wizard

// StepStatus is the navigation state of one step index.
type StepStatus string

const (
	StatusLocked     StepStatus = "locked"
	StatusAccessible StepStatus = "accessible"
	StatusCurrent    StepStatus = "current"
	StatusCompleted  StepStatus = "completed"
)

// Navigator is the gating state machine. It is a value type: transitions
// return a new Navigator and leave the receiver untouched, so a failed
// operation can simply discard the candidate.
//
// Accessibility is always a contiguous prefix [0, Reach()]: the cursor, the
// highest step that has ever held data, and every step whose predecessor in
// that prefix is completed.
type Navigator struct {
	reg       *Registry
	current   int
	highest   int
	completed []bool
}

// NewNavigator starts at index 0 with nothing completed.
func NewNavigator(reg *Registry) Navigator {
	return Navigator{
		reg:       reg,
		completed: make([]bool, reg.Len()),
	}
}

// Rehydrate rebuilds a navigator from persisted state. completed is recomputed
// by the caller from the stored records; highestWithData is -1 when none exist.
// hint is the advisory resume position and is clamped to the accessible frontier.
func Rehydrate(reg *Registry, completed []bool, highestWithData, hint int) Navigator {
	n := NewNavigator(reg)
	copy(n.completed, completed)
	if highestWithData > 0 {
		n.highest = min(highestWithData, reg.Len()-1)
	}
	n.current = clamp(hint, 0, n.Reach())
	return n
}

// Current is the cursor position.
func (n Navigator) Current() int { return n.current }

// Completed reports the completion flag of step i.
func (n Navigator) Completed(i int) bool {
	return i >= 0 && i < len(n.completed) && n.completed[i]
}

// Reach is the highest accessible index.
func (n Navigator) Reach() int {
	reach := max(n.current, n.highest)
	for reach+1 < len(n.completed) && n.completed[reach] {
		reach++
	}
	return reach
}

// Status classifies step i.
func (n Navigator) Status(i int) StepStatus {
	switch {
	case i < 0 || i > n.Reach():
		return StatusLocked
	case i == n.current:
		return StatusCurrent
	case n.Completed(i):
		return StatusCompleted
	default:
		return StatusAccessible
	}
}

// Statuses classifies every step in order.
func (n Navigator) Statuses() []StepStatus {
	out := make([]StepStatus, len(n.completed))
	for i := range out {
		out[i] = n.Status(i)
	}
	return out
}

// FirstIncomplete is the lowest step index not yet completed, or -1.
func (n Navigator) FirstIncomplete() int {
	for i, done := range n.completed {
		if !done {
			return i
		}
	}
	return -1
}

// GoTo moves the cursor to i if it is reachable.
func (n Navigator) GoTo(i int) (Navigator, error) {
	if i < 0 || i >= len(n.completed) {
		return n, navigationError("That step does not exist.")
	}
	if i > n.Reach() {
		missing := n.reg.At(n.Reach())
		return n, navigationError("Please complete %s first.", missing.Title)
	}
	next := n.clone()
	next.current = i
	next.highest = max(next.highest, i)
	return next, nil
}

// Back moves the cursor one step back without touching completion flags.
func (n Navigator) Back() (Navigator, error) {
	if n.current == 0 {
		return n, navigationError("You are already on the first step.")
	}
	next := n.clone()
	next.current--
	return next, nil
}

// CompleteCurrent marks the cursor step completed and advances when a next
// step exists.
func (n Navigator) CompleteCurrent() Navigator {
	next := n.clone()
	next.completed[next.current] = true
	if next.current+1 < len(next.completed) {
		next.current++
		next.highest = max(next.highest, next.current)
	}
	return next
}

func (n Navigator) clone() Navigator {
	c := n
	c.completed = append([]bool(nil), n.completed...)
	return c
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
