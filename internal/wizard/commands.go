package wizard

// Command is a user intent handled by Session.Dispatch.
type Command interface {
	commandName() string
}

// Edit stores Value at Path inside StepID's user input. It is local only; the
// input is validated and persisted on the next Advance.
type Edit struct {
	StepID string
	Path   string
	Value  any
}

// Advance validates and saves the current step, then moves forward. On the
// review step it runs the submission flow instead.
type Advance struct{}

// Back moves to the previous step.
type Back struct{}

// GoTo jumps to an accessible step.
type GoTo struct {
	Index int
}

// Submit aggregates every step, calls the generator and persists the merged
// review record.
type Submit struct{}

func (Edit) commandName() string    { return "edit" }
func (Advance) commandName() string { return "advance" }
func (Back) commandName() string    { return "back" }
func (GoTo) commandName() string    { return "goto" }
func (Submit) commandName() string  { return "submit" }
