package wizard

// StepView is the read-only navigation view of one step.
type StepView struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Order     int        `json:"order"`
	Status    StepStatus `json:"status"`
	Completed bool       `json:"completed"`
}

// Snapshot is an immutable copy of a session's state. Taking one is allowed
// while an operation is in flight.
type Snapshot struct {
	Wizard        string                `json:"wizard"`
	UserID        string                `json:"userId,omitempty"`
	CurrentIndex  int                   `json:"currentIndex"`
	CurrentStepID string                `json:"currentStepId"`
	Steps         []StepView            `json:"steps"`
	Records       map[string]StepRecord `json:"records"`
	IsProcessing  bool                  `json:"isProcessing"`
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg := s.def.Registry
	statuses := s.nav.Statuses()
	steps := make([]StepView, reg.Len())
	for i, d := range reg.steps {
		steps[i] = StepView{ID: d.ID, Title: d.Title, Order: d.Order, Status: statuses[i], Completed: s.nav.Completed(i)}
	}
	records := make(map[string]StepRecord, len(s.records))
	for id, rec := range s.records {
		records[id] = rec.Clone()
	}

	return Snapshot{
		Wizard:        reg.Kind(),
		UserID:        s.userID,
		CurrentIndex:  s.nav.Current(),
		CurrentStepID: reg.At(s.nav.Current()).ID,
		Steps:         steps,
		Records:       records,
		IsProcessing:  s.processing,
	}
}

// Completed reports whether step index i is completed, including when it is
// also the current step.
func (s Snapshot) Completed(i int) bool {
	return i >= 0 && i < len(s.Steps) && s.Steps[i].Completed
}

// ReviewComplete reports whether the submission flow has finished.
func (s Snapshot) ReviewComplete() bool {
	rec, ok := s.Records[StepReview]
	if !ok {
		return false
	}
	_, done := rec.ReviewOutput()
	return done
}
