package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("wizard-session")

// Options wires a session to its collaborators. Store and Generator are
// required; the rest default to no-ops.
type Options struct {
	Store           RecordStore
	Generator       Generator
	Sidecar         ProgressSidecar
	Instrumentation Instrumentation
	Logger          *zap.Logger
}

// Session is the runtime WizardState of one user in one wizard, together with
// the controller that mutates it. At most one mutating operation is in flight
// at a time: while processing, every command is rejected with ErrBusy.
type Session struct {
	def     *Definition
	userID  string
	store   RecordStore
	gen     Generator
	sidecar ProgressSidecar
	instr   Instrumentation
	logger  *zap.Logger
	tracer  trace.Tracer

	mu         sync.Mutex
	nav        Navigator
	// records holds the working copy of every visited step, edits included.
	records    map[string]StepRecord
	// saved holds what the store last accepted per step; submission reads
	// only from it.
	saved      map[string]StepRecord
	processing bool
}

// NewSession creates a fresh session positioned on the first step. Call
// Resume to rehydrate it from the store.
func NewSession(def *Definition, userID string, opts Options) *Session {
	s := &Session{
		def:     def,
		userID:  userID,
		store:   opts.Store,
		gen:     opts.Generator,
		sidecar: opts.Sidecar,
		instr:   opts.Instrumentation,
		logger:  opts.Logger,
		tracer:  tracer,
		nav:     NewNavigator(def.Registry),
		records: make(map[string]StepRecord),
		saved:   make(map[string]StepRecord),
	}
	if s.sidecar == nil {
		s.sidecar = nopSidecar{}
	}
	if s.instr == nil {
		s.instr = nopInstrumentation{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("wizard", def.Registry.Kind()), zap.String("user_id", userID))
	s.ensureRecord(def.Registry.At(0).ID)
	return s
}

// Kind is the wizard type of the session.
func (s *Session) Kind() string { return s.def.Registry.Kind() }

// UserID is the identity the session persists under; empty when anonymous.
func (s *Session) UserID() string { return s.userID }

// Registry exposes the session's step list.
func (s *Session) Registry() *Registry { return s.def.Registry }

// Resume loads every stored record, replays validation to recompute completion
// and positions the cursor from the sidecar hint, clamped to what the stored
// records make reachable. Without an identity the session stays fresh.
func (s *Session) Resume(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "wizard.resume")
	defer span.End()

	if err := s.begin(); err != nil {
		return err
	}
	if s.userID == "" {
		s.end()
		return nil
	}

	loaded, err := s.store.Load(ctx, s.userID)
	if err != nil {
		s.end()
		span.RecordError(err)
		s.logger.Error("failed to load step records", zap.Error(err))
		return persistenceError(err)
	}
	hint, hasHint := s.sidecar.LastActiveSection(ctx)

	reg := s.def.Registry
	records := make(map[string]StepRecord, len(loaded))
	saved := make(map[string]StepRecord, len(loaded))
	completed := make([]bool, reg.Len())
	highest := -1
	for _, rec := range loaded {
		i, ok := reg.IndexOf(rec.StepID)
		if !ok {
			s.logger.Warn("ignoring record for unknown step", zap.String("step_id", rec.StepID))
			continue
		}
		records[rec.StepID] = rec.Clone()
		saved[rec.StepID] = rec.Clone()
		highest = max(highest, i)
		completed[i] = recordComplete(reg.At(i), rec)
	}
	if !hasHint {
		hint = 0
	}

	s.mu.Lock()
	s.records = records
	s.saved = saved
	s.nav = Rehydrate(reg, completed, highest, hint)
	s.ensureRecord(reg.At(s.nav.Current()).ID)
	s.processing = false
	current := s.nav.Current()
	s.mu.Unlock()

	span.SetAttributes(
		attribute.Int("wizard.records_loaded", len(records)),
		attribute.Int("wizard.current_index", current),
	)
	if hasHint && hint != current {
		s.logger.Info("resume hint clamped", zap.Int("hint", hint), zap.Int("current_index", current))
	}
	return nil
}

// recordComplete replays the completion rule against a stored record. The
// review step counts as complete once it carries a generation result.
func recordComplete(step StepDescriptor, rec StepRecord) bool {
	switch step.ID {
	case StepReview:
		_, ok := rec.ReviewOutput()
		return ok
	case StepConclusion:
		return false
	}
	return ValidateStep(step, rec.UserInput).IsValid
}

// Dispatch applies one command. The returned snapshot reflects the state after
// the command; on error the state is unchanged.
func (s *Session) Dispatch(ctx context.Context, cmd Command) (Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "wizard.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("wizard.kind", s.Kind()),
		attribute.String("wizard.command", cmd.commandName()),
	)

	var err error
	switch c := cmd.(type) {
	case Edit:
		err = s.edit(c)
	case Advance:
		err = s.advance(ctx)
	case Back:
		err = s.back()
	case GoTo:
		err = s.goTo(c.Index)
	case Submit:
		err = s.submit(ctx)
	default:
		err = fmt.Errorf("unsupported command %T", cmd)
	}
	if err != nil {
		span.RecordError(err)
	}
	return s.Snapshot(), err
}

func (s *Session) edit(c Edit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.processing {
		return busyError()
	}
	if s.userID == "" {
		return identityError()
	}
	i, ok := s.def.Registry.IndexOf(c.StepID)
	if !ok {
		return navigationError("That step does not exist.")
	}
	if reach := s.nav.Reach(); i > reach {
		return navigationError("Please complete %s first.", s.def.Registry.At(reach).Title)
	}

	rec := s.records[c.StepID]
	rec.StepID = c.StepID
	rec.UserInput = SetPath(rec.UserInput, c.Path, c.Value)
	s.records[c.StepID] = rec
	return nil
}

func (s *Session) back() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.processing {
		return busyError()
	}
	next, err := s.nav.Back()
	if err != nil {
		return err
	}
	s.nav = next
	s.ensureRecord(s.def.Registry.At(next.Current()).ID)
	return nil
}

func (s *Session) goTo(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.processing {
		return busyError()
	}
	next, err := s.nav.GoTo(i)
	if err != nil {
		return err
	}
	s.nav = next
	s.ensureRecord(s.def.Registry.At(i).ID)
	return nil
}

func (s *Session) advance(ctx context.Context) error {
	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return busyError()
	}
	step := s.def.Registry.At(s.nav.Current())
	switch step.ID {
	case StepReview:
		s.mu.Unlock()
		return s.submit(ctx)
	case StepConclusion:
		s.mu.Unlock()
		return navigationError("You have reached the end of the %s.", step.Title)
	}
	if s.userID == "" {
		s.mu.Unlock()
		return identityError()
	}

	rec := s.records[step.ID]
	rec.StepID = step.ID
	if result := ValidateStep(step, rec.UserInput); !result.IsValid {
		s.mu.Unlock()
		return validationError(result.Errors[0])
	}
	rec = rec.Clone()
	index := s.nav.Current()
	s.processing = true
	s.mu.Unlock()

	err := s.store.SaveWithRetry(ctx, s.userID, step.ID, rec)

	s.mu.Lock()
	s.processing = false
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("failed to save step", zap.String("step_id", step.ID), zap.Error(err))
		return persistenceError(err)
	}
	s.records[step.ID] = rec
	s.saved[step.ID] = rec.Clone()
	s.nav = s.nav.CompleteCurrent()
	s.ensureRecord(s.def.Registry.At(s.nav.Current()).ID)
	next := s.nav.Current()
	s.mu.Unlock()

	s.sidecar.MarkSectionComplete(ctx, index)
	s.sidecar.UpdateLastActiveSection(ctx, next)
	s.instr.StepAdvanced(ctx, s.Kind(), step.ID)
	return nil
}

func (s *Session) submit(ctx context.Context) (err error) {
	ctx, span := s.tracer.Start(ctx, "wizard.submit")
	defer span.End()

	reg := s.def.Registry
	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return busyError()
	}
	if s.userID == "" {
		s.mu.Unlock()
		return identityError()
	}
	if s.nav.Current() != reg.ReviewIndex() {
		s.mu.Unlock()
		return navigationError("Your plan can only be generated from the %s step.", reg.At(reg.ReviewIndex()).Title)
	}
	if i := s.nav.FirstIncomplete(); i >= 0 && i < reg.ReviewIndex() {
		title := reg.At(i).Title
		s.mu.Unlock()
		return validationError(collapsedMessage(title))
	}
	for i := 0; i < reg.ReviewIndex(); i++ {
		step := reg.At(i)
		if result := ValidateStep(step, s.saved[step.ID].UserInput); !result.IsValid {
			s.mu.Unlock()
			return validationError(collapsedMessage(step.Title))
		}
	}
	// Edits made after a step was saved are not part of the plan until the
	// step is advanced again.
	composite := Aggregate(reg, s.saved)
	records := make(map[string]StepRecord, len(s.saved))
	for id, rec := range s.saved {
		records[id] = rec
	}
	s.processing = true
	s.mu.Unlock()

	started := time.Now()
	defer func() {
		s.mu.Lock()
		s.processing = false
		s.mu.Unlock()
		s.instr.SubmissionFinished(ctx, s.Kind(), err, time.Since(started))
	}()

	payload, err := s.def.Prompt.BuildPrompt(composite)
	if err != nil {
		s.logger.Error("failed to build generation payload", zap.Error(err))
		return generationError(err)
	}
	span.SetAttributes(attribute.Int("wizard.payload_bytes", len(payload)))

	result, err := s.gen.Generate(ctx, payload)
	if err == nil && !result.Success {
		err = errors.New(result.Error)
		if result.Error == "" {
			err = errors.New("generator reported failure")
		}
	}
	if err != nil {
		span.RecordError(err)
		s.logger.Error("generation failed", zap.Error(err))
		return generationError(err)
	}

	merged, err := MergeReview(composite, records, result.Output)
	if err != nil {
		return generationError(err)
	}
	if err := s.store.SaveWithRetry(ctx, s.userID, StepReview, merged); err != nil {
		s.logger.Error("failed to save review", zap.Error(err))
		return persistenceError(err)
	}

	s.mu.Lock()
	s.records[StepReview] = merged
	s.saved[StepReview] = merged.Clone()
	s.nav = s.nav.CompleteCurrent()
	s.ensureRecord(StepConclusion)
	s.mu.Unlock()

	s.sidecar.MarkSectionComplete(ctx, reg.ReviewIndex())
	s.sidecar.UpdateLastActiveSection(ctx, reg.ConclusionIndex())
	s.sidecar.MarkWizardComplete(ctx)
	return nil
}

// begin claims the processing flag.
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing {
		return busyError()
	}
	s.processing = true
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.processing = false
	s.mu.Unlock()
}

// ensureRecord keeps an (empty-input) entry for every visited step.
// Callers hold s.mu or own the session exclusively.
func (s *Session) ensureRecord(stepID string) {
	if _, ok := s.records[stepID]; !ok {
		s.records[stepID] = StepRecord{StepID: stepID, UserInput: map[string]any{}}
	}
}
