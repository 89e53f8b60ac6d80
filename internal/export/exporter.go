package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/wizard"
)

var tracer = otel.Tracer("export")

var (
	// ErrReviewIncomplete is returned before the plan has been generated.
	ErrReviewIncomplete = errors.New("export is available once your plan has been generated")
	// ErrNotExportable is returned for indices that have no document.
	ErrNotExportable = errors.New("that section cannot be exported")
)

// DownloadTracker records produced artifacts.
type DownloadTracker interface {
	MarkArtifactDownloaded(ctx context.Context, index int)
}

// Observer is told about every export, for metrics.
type Observer interface {
	ExportFinished(ctx context.Context, wizard string, format Format, err error)
}

// Artifact is one exported document.
type Artifact struct {
	Key         string    `json:"key"`
	Index       int       `json:"index"`
	StepID      string    `json:"stepId"`
	Format      Format    `json:"format"`
	ContentType string    `json:"contentType"`
	Content     []byte    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Exporter renders sections of a completed wizard and stores them.
type Exporter struct {
	objects  ObjectStore
	observer Observer
	logger   *zap.Logger
}

func NewExporter(objects ObjectStore, observer Observer, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{objects: objects, observer: observer, logger: logger}
}

// Request names what to export.
type Request struct {
	Title    string
	Registry *wizard.Registry
	Snapshot wizard.Snapshot
	Index    int
	Format   Format
}

// Export renders the section at req.Index and uploads it. The review index
// exports the whole plan; any earlier index exports that section alone. The
// tracker is only updated once the upload has succeeded.
func (e *Exporter) Export(ctx context.Context, req Request, tracker DownloadTracker) (art Artifact, err error) {
	ctx, span := tracer.Start(ctx, "export.section")
	defer span.End()
	span.SetAttributes(
		attribute.String("wizard", req.Registry.Kind()),
		attribute.Int("index", req.Index),
		attribute.String("format", string(req.Format)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		if e.observer != nil {
			e.observer.ExportFinished(ctx, req.Registry.Kind(), req.Format, err)
		}
	}()

	doc, err := BuildDocument(req.Title, req.Registry, req.Snapshot, req.Index)
	if err != nil {
		return Artifact{}, err
	}
	content, err := Render(doc, req.Format)
	if err != nil {
		return Artifact{}, err
	}

	step := req.Registry.At(req.Index)
	key := fmt.Sprintf("%s/%s/%02d-%s-%s%s",
		req.Snapshot.UserID, req.Registry.Kind(), req.Index, step.ID, uuid.NewString(), req.Format.Extension())
	if err := e.objects.Put(ctx, key, content, req.Format.ContentType()); err != nil {
		e.logger.Error("failed to store export",
			zap.String("wizard", req.Registry.Kind()),
			zap.Int("index", req.Index),
			zap.Error(err))
		return Artifact{}, fmt.Errorf("store export: %w", err)
	}

	if tracker != nil {
		tracker.MarkArtifactDownloaded(ctx, req.Index)
	}
	return Artifact{
		Key:         key,
		Index:       req.Index,
		StepID:      step.ID,
		Format:      req.Format,
		ContentType: req.Format.ContentType(),
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// BuildDocument assembles the document for one index from the merged review
// record. It fails until the review has a generated plan.
func BuildDocument(title string, reg *wizard.Registry, snap wizard.Snapshot, index int) (Document, error) {
	if !snap.ReviewComplete() {
		return Document{}, ErrReviewIncomplete
	}
	if index < 0 || index > reg.ReviewIndex() {
		return Document{}, ErrNotExportable
	}

	review := snap.Records[wizard.StepReview]
	plan, _ := review.ReviewOutput()

	section := func(step wizard.StepDescriptor) Section {
		answers, _ := review.UserInput[step.ID].(map[string]any)
		return Section{Title: step.Title, Answers: answers}
	}

	if index == reg.ReviewIndex() {
		doc := Document{Title: title, Plan: plan}
		for _, step := range reg.Steps() {
			if step.Terminal() {
				continue
			}
			doc.Sections = append(doc.Sections, section(step))
		}
		return doc, nil
	}

	step := reg.At(index)
	return Document{
		Title:    fmt.Sprintf("%s: %s", title, step.Title),
		Sections: []Section{section(step)},
	}, nil
}
