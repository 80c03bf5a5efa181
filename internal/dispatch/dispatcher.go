package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/osanchezp/loyaltynotify/internal/models"
	"github.com/osanchezp/loyaltynotify/internal/template"
)

var ErrInvalidRequest = errors.New("invalid dispatch request")

// TemplateResolver yields render-ready content; it degrades instead of
// failing, so dispatch never 404s on an unknown template.
type TemplateResolver interface {
	Resolve(ctx context.Context, id string, ch models.Channel) template.Content
}

type SegmentResolver interface {
	Resolve(ctx context.Context, seg models.Segment) ([]models.Recipient, error)
}

type JobStore interface {
	CreateDispatchJob(ctx context.Context, job *models.DispatchJob) error
}

// Request is one dispatch invocation, whether it arrives over the API or
// from the campaign queue.
type Request struct {
	TemplateID   string                 `json:"templateId"`
	Channel      models.Channel         `json:"channel"`
	Segment      models.Segment         `json:"segment"`
	Options      models.DispatchOptions `json:"options"`
	Defaults     map[string]any         `json:"defaults,omitempty"`
	OverrideVars map[string]any         `json:"overrideVars,omitempty"`
	RequestedBy  string                 `json:"-"`
}

func (r Request) Validate() error {
	if r.TemplateID == "" {
		return fmt.Errorf("%w: templateId is required", ErrInvalidRequest)
	}
	if !r.Channel.IsValid() {
		return fmt.Errorf("%w: unknown channel %q", ErrInvalidRequest, r.Channel)
	}
	if err := r.Segment.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}
	return nil
}

// Dispatcher wires template resolution, segment expansion and the batcher
// into one dispatch operation.
type Dispatcher struct {
	templates TemplateResolver
	segments  SegmentResolver
	jobs      JobStore
	batcher   *Batcher
	log       zerolog.Logger
	now       func() time.Time
}

func NewDispatcher(templates TemplateResolver, segments SegmentResolver, jobs JobStore, batcher *Batcher, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		templates: templates,
		segments:  segments,
		jobs:      jobs,
		batcher:   batcher,
		log:       log,
		now:       time.Now,
	}
}

// Dispatch runs one notification fan-out end to end and returns the job with
// its final summary.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*models.DispatchJob, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	content := d.templates.Resolve(ctx, req.TemplateID, req.Channel)

	recipients, err := d.segments.Resolve(ctx, req.Segment)
	if err != nil {
		return nil, fmt.Errorf("resolve segment: %w", err)
	}

	now := d.now()
	job := &models.DispatchJob{
		ID:          models.NewDispatchJobID(now, req.TemplateID, req.Channel),
		Channel:     req.Channel,
		TemplateID:  req.TemplateID,
		Segment:     req.Segment,
		Options:     req.Options.Normalize(),
		RequestedBy: req.RequestedBy,
		Summary:     models.Summary{Total: len(recipients)},
		CreatedAt:   now,
	}
	if err := d.jobs.CreateDispatchJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create dispatch job: %w", err)
	}

	d.log.Info().
		Str("job_id", job.ID).
		Str("template_id", req.TemplateID).
		Str("channel", string(req.Channel)).
		Int("recipients", len(recipients)).
		Bool("dry_run", job.Options.DryRun).
		Msg("dispatch run starting")

	job.Summary = d.batcher.Run(ctx, job, recipients, content, req.Defaults, req.OverrideVars)
	return job, nil
}
