package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/osanchezp/loyaltynotify/internal/delivery"
	"github.com/osanchezp/loyaltynotify/internal/models"
	"github.com/osanchezp/loyaltynotify/internal/template"
)

const maxFailureDetail = 1000

// Store is the slice of the document store the batcher writes: the delivery
// ledger, the recipient inbox, and the job's running summary.
type Store interface {
	UpsertDelivery(ctx context.Context, rec *models.DeliveryRecord) error
	CreateInboxEntry(ctx context.Context, e *models.InboxEntry) error
	UpdateDispatchSummary(ctx context.Context, id string, s models.Summary) error
	FinalizeDispatchJob(ctx context.Context, id string, s models.Summary, at time.Time) error
}

// Batcher fans one rendered notification out to a recipient list in
// fixed-size chunks, throttled so the achieved throughput stays under the
// job's maxPerSecond ceiling. Recipients inside a chunk are processed
// sequentially; a failure for one recipient is counted and never aborts the
// run.
type Batcher struct {
	store   Store
	push    delivery.PushGateway
	email   delivery.EmailProvider
	hygiene *Hygiene
	log     zerolog.Logger

	// injectable for tests
	now   func() time.Time
	sleep func(time.Duration)
}

func NewBatcher(store Store, push delivery.PushGateway, email delivery.EmailProvider, hygiene *Hygiene, log zerolog.Logger) *Batcher {
	return &Batcher{
		store:   store,
		push:    push,
		email:   email,
		hygiene: hygiene,
		log:     log,
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// Run processes every recipient and returns the final summary. The job row
// must already exist; its summary is merged after every chunk so a truncated
// run leaves its partial progress behind.
func (b *Batcher) Run(ctx context.Context, job *models.DispatchJob, recipients []models.Recipient, content template.Content, defaults, overrides map[string]any) models.Summary {
	opts := job.Options.Normalize()
	summary := models.Summary{Total: len(recipients)}
	invalid := make(map[string]struct{})
	var errs *multierror.Error

	for start := 0; start < len(recipients); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(recipients) {
			end = len(recipients)
		}
		chunk := recipients[start:end]
		chunkStart := b.now()

		for i := range chunk {
			b.processRecipient(ctx, job, &chunk[i], content, defaults, overrides, opts, &summary, invalid, &errs)
		}

		if err := b.store.UpdateDispatchSummary(ctx, job.ID, summary); err != nil {
			b.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to update running summary")
		}

		// Fair-share pacing: a chunk of N notifications owns N/maxPerSecond
		// seconds; sleep off whatever the chunk did not use before starting
		// the next one.
		if end < len(recipients) {
			budget := time.Duration(len(chunk)) * time.Second / time.Duration(opts.MaxPerSecond)
			if wait := budget - b.now().Sub(chunkStart); wait > 0 {
				b.sleep(wait)
			}
		}
	}

	if !opts.DryRun && len(invalid) > 0 {
		tokens := make([]string, 0, len(invalid))
		for t := range invalid {
			tokens = append(tokens, t)
		}
		if err := b.hygiene.PruneInvalid(ctx, tokens); err != nil {
			b.log.Error().Err(err).Str("job_id", job.ID).Msg("token hygiene pass failed")
		}
	}

	if agg := errs.ErrorOrNil(); agg != nil {
		detail := agg.Error()
		if len(detail) > maxFailureDetail {
			detail = detail[:maxFailureDetail]
		}
		summary.FailureDetail = detail
	}

	if err := b.store.FinalizeDispatchJob(ctx, job.ID, summary, b.now()); err != nil {
		b.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to finalize job")
	}

	b.log.Info().
		Str("job_id", job.ID).
		Bool("dry_run", opts.DryRun).
		Int("total", summary.Total).
		Int("sent", summary.Sent).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("dispatch run finished")

	return summary
}

func (b *Batcher) processRecipient(ctx context.Context, job *models.DispatchJob, r *models.Recipient, content template.Content, defaults, overrides map[string]any, opts models.DispatchOptions, summary *models.Summary, invalid map[string]struct{}, errs **multierror.Error) {
	endpoints := r.EndpointCount(job.Channel)
	if endpoints == 0 {
		summary.Skipped++
		b.log.Debug().Str("recipient_id", r.ID).Str("channel", string(job.Channel)).
			Msg("recipient has no usable endpoint, skipping")
		return
	}

	vars := mergeVars(defaults, r.Vars(), r.Extra, overrides)
	title := template.Render(content.Title, vars)
	body := template.Render(content.Body, vars)
	if job.Channel == models.ChannelPush {
		title = template.SanitizePush(title)
		body = template.SanitizePush(body)
	}

	if opts.DryRun {
		summary.Sent++
		return
	}

	rec := models.DeliveryRecord{
		JobID:       job.ID,
		RecipientID: r.ID,
		Channel:     job.Channel,
		TemplateID:  job.TemplateID,
		Endpoints:   endpoints,
		Variables:   vars,
		Status:      models.DeliverySent,
		SentAt:      b.now(),
	}

	var sendErr error
	switch job.Channel {
	case models.ChannelPush:
		res, err := b.push.SendPush(ctx, r.FCMTokens, title, body)
		if err != nil {
			sendErr = err
		} else {
			for _, t := range res.InvalidTokens() {
				invalid[t] = struct{}{}
			}
			if res.Success == 0 {
				sendErr = fmt.Errorf("all %d endpoints failed", endpoints)
			}
		}
	case models.ChannelEmail:
		sendErr = b.email.SendEmail(ctx, r.Email, title, body)
	}

	if sendErr != nil {
		summary.Failed++
		rec.Status = models.DeliveryFailed
		rec.Error = sendErr.Error()
		*errs = multierror.Append(*errs, fmt.Errorf("recipient %s: %w", r.ID, sendErr))
		b.log.Warn().Err(sendErr).Str("recipient_id", r.ID).Str("job_id", job.ID).
			Msg("delivery failed, continuing")
	} else {
		summary.Sent++
		if opts.SaveToInbox {
			entry := &models.InboxEntry{
				ID:          models.NewID("inbox"),
				RecipientID: r.ID,
				Title:       title,
				Body:        body,
				CreatedAt:   b.now(),
			}
			if err := b.store.CreateInboxEntry(ctx, entry); err != nil {
				b.log.Error().Err(err).Str("recipient_id", r.ID).Msg("failed to write inbox entry")
			}
		}
	}

	if err := b.store.UpsertDelivery(ctx, &rec); err != nil {
		b.log.Error().Err(err).Str("recipient_id", r.ID).Str("job_id", job.ID).
			Msg("failed to write ledger entry")
	}
}

// mergeVars layers variable maps left to right; later maps win.
func mergeVars(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}
