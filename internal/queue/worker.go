package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/osanchezp/loyaltynotify/internal/models"
)

// Store is the campaign-job queue plus the campaign records the jobs point at.
type Store interface {
	GetDueCampaignJobs(ctx context.Context, now time.Time, limit int) ([]models.CampaignJob, error)
	ClaimCampaignJob(ctx context.Context, id string) (bool, error)
	CompleteCampaignJob(ctx context.Context, id string, at time.Time) error
	FailCampaignJob(ctx context.Context, id string, errMsg string, at time.Time) error
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
}

// CampaignRunner executes the dispatch side of a claimed job.
type CampaignRunner interface {
	RunCampaign(ctx context.Context, c *models.Campaign, kind models.CampaignJobKind) (map[models.Channel]models.Summary, error)
}

// Worker drives the campaign-job state machine: select due pending jobs,
// claim each with a conditional update, run the dispatch, then finalize as
// completed or terminal error. Errored jobs are never retried automatically;
// they stay inspectable with their message.
type Worker struct {
	store  Store
	runner CampaignRunner
	limit  int
	log    zerolog.Logger
	now    func() time.Time
}

func NewWorker(store Store, runner CampaignRunner, limit int, log zerolog.Logger) *Worker {
	if limit <= 0 {
		limit = 20
	}
	return &Worker{
		store:  store,
		runner: runner,
		limit:  limit,
		log:    log,
		now:    time.Now,
	}
}

// RunOnce performs a single poll pass and reports how many jobs it processed.
// A failure inside one job never reaches its siblings.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	jobs, err := w.store.GetDueCampaignJobs(ctx, w.now(), w.limit)
	if err != nil {
		return 0, fmt.Errorf("poll due jobs: %w", err)
	}

	processed := 0
	for _, job := range jobs {
		claimed, err := w.store.ClaimCampaignJob(ctx, job.ID)
		if err != nil {
			w.log.Error().Err(err).Str("job_id", job.ID).Msg("claim failed")
			continue
		}
		if !claimed {
			// Another poll pass got there first.
			w.log.Debug().Str("job_id", job.ID).Msg("job already claimed, skipping")
			continue
		}

		w.process(ctx, job)
		processed++
	}
	return processed, nil
}

func (w *Worker) process(ctx context.Context, job models.CampaignJob) {
	log := w.log.With().Str("job_id", job.ID).Str("campaign_id", job.CampaignID).
		Str("kind", string(job.Kind)).Logger()

	runErr := w.run(ctx, job)
	if runErr != nil {
		log.Error().Err(runErr).Msg("campaign job failed")
		if err := w.store.FailCampaignJob(ctx, job.ID, runErr.Error(), w.now()); err != nil {
			log.Error().Err(err).Msg("failed to record job error state")
		}
		return
	}

	if err := w.store.CompleteCampaignJob(ctx, job.ID, w.now()); err != nil {
		log.Error().Err(err).Msg("failed to mark job completed")
		return
	}
	log.Info().Msg("campaign job completed")
}

func (w *Worker) run(ctx context.Context, job models.CampaignJob) error {
	campaign, err := w.store.GetCampaign(ctx, job.CampaignID)
	if err != nil {
		return fmt.Errorf("load campaign: %w", err)
	}
	if campaign == nil {
		return fmt.Errorf("campaign %s not found", job.CampaignID)
	}

	results, err := w.runner.RunCampaign(ctx, campaign, job.Kind)
	if err != nil {
		return err
	}
	for ch, sum := range results {
		w.log.Info().
			Str("job_id", job.ID).
			Str("channel", string(ch)).
			Int("sent", sum.Sent).
			Int("skipped", sum.Skipped).
			Int("failed", sum.Failed).
			Msg("campaign channel dispatched")
	}
	return nil
}
