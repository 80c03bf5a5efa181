package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osanchezp/loyaltynotify/internal/models"
	"github.com/osanchezp/loyaltynotify/internal/template"
)

type fakeTemplates struct {
	content template.Content
}

func (f *fakeTemplates) Resolve(_ context.Context, _ string, _ models.Channel) template.Content {
	return f.content
}

type fakeSegments struct {
	recipients []models.Recipient
}

func (f *fakeSegments) Resolve(_ context.Context, _ models.Segment) ([]models.Recipient, error) {
	return f.recipients, nil
}

type fakeJobStore struct {
	mu      sync.Mutex
	created []models.DispatchJob
}

func (f *fakeJobStore) CreateDispatchJob(_ context.Context, job *models.DispatchJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, *job)
	return nil
}

func newTestDispatcher(recipients []models.Recipient) (*Dispatcher, *fakeJobStore, *batcherFixture) {
	f := newBatcherFixture()
	jobs := &fakeJobStore{}
	d := NewDispatcher(
		&fakeTemplates{content: template.Content{Title: "Hola {nombre}", Body: "Cuerpo"}},
		&fakeSegments{recipients: recipients},
		jobs,
		f.batcher,
		zerolog.Nop(),
	)
	d.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return d, jobs, f
}

func TestDispatchEndToEnd(t *testing.T) {
	d, jobs, f := newTestDispatcher([]models.Recipient{
		{ID: "a", Name: "Ana", FCMTokens: []string{"tok-a"}},
		{ID: "b", Name: "Beto"},
	})

	job, err := d.Dispatch(context.Background(), Request{
		TemplateID: "bienvenida",
		Channel:    models.ChannelPush,
		Segment:    models.Segment{Type: models.SegmentMany, UIDs: []string{"a", "b"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "run_20260310T120000_bienvenida_push", job.ID)
	assert.Equal(t, 2, job.Summary.Total)
	assert.Equal(t, 1, job.Summary.Sent)
	assert.Equal(t, 1, job.Summary.Skipped)
	require.Len(t, jobs.created, 1)
	assert.Len(t, f.push.calls, 1)
}

func TestDispatchValidation(t *testing.T) {
	d, _, _ := newTestDispatcher(nil)

	tests := []struct {
		name string
		req  Request
	}{
		{"missing template", Request{Channel: models.ChannelPush, Segment: models.Segment{Type: models.SegmentOne, UID: "u"}}},
		{"bad channel", Request{TemplateID: "t", Channel: "sms", Segment: models.Segment{Type: models.SegmentOne, UID: "u"}}},
		{"bad segment", Request{TemplateID: "t", Channel: models.ChannelPush, Segment: models.Segment{Type: models.SegmentOne}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Dispatch(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestDispatchJobIDSeparatesChannels(t *testing.T) {
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	push := models.NewDispatchJobID(at, "tpl", models.ChannelPush)
	email := models.NewDispatchJobID(at, "tpl", models.ChannelEmail)

	assert.NotEqual(t, push, email)
	assert.Equal(t, push, models.NewDispatchJobID(at, "tpl", models.ChannelPush), "same inputs map to the same job")
}

func TestRunCampaignBothChannels(t *testing.T) {
	d, jobs, f := newTestDispatcher([]models.Recipient{
		{ID: "a", Name: "Ana", Email: "ana@example.com", FCMTokens: []string{"tok-a"}},
	})

	campaign := &models.Campaign{
		ID:               "camp-1",
		LaunchTemplateID: "lanzamiento",
		Segment:          models.Segment{Type: models.SegmentOne, UID: "a"},
	}

	results, err := d.RunCampaign(context.Background(), campaign, models.CampaignJobLaunch)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[models.ChannelPush].Sent)
	assert.Equal(t, 1, results[models.ChannelEmail].Sent)
	assert.Len(t, jobs.created, 2)
	assert.Len(t, f.email.sent, 1)
	assert.Len(t, f.push.calls, 1)
	require.Len(t, f.store.inbox, 1, "only the push leg saves to the inbox")
}

func TestRunCampaignReminderTemplate(t *testing.T) {
	c := &models.Campaign{LaunchTemplateID: "lanzamiento", ReminderTemplateID: "recordatorio"}
	assert.Equal(t, "recordatorio", c.TemplateFor(models.CampaignJobReminder))

	noReminder := &models.Campaign{LaunchTemplateID: "lanzamiento"}
	assert.Equal(t, "lanzamiento", noReminder.TemplateFor(models.CampaignJobReminder))
}
