package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osanchezp/loyaltynotify/internal/delivery"
	"github.com/osanchezp/loyaltynotify/internal/models"
	"github.com/osanchezp/loyaltynotify/internal/template"
)

// Campaign runs fan both channels out concurrently, so the fakes guard their
// state with a mutex.
type fakeLedgerStore struct {
	mu         sync.Mutex
	deliveries map[string]models.DeliveryRecord
	inbox      []models.InboxEntry
	summaries  []models.Summary
	finalized  *models.Summary
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{deliveries: make(map[string]models.DeliveryRecord)}
}

func (f *fakeLedgerStore) UpsertDelivery(_ context.Context, rec *models.DeliveryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries[rec.JobID+"|"+rec.RecipientID] = *rec
	return nil
}

func (f *fakeLedgerStore) CreateInboxEntry(_ context.Context, e *models.InboxEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbox = append(f.inbox, *e)
	return nil
}

func (f *fakeLedgerStore) UpdateDispatchSummary(_ context.Context, _ string, s models.Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, s)
	return nil
}

func (f *fakeLedgerStore) FinalizeDispatchJob(_ context.Context, _ string, s models.Summary, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = &s
	return nil
}

type pushCall struct {
	tokens []string
	title  string
	body   string
}

type fakePushGateway struct {
	mu    sync.Mutex
	calls []pushCall
	fn    func(tokens []string) (*delivery.PushResult, error)
}

func (f *fakePushGateway) SendPush(_ context.Context, tokens []string, title, body string) (*delivery.PushResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, pushCall{tokens: tokens, title: title, body: body})
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(tokens)
	}
	res := &delivery.PushResult{Success: len(tokens)}
	for _, t := range tokens {
		res.Results = append(res.Results, delivery.EndpointResult{Token: t, OK: true})
	}
	return res, nil
}

type fakeEmailProvider struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]bool
}

func (f *fakeEmailProvider) SendEmail(_ context.Context, to, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[to] {
		return errors.New("smtp 550")
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakeTokenStore struct {
	owners  map[string]models.Recipient // token -> owner
	lookups [][]string
	removed map[string][]string // recipient id -> removed tokens
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{
		owners:  make(map[string]models.Recipient),
		removed: make(map[string][]string),
	}
}

func (f *fakeTokenStore) addOwner(r models.Recipient) {
	for _, t := range r.FCMTokens {
		f.owners[t] = r
	}
}

func (f *fakeTokenStore) GetRecipientsByTokens(_ context.Context, tokens []string) ([]models.Recipient, error) {
	f.lookups = append(f.lookups, append([]string(nil), tokens...))
	seen := make(map[string]struct{})
	var out []models.Recipient
	for _, t := range tokens {
		owner, ok := f.owners[t]
		if !ok {
			continue
		}
		if _, dup := seen[owner.ID]; dup {
			continue
		}
		seen[owner.ID] = struct{}{}
		out = append(out, owner)
	}
	return out, nil
}

func (f *fakeTokenStore) RemoveRecipientTokens(_ context.Context, recipientID string, tokens []string) error {
	f.removed[recipientID] = append(f.removed[recipientID], tokens...)
	return nil
}

type batcherFixture struct {
	batcher *Batcher
	store   *fakeLedgerStore
	push    *fakePushGateway
	email   *fakeEmailProvider
	tokens  *fakeTokenStore
	sleeps  *[]time.Duration
}

func newBatcherFixture() *batcherFixture {
	store := newFakeLedgerStore()
	push := &fakePushGateway{}
	email := &fakeEmailProvider{failFor: make(map[string]bool)}
	tokens := newFakeTokenStore()

	b := NewBatcher(store, push, email, NewHygiene(tokens, zerolog.Nop()), zerolog.Nop())
	fixed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }
	var sleeps []time.Duration
	b.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	return &batcherFixture{batcher: b, store: store, push: push, email: email, tokens: tokens, sleeps: &sleeps}
}

func pushJob(opts models.DispatchOptions) *models.DispatchJob {
	return &models.DispatchJob{
		ID:         "run_20260310T120000_tpl_push",
		Channel:    models.ChannelPush,
		TemplateID: "tpl",
		Options:    opts,
	}
}

func TestRunSkipsRecipientsWithoutEndpoints(t *testing.T) {
	f := newBatcherFixture()
	recipients := []models.Recipient{
		{ID: "con-token", FCMTokens: []string{"tok-1"}},
		{ID: "sin-token"},
	}

	sum := f.batcher.Run(context.Background(), pushJob(models.DispatchOptions{}), recipients,
		template.Content{Title: "Hola", Body: "Cuerpo"}, nil, nil)

	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 1, sum.Skipped)
	assert.Len(t, f.push.calls, 1)
	assert.Len(t, f.store.deliveries, 1, "skipped recipients leave no ledger entry")
}

func TestRunDryRunSendsNothing(t *testing.T) {
	f := newBatcherFixture()
	recipients := []models.Recipient{
		{ID: "a", FCMTokens: []string{"tok-a"}},
		{ID: "b", FCMTokens: []string{"tok-b"}},
	}

	sum := f.batcher.Run(context.Background(), pushJob(models.DispatchOptions{DryRun: true, SaveToInbox: true}),
		recipients, template.Content{Title: "Hola", Body: "Cuerpo"}, nil, nil)

	assert.Equal(t, 2, sum.Sent)
	assert.Empty(t, f.push.calls)
	assert.Empty(t, f.store.deliveries)
	assert.Empty(t, f.store.inbox)
	require.NotNil(t, f.store.finalized, "dry runs still record their summary")
	assert.Equal(t, 2, f.store.finalized.Sent)
}

func TestRunEmailFailureDoesNotAbort(t *testing.T) {
	f := newBatcherFixture()
	f.email.failFor["b@example.com"] = true
	job := &models.DispatchJob{ID: "job-1", Channel: models.ChannelEmail, TemplateID: "tpl"}
	recipients := []models.Recipient{
		{ID: "a", Email: "a@example.com"},
		{ID: "b", Email: "b@example.com"},
		{ID: "c", Email: "c@example.com"},
	}

	sum := f.batcher.Run(context.Background(), job, recipients,
		template.Content{Title: "Asunto", Body: "Cuerpo"}, nil, nil)

	assert.Equal(t, 2, sum.Sent)
	assert.Equal(t, 1, sum.Failed)
	assert.Contains(t, sum.FailureDetail, "recipient b")
	assert.Equal(t, []string{"a@example.com", "c@example.com"}, f.email.sent)

	failed := f.store.deliveries["job-1|b"]
	assert.Equal(t, models.DeliveryFailed, failed.Status)
	assert.NotEmpty(t, failed.Error)
	assert.Equal(t, models.DeliverySent, f.store.deliveries["job-1|c"].Status)
}

func TestRunAllEndpointsFailedCountsAsFailure(t *testing.T) {
	f := newBatcherFixture()
	f.push.fn = func(tokens []string) (*delivery.PushResult, error) {
		res := &delivery.PushResult{Failure: len(tokens)}
		for _, tok := range tokens {
			res.Results = append(res.Results, delivery.EndpointResult{Token: tok, Error: "Unavailable"})
		}
		return res, nil
	}
	recipients := []models.Recipient{{ID: "a", FCMTokens: []string{"t1", "t2"}}}

	sum := f.batcher.Run(context.Background(), pushJob(models.DispatchOptions{}), recipients,
		template.Content{Title: "Hola", Body: "Cuerpo"}, nil, nil)

	assert.Equal(t, 1, sum.Failed)
	assert.Zero(t, sum.Sent)
}

func TestRunPrunesInvalidTokens(t *testing.T) {
	f := newBatcherFixture()
	owner := models.Recipient{ID: "a", FCMTokens: []string{"tok-live", "tok-dead"}}
	f.tokens.addOwner(owner)
	f.push.fn = func(tokens []string) (*delivery.PushResult, error) {
		res := &delivery.PushResult{}
		for _, tok := range tokens {
			if tok == "tok-dead" {
				res.Failure++
				res.Results = append(res.Results, delivery.EndpointResult{Token: tok, Invalid: true, Error: "NotRegistered"})
			} else {
				res.Success++
				res.Results = append(res.Results, delivery.EndpointResult{Token: tok, OK: true})
			}
		}
		return res, nil
	}

	sum := f.batcher.Run(context.Background(), pushJob(models.DispatchOptions{}), []models.Recipient{owner},
		template.Content{Title: "Hola", Body: "Cuerpo"}, nil, nil)

	assert.Equal(t, 1, sum.Sent, "partial endpoint success still counts as sent")
	assert.Equal(t, []string{"tok-dead"}, f.tokens.removed["a"])
}

func TestRunPacingBetweenChunks(t *testing.T) {
	f := newBatcherFixture()
	var recipients []models.Recipient
	for i := 0; i < 4; i++ {
		recipients = append(recipients, models.Recipient{ID: string(rune('a' + i)), Email: "x@example.com"})
	}
	job := &models.DispatchJob{
		ID:      "job-1",
		Channel: models.ChannelEmail,
		Options: models.DispatchOptions{BatchSize: 2, MaxPerSecond: 4},
	}

	f.batcher.Run(context.Background(), job, recipients,
		template.Content{Title: "t", Body: "b"}, nil, nil)

	// Two chunks of two at four per second: the first chunk owns half a
	// second, and nothing follows the last chunk.
	require.Len(t, *f.sleeps, 1)
	assert.Equal(t, 500*time.Millisecond, (*f.sleeps)[0])
}

func TestRunPacingDefaultCeiling(t *testing.T) {
	f := newBatcherFixture()
	recipients := make([]models.Recipient, 1000)
	for i := range recipients {
		recipients[i] = models.Recipient{ID: fmt.Sprintf("r%03d", i), Email: "x@example.com"}
	}
	job := &models.DispatchJob{ID: "job-1", Channel: models.ChannelEmail}

	f.batcher.Run(context.Background(), job, recipients,
		template.Content{Title: "t", Body: "b"}, nil, nil)

	// 500 recipients at 200/s owe 2.5s before the next chunk may start.
	require.Len(t, *f.sleeps, 1)
	assert.Equal(t, 2500*time.Millisecond, (*f.sleeps)[0])
}

func TestRunWritesInboxOnSuccess(t *testing.T) {
	f := newBatcherFixture()
	recipients := []models.Recipient{{ID: "a", FCMTokens: []string{"tok-a"}}}

	f.batcher.Run(context.Background(), pushJob(models.DispatchOptions{SaveToInbox: true}), recipients,
		template.Content{Title: "Hola {nombre}", Body: "Cuerpo"}, nil, nil)

	require.Len(t, f.store.inbox, 1)
	assert.Equal(t, "a", f.store.inbox[0].RecipientID)
}

func TestRunVariablePrecedence(t *testing.T) {
	f := newBatcherFixture()
	recipients := []models.Recipient{{
		ID:        "a",
		Name:      "Ana",
		FCMTokens: []string{"tok-a"},
		Extra:     map[string]any{"sucursal": "Centro"},
	}}

	f.batcher.Run(context.Background(), pushJob(models.DispatchOptions{}), recipients,
		template.Content{Title: "Hola {nombre}", Body: "{sucursal} / {origen}"},
		map[string]any{"origen": "campania"},
		map[string]any{"nombre": "Equipo"})

	require.Len(t, f.push.calls, 1)
	assert.Equal(t, "Hola Equipo", f.push.calls[0].title, "overrides beat recipient fields")
	assert.Equal(t, "Centro / campania", f.push.calls[0].body)
}
