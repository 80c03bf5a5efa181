package storage

import (
	"context"
	"time"

	"github.com/osanchezp/loyaltynotify/internal/models"
)

type Storage interface {
	// Templates
	UpsertTemplate(ctx context.Context, t *models.Template) error
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	UpsertLegacyTemplate(ctx context.Context, t *models.LegacyTemplate) error
	GetLegacyTemplate(ctx context.Context, id string, ch models.Channel) (*models.LegacyTemplate, error)

	// Recipients
	UpsertRecipient(ctx context.Context, r *models.Recipient) error
	GetRecipient(ctx context.Context, id string) (*models.Recipient, error)
	GetRecipientsByIDs(ctx context.Context, ids []string) ([]models.Recipient, error)
	QueryRecipients(ctx context.Context, q models.RecipientQuery, limit int) ([]models.Recipient, error)
	GetRecipientsByTokens(ctx context.Context, tokens []string) ([]models.Recipient, error)
	RemoveRecipientTokens(ctx context.Context, recipientID string, tokens []string) error
	NextMemberNumber(ctx context.Context) (int, error)

	// Dispatch jobs + delivery ledger
	CreateDispatchJob(ctx context.Context, job *models.DispatchJob) error
	GetDispatchJob(ctx context.Context, id string) (*models.DispatchJob, error)
	UpdateDispatchSummary(ctx context.Context, id string, s models.Summary) error
	FinalizeDispatchJob(ctx context.Context, id string, s models.Summary, at time.Time) error
	UpsertDelivery(ctx context.Context, rec *models.DeliveryRecord) error
	GetDelivery(ctx context.Context, jobID, recipientID string) (*models.DeliveryRecord, error)
	ListDeliveries(ctx context.Context, jobID string) ([]models.DeliveryRecord, error)
	CreateInboxEntry(ctx context.Context, e *models.InboxEntry) error

	// Campaigns + job queue
	CreateCampaign(ctx context.Context, c *models.Campaign) error
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	CreateCampaignJob(ctx context.Context, j *models.CampaignJob) error
	GetCampaignJob(ctx context.Context, id string) (*models.CampaignJob, error)
	GetDueCampaignJobs(ctx context.Context, now time.Time, limit int) ([]models.CampaignJob, error)
	ClaimCampaignJob(ctx context.Context, id string) (bool, error)
	CompleteCampaignJob(ctx context.Context, id string, at time.Time) error
	FailCampaignJob(ctx context.Context, id string, errMsg string, at time.Time) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
