package models

import "time"

type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryDryRun DeliveryStatus = "dry-run"
	DeliveryFailed DeliveryStatus = "failed"
)

// DeliveryRecord is the ledger entry for one recipient within one dispatch
// run. Keyed by (JobID, RecipientID); writing it again overwrites.
type DeliveryRecord struct {
	JobID       string         `json:"job_id"`
	RecipientID string         `json:"recipient_id"`
	Channel     Channel        `json:"channel"`
	TemplateID  string         `json:"template_id"`
	Endpoints   int            `json:"endpoints"`
	Variables   map[string]any `json:"variables,omitempty"`
	Status      DeliveryStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	SentAt      time.Time      `json:"sent_at"`
}

type InboxEntry struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}
