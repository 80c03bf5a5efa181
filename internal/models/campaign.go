package models

import "time"

type Campaign struct {
	ID                 string     `json:"id"`
	Name               string     `json:"nombre"`
	LaunchTemplateID   string     `json:"launchTemplateId"`
	ReminderTemplateID string     `json:"reminderTemplateId,omitempty"`
	Segment            Segment    `json:"segment"`
	LaunchAt           *time.Time `json:"launchAt,omitempty"`
	RemindAt           *time.Time `json:"remindAt,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// TemplateFor picks the campaign template for a job kind, falling back to the
// launch template when no reminder variant is configured.
func (c *Campaign) TemplateFor(kind CampaignJobKind) string {
	if kind == CampaignJobReminder && c.ReminderTemplateID != "" {
		return c.ReminderTemplateID
	}
	return c.LaunchTemplateID
}

type CampaignJobKind string

const (
	CampaignJobLaunch   CampaignJobKind = "launch"
	CampaignJobReminder CampaignJobKind = "reminder"
)

type CampaignJobState string

const (
	CampaignJobPending    CampaignJobState = "pending"
	CampaignJobInProgress CampaignJobState = "in_progress"
	CampaignJobCompleted  CampaignJobState = "completed"
	CampaignJobError      CampaignJobState = "error"
)

// CampaignJob is a queued unit of scheduled work. State transitions are
// monotonic: pending -> in_progress -> {completed, error}. A crash between
// claim and finalize leaves the job in_progress for good; it is surfaced by
// job-state inspection, never re-run automatically.
type CampaignJob struct {
	ID           string           `json:"id"`
	CampaignID   string           `json:"campaignId"`
	Kind         CampaignJobKind  `json:"kind"`
	ScheduledFor time.Time        `json:"scheduledFor"`
	State        CampaignJobState `json:"state"`
	Error        string           `json:"error,omitempty"`
	ProcessedAt  *time.Time       `json:"processedAt,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}
