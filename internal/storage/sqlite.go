package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/osanchezp/loyaltynotify/internal/models"
)

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS templates (
			id TEXT PRIMARY KEY,
			titulo_push TEXT NOT NULL DEFAULT '',
			cuerpo_push TEXT NOT NULL DEFAULT '',
			titulo_email TEXT NOT NULL DEFAULT '',
			cuerpo_email TEXT NOT NULL DEFAULT '',
			variables_sugeridas TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS templates_legacy (
			id TEXT NOT NULL,
			channel TEXT NOT NULL,
			titulo TEXT NOT NULL DEFAULT '',
			cuerpo TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (id, channel)
		)`,
		`CREATE TABLE IF NOT EXISTS recipients (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			nombre TEXT NOT NULL DEFAULT '',
			numero_socio INTEGER NOT NULL DEFAULT 0,
			puntos INTEGER NOT NULL DEFAULT 0,
			activo INTEGER NOT NULL DEFAULT 1,
			suscrito INTEGER NOT NULL DEFAULT 1,
			provincia TEXT NOT NULL DEFAULT '',
			localidad TEXT NOT NULL DEFAULT '',
			fcm_tokens TEXT NOT NULL DEFAULT '[]',
			extra TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS dispatch_jobs (
			id TEXT PRIMARY KEY,
			channel TEXT NOT NULL,
			template_id TEXT NOT NULL,
			segment TEXT NOT NULL DEFAULT '{}',
			options TEXT NOT NULL DEFAULT '{}',
			requested_by TEXT NOT NULL DEFAULT '',
			total INTEGER NOT NULL DEFAULT 0,
			sent INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			failure_detail TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			finalized_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS deliveries (
			job_id TEXT NOT NULL,
			recipient_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			template_id TEXT NOT NULL,
			endpoints INTEGER NOT NULL DEFAULT 0,
			variables TEXT NOT NULL DEFAULT '{}',
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			sent_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (job_id, recipient_id)
		)`,
		`CREATE TABLE IF NOT EXISTS inbox (
			id TEXT PRIMARY KEY,
			recipient_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			read INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS campaigns (
			id TEXT PRIMARY KEY,
			nombre TEXT NOT NULL DEFAULT '',
			launch_template_id TEXT NOT NULL,
			reminder_template_id TEXT NOT NULL DEFAULT '',
			segment TEXT NOT NULL DEFAULT '{}',
			launch_at DATETIME,
			remind_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS campaign_jobs (
			id TEXT PRIMARY KEY,
			campaign_id TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			scheduled_for DATETIME NOT NULL,
			state TEXT NOT NULL DEFAULT 'pending',
			error TEXT NOT NULL DEFAULT '',
			processed_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS counters (
			name TEXT PRIMARY KEY,
			value INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recipients_query ON recipients(activo, suscrito, provincia, localidad)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_job ON deliveries(job_id)`,
		`CREATE INDEX IF NOT EXISTS idx_inbox_recipient ON inbox(recipient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_campaign_jobs_due ON campaign_jobs(state, scheduled_for) WHERE state = 'pending'`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- Templates ---

func (s *SQLiteStorage) UpsertTemplate(ctx context.Context, t *models.Template) error {
	vars, _ := json.Marshal(t.SuggestedVars)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO templates (id, titulo_push, cuerpo_push, titulo_email, cuerpo_email, variables_sugeridas)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			titulo_push = excluded.titulo_push,
			cuerpo_push = excluded.cuerpo_push,
			titulo_email = excluded.titulo_email,
			cuerpo_email = excluded.cuerpo_email,
			variables_sugeridas = excluded.variables_sugeridas`,
		t.ID, t.PushTitle, t.PushBody, t.EmailTitle, t.EmailBody, string(vars),
	)
	return err
}

func (s *SQLiteStorage) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	var t models.Template
	var vars string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, titulo_push, cuerpo_push, titulo_email, cuerpo_email, variables_sugeridas FROM templates WHERE id = ?`, id,
	).Scan(&t.ID, &t.PushTitle, &t.PushBody, &t.EmailTitle, &t.EmailBody, &vars)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(vars), &t.SuggestedVars)
	return &t, nil
}

func (s *SQLiteStorage) UpsertLegacyTemplate(ctx context.Context, t *models.LegacyTemplate) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO templates_legacy (id, channel, titulo, cuerpo) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id, channel) DO UPDATE SET titulo = excluded.titulo, cuerpo = excluded.cuerpo`,
		t.ID, t.Channel, t.Title, t.Body,
	)
	return err
}

func (s *SQLiteStorage) GetLegacyTemplate(ctx context.Context, id string, ch models.Channel) (*models.LegacyTemplate, error) {
	var t models.LegacyTemplate
	err := s.db.QueryRowContext(ctx,
		`SELECT id, channel, titulo, cuerpo FROM templates_legacy WHERE id = ? AND channel = ?`, id, ch,
	).Scan(&t.ID, &t.Channel, &t.Title, &t.Body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &t, err
}

// --- Recipients ---

const recipientCols = `id, email, nombre, numero_socio, puntos, activo, suscrito, provincia, localidad, fcm_tokens, extra`

func (s *SQLiteStorage) UpsertRecipient(ctx context.Context, r *models.Recipient) error {
	tokens, _ := json.Marshal(r.FCMTokens)
	extra, _ := json.Marshal(r.Extra)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recipients (`+recipientCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			nombre = excluded.nombre,
			numero_socio = excluded.numero_socio,
			puntos = excluded.puntos,
			activo = excluded.activo,
			suscrito = excluded.suscrito,
			provincia = excluded.provincia,
			localidad = excluded.localidad,
			fcm_tokens = excluded.fcm_tokens,
			extra = excluded.extra`,
		r.ID, r.Email, r.Name, r.MemberNumber, r.Points, boolInt(r.Active), boolInt(r.Subscribed),
		r.Province, r.City, string(tokens), string(extra),
	)
	return err
}

func (s *SQLiteStorage) scanRecipient(row interface{ Scan(...interface{}) error }) (*models.Recipient, error) {
	var r models.Recipient
	var tokens, extra string
	var active, subscribed int
	err := row.Scan(&r.ID, &r.Email, &r.Name, &r.MemberNumber, &r.Points, &active, &subscribed,
		&r.Province, &r.City, &tokens, &extra)
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(tokens), &r.FCMTokens)
	json.Unmarshal([]byte(extra), &r.Extra)
	r.Active = active == 1
	r.Subscribed = subscribed == 1
	return &r, nil
}

func (s *SQLiteStorage) GetRecipient(ctx context.Context, id string) (*models.Recipient, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recipientCols+` FROM recipients WHERE id = ?`, id)
	r, err := s.scanRecipient(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (s *SQLiteStorage) GetRecipientsByIDs(ctx context.Context, ids []string) ([]models.Recipient, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recipientCols+` FROM recipients WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectRecipients(rows)
}

func (s *SQLiteStorage) QueryRecipients(ctx context.Context, q models.RecipientQuery, limit int) ([]models.Recipient, error) {
	where := []string{"1=1"}
	var args []interface{}
	if q.Active != nil {
		where = append(where, "activo = ?")
		args = append(args, boolInt(*q.Active))
	}
	if q.Subscribed != nil {
		where = append(where, "suscrito = ?")
		args = append(args, boolInt(*q.Subscribed))
	}
	if q.Province != "" {
		where = append(where, "provincia = ?")
		args = append(args, q.Province)
	}
	if q.City != "" {
		where = append(where, "localidad = ?")
		args = append(args, q.City)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recipientCols+` FROM recipients WHERE `+strings.Join(where, " AND ")+` LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectRecipients(rows)
}

func (s *SQLiteStorage) GetRecipientsByTokens(ctx context.Context, tokens []string) ([]models.Recipient, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tokens)), ",")
	args := make([]interface{}, len(tokens))
	for i, t := range tokens {
		args[i] = t
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recipientCols+` FROM recipients r
		 WHERE EXISTS (SELECT 1 FROM json_each(r.fcm_tokens) WHERE json_each.value IN (`+placeholders+`))`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectRecipients(rows)
}

// RemoveRecipientTokens deletes exactly the given tokens from the recipient's
// endpoint list inside one transaction; other tokens keep their order.
func (s *SQLiteStorage) RemoveRecipientTokens(ctx context.Context, recipientID string, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT fcm_tokens FROM recipients WHERE id = ?`, recipientID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}

	var current []string
	json.Unmarshal([]byte(raw), &current)

	remove := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		remove[t] = struct{}{}
	}
	kept := make([]string, 0, len(current))
	for _, t := range current {
		if _, gone := remove[t]; !gone {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(current) {
		return nil
	}

	updated, _ := json.Marshal(kept)
	if _, err := tx.ExecContext(ctx, `UPDATE recipients SET fcm_tokens = ? WHERE id = ?`, string(updated), recipientID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) NextMemberNumber(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO counters (name, value) VALUES ('numero_socio', 0) ON CONFLICT(name) DO NOTHING`); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE counters SET value = value + 1 WHERE name = 'numero_socio'`); err != nil {
		return 0, err
	}
	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT value FROM counters WHERE name = 'numero_socio'`).Scan(&n); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func (s *SQLiteStorage) collectRecipients(rows *sql.Rows) ([]models.Recipient, error) {
	var out []models.Recipient
	for rows.Next() {
		r, err := s.scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// --- Dispatch jobs ---

// CreateDispatchJob inserts the run document. Job ids are deterministic, so a
// re-submitted run merges onto the existing row without resetting its counts.
func (s *SQLiteStorage) CreateDispatchJob(ctx context.Context, job *models.DispatchJob) error {
	segment, _ := json.Marshal(job.Segment)
	options, _ := json.Marshal(job.Options)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatch_jobs (id, channel, template_id, segment, options, requested_by, total, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			segment = excluded.segment,
			options = excluded.options,
			requested_by = excluded.requested_by,
			total = excluded.total`,
		job.ID, job.Channel, job.TemplateID, string(segment), string(options),
		job.RequestedBy, job.Summary.Total, job.CreatedAt,
	)
	return err
}

func (s *SQLiteStorage) GetDispatchJob(ctx context.Context, id string) (*models.DispatchJob, error) {
	var job models.DispatchJob
	var segment, options string
	var finalizedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, channel, template_id, segment, options, requested_by,
			total, sent, skipped, failed, failure_detail, created_at, finalized_at
		 FROM dispatch_jobs WHERE id = ?`, id,
	).Scan(&job.ID, &job.Channel, &job.TemplateID, &segment, &options, &job.RequestedBy,
		&job.Summary.Total, &job.Summary.Sent, &job.Summary.Skipped, &job.Summary.Failed,
		&job.Summary.FailureDetail, &job.CreatedAt, &finalizedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(segment), &job.Segment)
	json.Unmarshal([]byte(options), &job.Options)
	if finalizedAt.Valid {
		job.FinalizedAt = &finalizedAt.Time
	}
	return &job, nil
}

func (s *SQLiteStorage) UpdateDispatchSummary(ctx context.Context, id string, sum models.Summary) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE dispatch_jobs SET total = ?, sent = ?, skipped = ?, failed = ?, failure_detail = ? WHERE id = ?`,
		sum.Total, sum.Sent, sum.Skipped, sum.Failed, sum.FailureDetail, id,
	)
	return err
}

func (s *SQLiteStorage) FinalizeDispatchJob(ctx context.Context, id string, sum models.Summary, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE dispatch_jobs SET total = ?, sent = ?, skipped = ?, failed = ?, failure_detail = ?, finalized_at = ? WHERE id = ?`,
		sum.Total, sum.Sent, sum.Skipped, sum.Failed, sum.FailureDetail, at, id,
	)
	return err
}

// --- Delivery ledger ---

// UpsertDelivery is the idempotent ledger write: re-sending the same
// (job, recipient) pair overwrites, the second write's values win.
func (s *SQLiteStorage) UpsertDelivery(ctx context.Context, rec *models.DeliveryRecord) error {
	vars, _ := json.Marshal(rec.Variables)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (job_id, recipient_id, channel, template_id, endpoints, variables, status, error, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(job_id, recipient_id) DO UPDATE SET
			channel = excluded.channel,
			template_id = excluded.template_id,
			endpoints = excluded.endpoints,
			variables = excluded.variables,
			status = excluded.status,
			error = excluded.error,
			sent_at = excluded.sent_at`,
		rec.JobID, rec.RecipientID, rec.Channel, rec.TemplateID, rec.Endpoints,
		string(vars), rec.Status, rec.Error, rec.SentAt,
	)
	return err
}

func (s *SQLiteStorage) GetDelivery(ctx context.Context, jobID, recipientID string) (*models.DeliveryRecord, error) {
	var rec models.DeliveryRecord
	var vars string
	err := s.db.QueryRowContext(ctx,
		`SELECT job_id, recipient_id, channel, template_id, endpoints, variables, status, error, sent_at
		 FROM deliveries WHERE job_id = ? AND recipient_id = ?`, jobID, recipientID,
	).Scan(&rec.JobID, &rec.RecipientID, &rec.Channel, &rec.TemplateID, &rec.Endpoints,
		&vars, &rec.Status, &rec.Error, &rec.SentAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(vars), &rec.Variables)
	return &rec, nil
}

func (s *SQLiteStorage) ListDeliveries(ctx context.Context, jobID string) ([]models.DeliveryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, recipient_id, channel, template_id, endpoints, variables, status, error, sent_at
		 FROM deliveries WHERE job_id = ? ORDER BY sent_at`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DeliveryRecord
	for rows.Next() {
		var rec models.DeliveryRecord
		var vars string
		if err := rows.Scan(&rec.JobID, &rec.RecipientID, &rec.Channel, &rec.TemplateID, &rec.Endpoints,
			&vars, &rec.Status, &rec.Error, &rec.SentAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(vars), &rec.Variables)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) CreateInboxEntry(ctx context.Context, e *models.InboxEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO inbox (id, recipient_id, title, body, read, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.RecipientID, e.Title, e.Body, boolInt(e.Read), e.CreatedAt,
	)
	return err
}

// --- Campaigns ---

func (s *SQLiteStorage) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	segment, _ := json.Marshal(c.Segment)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, nombre, launch_template_id, reminder_template_id, segment, launch_at, remind_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.LaunchTemplateID, c.ReminderTemplateID, string(segment),
		nullTime(c.LaunchAt), nullTime(c.RemindAt), c.CreatedAt,
	)
	return err
}

func (s *SQLiteStorage) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	var c models.Campaign
	var segment string
	var launchAt, remindAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, nombre, launch_template_id, reminder_template_id, segment, launch_at, remind_at, created_at
		 FROM campaigns WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.LaunchTemplateID, &c.ReminderTemplateID, &segment, &launchAt, &remindAt, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(segment), &c.Segment)
	if launchAt.Valid {
		c.LaunchAt = &launchAt.Time
	}
	if remindAt.Valid {
		c.RemindAt = &remindAt.Time
	}
	return &c, nil
}

// --- Campaign job queue ---

func (s *SQLiteStorage) CreateCampaignJob(ctx context.Context, j *models.CampaignJob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaign_jobs (id, campaign_id, kind, scheduled_for, state, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.CampaignID, j.Kind, j.ScheduledFor, j.State, j.Error, j.CreatedAt,
	)
	return err
}

func (s *SQLiteStorage) GetCampaignJob(ctx context.Context, id string) (*models.CampaignJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, campaign_id, kind, scheduled_for, state, error, processed_at, created_at
		 FROM campaign_jobs WHERE id = ?`, id)
	j, err := scanCampaignJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func (s *SQLiteStorage) GetDueCampaignJobs(ctx context.Context, now time.Time, limit int) ([]models.CampaignJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, campaign_id, kind, scheduled_for, state, error, processed_at, created_at
		 FROM campaign_jobs
		 WHERE state = 'pending' AND scheduled_for <= ?
		 ORDER BY scheduled_for ASC LIMIT ?`,
		now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.CampaignJob
	for rows.Next() {
		j, err := scanCampaignJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// ClaimCampaignJob is a conditional pending -> in_progress transition. It only
// succeeds when the prior state still reads pending, so a concurrent poller
// that already claimed the job makes this return false.
func (s *SQLiteStorage) ClaimCampaignJob(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaign_jobs SET state = 'in_progress' WHERE id = ? AND state = 'pending'`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStorage) CompleteCampaignJob(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE campaign_jobs SET state = 'completed', processed_at = ? WHERE id = ? AND state = 'in_progress'`,
		at.UTC(), id)
	return err
}

func (s *SQLiteStorage) FailCampaignJob(ctx context.Context, id string, errMsg string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE campaign_jobs SET state = 'error', error = ?, processed_at = ? WHERE id = ? AND state = 'in_progress'`,
		errMsg, at.UTC(), id)
	return err
}

func scanCampaignJob(row interface{ Scan(...interface{}) error }) (*models.CampaignJob, error) {
	var j models.CampaignJob
	var processedAt sql.NullTime
	err := row.Scan(&j.ID, &j.CampaignID, &j.Kind, &j.ScheduledFor, &j.State, &j.Error, &processedAt, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	if processedAt.Valid {
		j.ProcessedAt = &processedAt.Time
	}
	return &j, nil
}

// --- helpers ---

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
