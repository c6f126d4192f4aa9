// ABOUTME: SQLite-backed resource API used for local mode and the dev server
// ABOUTME: Stores records with JSON payloads, an audit log, and idempotent submissions
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/devicedrop/models"
	"github.com/harperreed/devicedrop/moderation"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrInvalidPatch   = errors.New("invalid patch")
)

// Envelope fields that a patch may never touch.
var protectedFields = map[string]bool{
	"id":         true,
	"kind":       true,
	"status":     true,
	"created_at": true,
	"updated_at": true,
}

// AuditEntry is one recorded status change.
type AuditEntry struct {
	ID              string        `json:"id"`
	RecordID        string        `json:"record_id"`
	Kind            models.Kind   `json:"kind"`
	Action          models.Action `json:"action"`
	FromStatus      models.Status `json:"from_status"`
	ToStatus        models.Status `json:"to_status"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	ResetReason     string        `json:"reset_reason,omitempty"`
	AdminNotes      string        `json:"admin_notes,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Backend implements the remote resource API on top of a local database.
type Backend struct {
	db *sql.DB
}

// NewBackend wraps an initialized database.
func NewBackend(db *sql.DB) *Backend {
	return &Backend{db: db}
}

const recordColumns = `id, kind, status, payload, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		rec     models.Record
		payload string
	)
	if err := row.Scan(&rec.ID, &rec.Kind, &rec.Status, &payload, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	p, err := models.DecodePayload(rec.Kind, []byte(payload))
	if err != nil {
		return nil, err
	}
	rec.Payload = p
	return &rec, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike makes q match literally inside a LIKE pattern.
func escapeLike(q string) string {
	return likeEscaper.Replace(q)
}

// List returns one page of a collection, newest first.
func (b *Backend) List(ctx context.Context, spec models.QuerySpec) (models.ListResult, error) {
	where := []string{"kind = ?"}
	args := []any{string(spec.Kind)}

	for key, value := range spec.Filters {
		if !models.IsFilterable(spec.Kind, key) || key == models.FilterSearch {
			continue
		}
		if key == "status" {
			where = append(where, "status = ?")
		} else {
			// key is whitelisted above, so it is safe to splice into the path.
			where = append(where, fmt.Sprintf("lower(json_extract(payload, '$.%s')) = lower(?)", key))
		}
		args = append(args, value)
	}
	if q := strings.TrimSpace(spec.Search); q != "" {
		// Match field values only, never the JSON keys.
		where = append(where, `EXISTS (SELECT 1 FROM json_each(records.payload) WHERE lower(CAST(value AS TEXT)) LIKE ? ESCAPE '\')`)
		args = append(args, "%"+escapeLike(strings.ToLower(q))+"%")
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE "+clause, args...).Scan(&total); err != nil {
		return models.ListResult{}, fmt.Errorf("failed to count %s records: %w", spec.Kind, err)
	}

	pageSize := spec.PageSize
	if pageSize <= 0 {
		pageSize = models.DefaultPageSize
	}
	page := spec.Page
	if page < 1 {
		page = 1
	}

	query := "SELECT " + recordColumns + " FROM records WHERE " + clause +
		" ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	rows, err := b.db.QueryContext(ctx, query, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return models.ListResult{}, fmt.Errorf("failed to list %s records: %w", spec.Kind, err)
	}
	defer rows.Close()

	items := make([]*models.Record, 0, pageSize)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return models.ListResult{}, fmt.Errorf("failed to scan record: %w", err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return models.ListResult{}, err
	}

	return models.ListResult{
		Items:      items,
		Total:      total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// Get retrieves one record.
func (b *Backend) Get(ctx context.Context, kind models.Kind, id string) (*models.Record, error) {
	return getRecord(ctx, b.db, kind, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRecord(ctx context.Context, q querier, kind models.Kind, id string) (*models.Record, error) {
	row := q.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM records WHERE kind = ? AND id = ?", string(kind), id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s %s: %w", kind.Noun(), id, ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateStatus applies a moderation action. The workflow is checked again
// here because other clients may share the database.
func (b *Backend) UpdateStatus(ctx context.Context, kind models.Kind, id string, change models.StatusChange) (*models.Record, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := getRecord(ctx, tx, kind, id)
	if err != nil {
		return nil, err
	}

	decision, err := moderation.Transition(kind, rec.Status, change.Action, change.Audit)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, "UPDATE records SET status = ?, updated_at = ? WHERE id = ?", string(decision.Next), now, id); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_log (id, record_id, kind, action, from_status, to_status, rejection_reason, reset_reason, admin_notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		uuid.New().String(),
		id,
		string(kind),
		string(change.Action),
		string(rec.Status),
		string(decision.Next),
		nullString(decision.Audit.RejectionReason),
		nullString(decision.Audit.ResetReason),
		nullString(decision.Audit.AdminNotes),
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to write audit log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	rec.Status = decision.Next
	rec.UpdatedAt = now
	return rec, nil
}

// Update merges patch into the record payload. Unknown fields and envelope
// fields are rejected with ErrInvalidPatch.
func (b *Backend) Update(ctx context.Context, kind models.Kind, id string, patch map[string]any) (*models.Record, error) {
	if len(patch) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidPatch)
	}
	for key := range patch {
		if protectedFields[key] {
			return nil, fmt.Errorf("%w: field %q cannot be edited", ErrInvalidPatch, key)
		}
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := getRecord(ctx, tx, kind, id)
	if err != nil {
		return nil, err
	}

	fields, err := models.PayloadToMap(rec.Payload)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		fields[k] = v
	}
	payload, err := models.PayloadFromMap(kind, fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, "UPDATE records SET payload = ?, updated_at = ? WHERE id = ?", string(raw), now, id); err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	rec.Payload = payload
	rec.UpdatedAt = now
	return rec, nil
}

// Create inserts a record in the kind's initial status. A token that was
// already used returns the record it created the first time.
func (b *Backend) Create(ctx context.Context, kind models.Kind, token string, payload models.Payload) (*models.Record, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
	if payload == nil || payload.Kind() != kind {
		return nil, fmt.Errorf("%w: payload does not describe a %s", ErrInvalidPatch, kind.Noun())
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if token != "" {
		var existing string
		err := tx.QueryRowContext(ctx, "SELECT record_id FROM submissions WHERE token = ?", token).Scan(&existing)
		if err == nil {
			return getRecord(ctx, tx, kind, existing)
		}
		if err != sql.ErrNoRows {
			return nil, err
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &models.Record{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    moderation.InitialStatus(kind),
		CreatedAt: now,
		UpdatedAt: now,
		Payload:   payload,
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO records ("+recordColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		rec.ID, string(rec.Kind), string(rec.Status), string(raw), rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", err)
	}

	if token != "" {
		if _, err := tx.ExecContext(ctx, "INSERT INTO submissions (token, record_id, created_at) VALUES (?, ?, ?)", token, rec.ID, now); err != nil {
			return nil, fmt.Errorf("failed to record submission: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record. Its audit trail is kept.
func (b *Backend) Delete(ctx context.Context, kind models.Kind, id string) error {
	result, err := b.db.ExecContext(ctx, "DELETE FROM records WHERE kind = ? AND id = ?", string(kind), id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind.Noun(), id, ErrRecordNotFound)
	}
	return nil
}

// AuditTrail returns every status change of a record, oldest first.
func (b *Backend) AuditTrail(ctx context.Context, kind models.Kind, id string) ([]AuditEntry, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, record_id, kind, action, from_status, to_status,
		       COALESCE(rejection_reason, ''), COALESCE(reset_reason, ''), COALESCE(admin_notes, ''), created_at
		FROM audit_log
		WHERE kind = ? AND record_id = ?
		ORDER BY created_at, rowid
	`, string(kind), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.RecordID, &e.Kind, &e.Action, &e.FromStatus, &e.ToStatus,
			&e.RejectionReason, &e.ResetReason, &e.AdminNotes, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
