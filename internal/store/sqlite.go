package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mail-triage/internal/model"
)

// deleteBatchSize stays well below sqlite's default host parameter limit.
const deleteBatchSize = 500

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db    *sqlx.DB
	byKey *keyedMutex
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, byKey: newKeyedMutex()}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// UpsertMessage inserts the message when no record exists for its external
// id, and otherwise refreshes only the designated mutable fields. AI
// result columns are never written here, so content already validated by
// triage is never silently overwritten.
func (s *SQLiteStore) UpsertMessage(
	ctx context.Context,
	msg *model.Message,
) (bool, error) {
	if msg.ExternalID == "" {
		return false, fmt.Errorf("upserting message: empty external id")
	}

	s.byKey.lock(msg.ExternalID)
	defer s.byKey.unlock(msg.ExternalID)

	labels, err := json.Marshal(msg.Labels)
	if err != nil {
		return false, fmt.Errorf("marshaling labels for %s: %w", msg.ExternalID, err)
	}

	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET
			is_unread = ?, labels = ?, snippet = ?,
			raw_body = ?, clean_body = ?,
			fetched_at = ?, updated_at = ?
		WHERE external_id = ?`,
		boolToInt(msg.IsUnread), string(labels), msg.Snippet,
		msg.RawBody, msg.CleanBody,
		msg.FetchedAt.UTC(), now,
		msg.ExternalID,
	)
	if err != nil {
		return false, fmt.Errorf("refreshing message %s: %w", msg.ExternalID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return false, nil
	}

	var receivedAt any
	if msg.ReceivedAt != nil {
		receivedAt = msg.ReceivedAt.UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (
			external_id, thread_id, from_address, subject, received_at,
			snippet, raw_body, clean_body, is_unread, labels,
			fetched_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ExternalID, msg.ThreadID, msg.FromAddress, msg.Subject, receivedAt,
		msg.Snippet, msg.RawBody, msg.CleanBody, boolToInt(msg.IsUnread), string(labels),
		msg.FetchedAt.UTC(), now, now,
	)
	if err != nil {
		return false, fmt.Errorf("inserting message %s: %w", msg.ExternalID, err)
	}

	return true, nil
}

// GetMessage retrieves a single message by external id. Returns (nil, nil)
// when no record exists.
func (s *SQLiteStore) GetMessage(
	ctx context.Context,
	externalID string,
) (*model.Message, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM messages WHERE external_id = ?", externalID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting message %s: %w", externalID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	msg, err := scanMessage(rows)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetMessages retrieves messages matching the provided filter options.
func (s *SQLiteStore) GetMessages(
	ctx context.Context,
	filter MessageFilter,
) ([]model.Message, error) {
	var conditions []string
	var args []interface{}

	if filter.Unread != nil {
		conditions = append(conditions, "is_unread = ?")
		args = append(args, boolToInt(*filter.Unread))
	}
	if filter.NeedsTriage != nil {
		if *filter.NeedsTriage {
			conditions = append(conditions, "(triaged_at IS NULL OR triage_error != '')")
		} else {
			conditions = append(conditions, "(triaged_at IS NOT NULL AND triage_error = '')")
		}
	}
	if filter.Category != nil {
		conditions = append(conditions, "triage_category = ?")
		args = append(args, *filter.Category)
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, "(subject LIKE ? OR from_address LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q)
	}

	query := "SELECT * FROM messages"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	sortBy := "received_at"
	allowedSorts := map[string]bool{
		"received_at":  true,
		"fetched_at":   true,
		"subject":      true,
		"from_address": true,
	}
	if allowedSorts[filter.SortBy] {
		sortBy = filter.SortBy
	}

	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, direction)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// SetTriageResult replaces the triage columns for one message.
func (s *SQLiteStore) SetTriageResult(
	ctx context.Context,
	externalID string,
	res *model.TriageResult,
) error {
	s.byKey.lock(externalID)
	defer s.byKey.unlock(externalID)

	result, err := s.db.ExecContext(ctx, `
		UPDATE messages SET
			triage_category = ?, triage_urgency = ?, triage_confidence = ?,
			triage_reply_draft = ?, triage_error = ?, triaged_at = ?,
			updated_at = ?
		WHERE external_id = ?`,
		string(res.Category), string(res.Urgency), res.Confidence,
		res.ReplyDraft, res.Error, res.CreatedAt.UTC(),
		time.Now().UTC(),
		externalID,
	)
	if err != nil {
		return fmt.Errorf("setting triage result for %s: %w", externalID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("setting triage result for %s: no such message", externalID)
	}
	return nil
}

// ClearTriageResult removes the triage result so a later sync re-triages
// the message.
func (s *SQLiteStore) ClearTriageResult(
	ctx context.Context,
	externalID string,
) error {
	s.byKey.lock(externalID)
	defer s.byKey.unlock(externalID)

	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET
			triage_category = NULL, triage_urgency = NULL,
			triage_confidence = NULL, triage_reply_draft = NULL,
			triage_error = '', triaged_at = NULL,
			updated_at = ?
		WHERE external_id = ?`,
		time.Now().UTC(), externalID,
	)
	if err != nil {
		return fmt.Errorf("clearing triage result for %s: %w", externalID, err)
	}
	return nil
}

// SetSummaryResult replaces the summary columns for one message.
func (s *SQLiteStore) SetSummaryResult(
	ctx context.Context,
	externalID string,
	res *model.SummaryResult,
) error {
	s.byKey.lock(externalID)
	defer s.byKey.unlock(externalID)

	keyPoints, err := json.Marshal(res.KeyPoints)
	if err != nil {
		return fmt.Errorf("marshaling key points for %s: %w", externalID, err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE messages SET
			summary_title = ?, summary_text = ?, summary_key_points = ?,
			summary_error = ?, summarized_at = ?, updated_at = ?
		WHERE external_id = ?`,
		res.Title, res.Summary, string(keyPoints),
		res.Error, res.CreatedAt.UTC(), time.Now().UTC(),
		externalID,
	)
	if err != nil {
		return fmt.Errorf("setting summary result for %s: %w", externalID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("setting summary result for %s: no such message", externalID)
	}
	return nil
}

// DeleteMessages removes the given records in batches, looping until
// the id list is exhausted.
func (s *SQLiteStore) DeleteMessages(
	ctx context.Context,
	externalIDs []string,
) error {
	for len(externalIDs) > 0 {
		batch := externalIDs
		if len(batch) > deleteBatchSize {
			batch = batch[:deleteBatchSize]
		}
		externalIDs = externalIDs[len(batch):]

		query, args, err := sqlx.In(
			"DELETE FROM messages WHERE external_id IN (?)", batch,
		)
		if err != nil {
			return fmt.Errorf("building delete batch: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
			return fmt.Errorf("deleting message batch: %w", err)
		}
	}
	return nil
}

// scanMessage scans a message row from a sqlx.Rows result set.
func scanMessage(rows *sqlx.Rows) (model.Message, error) {
	var (
		msg        model.Message
		receivedAt sql.NullTime
		isUnread   int
		labels     string

		triageCategory   sql.NullString
		triageUrgency    sql.NullString
		triageConfidence sql.NullFloat64
		triageReplyDraft sql.NullString
		triageError      string
		triagedAt        sql.NullTime

		summaryTitle     string
		summaryText      string
		summaryKeyPoints string
		summaryError     string
		summarizedAt     sql.NullTime
	)

	err := rows.Scan(
		&msg.ExternalID, &msg.ThreadID, &msg.FromAddress, &msg.Subject, &receivedAt,
		&msg.Snippet, &msg.RawBody, &msg.CleanBody, &isUnread, &labels,
		&msg.FetchedAt, &msg.CreatedAt, &msg.UpdatedAt,
		&triageCategory, &triageUrgency, &triageConfidence,
		&triageReplyDraft, &triageError, &triagedAt,
		&summaryTitle, &summaryText, &summaryKeyPoints, &summaryError, &summarizedAt,
	)
	if err != nil {
		return model.Message{}, fmt.Errorf("scanning message row: %w", err)
	}

	msg.IsUnread = isUnread != 0
	if receivedAt.Valid {
		t := receivedAt.Time
		msg.ReceivedAt = &t
	}
	if labels != "" {
		if err := json.Unmarshal([]byte(labels), &msg.Labels); err != nil {
			return model.Message{}, fmt.Errorf("unmarshaling labels: %w", err)
		}
	}

	if triagedAt.Valid {
		msg.Triage = &model.TriageResult{
			Category:   model.Category(triageCategory.String),
			Urgency:    model.Urgency(triageUrgency.String),
			Confidence: triageConfidence.Float64,
			ReplyDraft: triageReplyDraft.String,
			Error:      triageError,
			CreatedAt:  triagedAt.Time,
		}
	}

	if summarizedAt.Valid {
		summary := &model.SummaryResult{
			Title:     summaryTitle,
			Summary:   summaryText,
			Error:     summaryError,
			CreatedAt: summarizedAt.Time,
		}
		if summaryKeyPoints != "" {
			if err := json.Unmarshal([]byte(summaryKeyPoints), &summary.KeyPoints); err != nil {
				return model.Message{}, fmt.Errorf("unmarshaling key points: %w", err)
			}
		}
		msg.Summary = summary
	}

	return msg, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
