package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BerylCAtieno/docmind-api/internal/models"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	SaveSession(ctx context.Context, rec *models.SessionRecord) error
	GetSession(ctx context.Context, id string) (*models.SessionRecord, error)
	DeleteSession(ctx context.Context, id string) error
	ReplaceMessages(ctx context.Context, sessionID string, messages []models.ChatMessage) error
	ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	Ping(ctx context.Context) error
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

type sessionRow struct {
	models.SessionRecord
	AnalysisJSON    sql.NullString `db:"analysis"`
	SuggestionsJSON sql.NullString `db:"suggestions"`
}

type messageRow struct {
	Role      string    `db:"role"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *repository) SaveSession(ctx context.Context, rec *models.SessionRecord) error {
	analysisJSON, err := nullJSON(rec.Analysis, rec.Analysis == nil)
	if err != nil {
		return err
	}
	suggestionsJSON, err := nullJSON(rec.DynamicSuggestions, rec.DynamicSuggestions == nil)
	if err != nil {
		return err
	}

	query := r.db.Rebind(`
		INSERT INTO sessions (id, status, summary_length, summary_style, generation, filename, file_size,
		                      page_count, s3_key, analysis, suggestions, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			summary_length = excluded.summary_length,
			summary_style = excluded.summary_style,
			generation = excluded.generation,
			filename = excluded.filename,
			file_size = excluded.file_size,
			page_count = excluded.page_count,
			s3_key = excluded.s3_key,
			analysis = excluded.analysis,
			suggestions = excluded.suggestions,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at
	`)

	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Status,
		rec.SummaryLength,
		rec.SummaryStyle,
		rec.Generation,
		rec.Filename,
		rec.FileSize,
		rec.PageCount,
		rec.S3Key,
		analysisJSON,
		suggestionsJSON,
		rec.ErrorMessage,
		rec.CreatedAt.UTC(),
		rec.UpdatedAt.UTC(),
	)

	return err
}

func (r *repository) GetSession(ctx context.Context, id string) (*models.SessionRecord, error) {
	var row sessionRow

	query := r.db.Rebind(`
		SELECT id, status, summary_length, summary_style, generation, filename, file_size,
		       page_count, s3_key, analysis, suggestions, error_message, created_at, updated_at
		FROM sessions
		WHERE id = ?
	`)

	err := r.db.QueryRowxContext(ctx, query, id).Scan(
		&row.ID,
		&row.Status,
		&row.SummaryLength,
		&row.SummaryStyle,
		&row.Generation,
		&row.Filename,
		&row.FileSize,
		&row.PageCount,
		&row.S3Key,
		&row.AnalysisJSON,
		&row.SuggestionsJSON,
		&row.ErrorMessage,
		&row.CreatedAt,
		&row.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec := row.SessionRecord
	if row.AnalysisJSON.Valid && row.AnalysisJSON.String != "" {
		var analysis models.AnalysisResult
		if err := json.Unmarshal([]byte(row.AnalysisJSON.String), &analysis); err != nil {
			return nil, fmt.Errorf("failed to decode analysis: %w", err)
		}
		rec.Analysis = &analysis
	}
	if row.SuggestionsJSON.Valid && row.SuggestionsJSON.String != "" {
		if err := json.Unmarshal([]byte(row.SuggestionsJSON.String), &rec.DynamicSuggestions); err != nil {
			return nil, fmt.Errorf("failed to decode suggestions: %w", err)
		}
	}

	return &rec, nil
}

func (r *repository) DeleteSession(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM chat_messages WHERE session_id = ?`), id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM sessions WHERE id = ?`), id); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceMessages overwrites the stored transcript of a session.
func (r *repository) ReplaceMessages(ctx context.Context, sessionID string, messages []models.ChatMessage) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM chat_messages WHERE session_id = ?`), sessionID); err != nil {
		return err
	}

	insert := tx.Rebind(`
		INSERT INTO chat_messages (session_id, seq, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	for i, m := range messages {
		if _, err := tx.ExecContext(ctx, insert, sessionID, i, string(m.Role), m.Content, m.Timestamp.UTC()); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *repository) ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	var rows []messageRow

	query := r.db.Rebind(`
		SELECT role, content, created_at
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY seq
	`)
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, err
	}

	messages := make([]models.ChatMessage, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, models.ChatMessage{
			Role:      models.Role(row.Role),
			Content:   row.Content,
			Timestamp: row.CreatedAt,
		})
	}
	return messages, nil
}

func (r *repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func nullJSON(v any, isNil bool) (sql.NullString, error) {
	if isNil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
