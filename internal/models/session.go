package models

import "time"

type SessionStatus string

const (
	StatusEmpty     SessionStatus = "empty"
	StatusAnalyzing SessionStatus = "analyzing"
	StatusReady     SessionStatus = "ready"
)

// SessionView is the externally visible state of a session.
type SessionView struct {
	ID          string          `json:"id"`
	Status      SessionStatus   `json:"status"`
	Chatting    bool            `json:"chatting"`
	Preferences Preferences     `json:"preferences"`
	Document    *Document       `json:"document,omitempty"`
	Analysis    *AnalysisResult `json:"analysis,omitempty"`
	Messages    []ChatMessage   `json:"messages"`
	Suggestions []string        `json:"suggestions"`
	Error       string          `json:"error,omitempty"`
	Generation  int64           `json:"generation"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// SessionRecord is the persisted form of a session.
type SessionRecord struct {
	ID                 string          `db:"id"`
	Status             SessionStatus   `db:"status"`
	SummaryLength      SummaryLength   `db:"summary_length"`
	SummaryStyle       SummaryStyle    `db:"summary_style"`
	Generation         int64           `db:"generation"`
	Filename           *string         `db:"filename"`
	FileSize           *int64          `db:"file_size"`
	PageCount          *int            `db:"page_count"`
	S3Key              *string         `db:"s3_key"`
	Analysis           *AnalysisResult `db:"-"`
	DynamicSuggestions []string        `db:"-"`
	ErrorMessage       *string         `db:"error_message"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}
