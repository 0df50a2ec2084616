package models

import (
	"encoding/base64"
	"time"
)

const PDFContentType = "application/pdf"

// Document is the PDF currently loaded into a session.
type Document struct {
	Filename    string `json:"filename"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type"`
	PageCount   int    `json:"page_count,omitempty"`
	S3Key       string `json:"s3_key,omitempty"`

	Data   []byte `json:"-"`
	Base64 string `json:"-"`
}

// NewDocument wraps raw PDF bytes and encodes the base64 payload sent to the model.
func NewDocument(filename string, data []byte) *Document {
	return &Document{
		Filename:    filename,
		FileSize:    int64(len(data)),
		ContentType: PDFContentType,
		Data:        data,
		Base64:      base64.StdEncoding.EncodeToString(data),
	}
}

type UploadRequest struct {
	File        []byte
	Filename    string
	ContentType string
}

type Entity struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Significance string `json:"significance"`
}

type Sentiment struct {
	Score       float64 `json:"score"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
}

// AnalysisResult is the structured report produced once per document.
type AnalysisResult struct {
	Summary            string    `json:"summary"`
	KeyPoints          []string  `json:"keyPoints"`
	Entities           []Entity  `json:"entities"`
	Sentiment          Sentiment `json:"sentiment"`
	Complexity         string    `json:"complexity"`
	SuggestedQuestions []string  `json:"suggestedQuestions"`
}

type ChatResponse struct {
	Answer            string   `json:"answer"`
	FollowUpQuestions []string `json:"followUpQuestions"`
}

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryItem is a chat turn as sent back to the model, without its timestamp.
type HistoryItem struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Message string `json:"message"`
}
