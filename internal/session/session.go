// Package session holds the per-document state machine: empty, analyzing, ready,
// plus an independent chat in-flight flag once ready.
//
// Every upload and reset bumps the session generation. Model work started under an
// older generation is rejected with ErrStale when it completes, so a slow response
// can never overwrite the state of a newer document.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/BerylCAtieno/docmind-api/internal/models"
)

// ChatErrorReply closes out a chat turn whose model request failed.
const ChatErrorReply = "I'm sorry, I encountered an error while answering. Please try again."

var (
	ErrPreferencesLocked = errors.New("preferences can only be changed before analysis starts")
	ErrNotReady          = errors.New("no analyzed document in session")
	ErrChatInFlight      = errors.New("a chat turn is already in progress")
	ErrStale             = errors.New("session has moved on to a newer document")
	ErrEmptyQuestion     = errors.New("question must not be empty")
	ErrClosed            = errors.New("session has been deleted")
)

// AnalysisTicket describes an analysis started by BeginAnalysis.
type AnalysisTicket struct {
	Generation  int64
	Document    *models.Document
	Preferences models.Preferences
}

// ChatTicket describes a chat turn started by BeginChat. History holds the turns
// that preceded Question.
type ChatTicket struct {
	Generation int64
	Document   *models.Document
	Question   string
	History    []models.HistoryItem
}

type Session struct {
	mu sync.Mutex

	// writeMu orders persistence so snapshots reach storage in the order they were taken.
	writeMu sync.Mutex

	id          string
	closed      bool
	status      models.SessionStatus
	chatting    bool
	prefs       models.Preferences
	doc         *models.Document
	analysis    *models.AnalysisResult
	messages    []models.ChatMessage
	suggestions []string
	errMsg      string
	generation  int64
	createdAt   time.Time
	updatedAt   time.Time

	now func() time.Time
}

func New(id string) *Session {
	return NewWithClock(id, time.Now)
}

func NewWithClock(id string, now func() time.Time) *Session {
	t := now()
	return &Session{
		id:        id,
		status:    models.StatusEmpty,
		prefs:     models.DefaultPreferences(),
		createdAt: t,
		updatedAt: t,
		now:       now,
	}
}

// Restore rebuilds a session from its persisted record. doc may be nil when the
// record holds no document. A session persisted mid-analysis comes back empty.
func Restore(rec *models.SessionRecord, doc *models.Document, messages []models.ChatMessage) *Session {
	s := &Session{
		id:          rec.ID,
		status:      rec.Status,
		prefs:       models.Preferences{Length: rec.SummaryLength, Style: rec.SummaryStyle}.WithDefaults(),
		doc:         doc,
		analysis:    rec.Analysis,
		messages:    append([]models.ChatMessage(nil), messages...),
		suggestions: cloneStrings(rec.DynamicSuggestions),
		generation:  rec.Generation,
		createdAt:   rec.CreatedAt,
		updatedAt:   rec.UpdatedAt,
		now:         time.Now,
	}
	if rec.ErrorMessage != nil {
		s.errMsg = *rec.ErrorMessage
	}
	if s.status == "" || s.status == models.StatusAnalyzing || (s.status == models.StatusReady && (doc == nil || s.analysis == nil)) {
		s.status = models.StatusEmpty
		s.doc = nil
		s.analysis = nil
		s.messages = nil
		s.suggestions = nil
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Generation() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Session) Status() models.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Preferences() models.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// SetPreferences is only allowed while no analysis is running or loaded.
func (s *Session) SetPreferences(p models.Preferences) error {
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != models.StatusEmpty {
		return ErrPreferencesLocked
	}
	s.prefs = p
	s.touch()
	return nil
}

// RejectUpload records a validation error without touching the loaded document.
func (s *Session) RejectUpload(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errMsg = message
	s.touch()
}

// BeginAnalysis replaces the document wholesale and clears everything derived
// from the previous one.
func (s *Session) BeginAnalysis(doc *models.Document) AnalysisTicket {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.status = models.StatusAnalyzing
	s.chatting = false
	s.doc = doc
	s.analysis = nil
	s.messages = nil
	s.suggestions = nil
	s.errMsg = ""
	s.touch()

	return AnalysisTicket{
		Generation:  s.generation,
		Document:    doc,
		Preferences: s.prefs,
	}
}

func (s *Session) CompleteAnalysis(generation int64, result *models.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || s.status != models.StatusAnalyzing {
		return ErrStale
	}
	s.status = models.StatusReady
	s.analysis = result
	s.messages = nil
	s.suggestions = nil
	s.errMsg = ""
	s.touch()
	return nil
}

// FailAnalysis returns the session to the empty state with message as its error.
func (s *Session) FailAnalysis(generation int64, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || s.status != models.StatusAnalyzing {
		return ErrStale
	}
	s.status = models.StatusEmpty
	s.doc = nil
	s.analysis = nil
	s.errMsg = message
	s.touch()
	return nil
}

// BeginChat appends the user's message and marks a turn as in flight.
func (s *Session) BeginChat(question string) (ChatTicket, error) {
	if question == "" {
		return ChatTicket{}, ErrEmptyQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != models.StatusReady || s.doc == nil {
		return ChatTicket{}, ErrNotReady
	}
	if s.chatting {
		return ChatTicket{}, ErrChatInFlight
	}

	history := make([]models.HistoryItem, 0, len(s.messages))
	for _, m := range s.messages {
		history = append(history, models.HistoryItem{Role: m.Role, Content: m.Content})
	}

	s.messages = append(s.messages, models.ChatMessage{
		Role:      models.RoleUser,
		Content:   question,
		Timestamp: s.now(),
	})
	s.chatting = true
	s.touch()

	return ChatTicket{
		Generation: s.generation,
		Document:   s.doc,
		Question:   question,
		History:    history,
	}, nil
}

// CompleteChat appends the model answer and replaces the dynamic suggestions.
func (s *Session) CompleteChat(generation int64, resp *models.ChatResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || !s.chatting {
		return ErrStale
	}
	s.messages = append(s.messages, models.ChatMessage{
		Role:      models.RoleModel,
		Content:   resp.Answer,
		Timestamp: s.now(),
	})
	s.suggestions = cloneStrings(resp.FollowUpQuestions)
	s.chatting = false
	s.touch()
	return nil
}

// FailChat closes the turn with ChatErrorReply; suggestions are left alone.
func (s *Session) FailChat(generation int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || !s.chatting {
		return ErrStale
	}
	s.messages = append(s.messages, models.ChatMessage{
		Role:      models.RoleModel,
		Content:   ChatErrorReply,
		Timestamp: s.now(),
	})
	s.chatting = false
	s.touch()
	return nil
}

// Reset drops the document, analysis, transcript and suggestions in one step.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.status = models.StatusEmpty
	s.chatting = false
	s.doc = nil
	s.analysis = nil
	s.messages = nil
	s.suggestions = nil
	s.errMsg = ""
	s.touch()
}

// Document returns the loaded document, or nil.
func (s *Session) Document() *models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Suggestions returns the latest chat follow-ups, falling back to the questions
// suggested by the analysis.
func (s *Session) Suggestions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suggestionsLocked()
}

func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChatMessage(nil), s.messages...)
}

func (s *Session) View() models.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := models.SessionView{
		ID:          s.id,
		Status:      s.status,
		Chatting:    s.chatting,
		Preferences: s.prefs,
		Analysis:    s.analysis,
		Messages:    append([]models.ChatMessage{}, s.messages...),
		Suggestions: s.suggestionsLocked(),
		Error:       s.errMsg,
		Generation:  s.generation,
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
	}
	if s.doc != nil {
		doc := *s.doc
		view.Document = &doc
	}
	if view.Suggestions == nil {
		view.Suggestions = []string{}
	}
	return view
}

// Record returns the persistable form of the session.
func (s *Session) Record() *models.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordLocked()
}

// Current reports whether work started under generation still applies.
func (s *Session) Current(generation int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && generation == s.generation
}

// Persist hands save a record and transcript taken under one lock. Calls are
// serialized with each other and with Close; a closed session is never saved.
func (s *Session) Persist(save func(rec *models.SessionRecord, messages []models.ChatMessage) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	rec := s.recordLocked()
	messages := append([]models.ChatMessage(nil), s.messages...)
	s.mu.Unlock()

	return save(rec, messages)
}

// Close marks the session deleted, invalidates in-flight work and runs drop
// once no Persist call is in progress.
func (s *Session) Close(drop func() error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.closed = true
	s.generation++
	s.status = models.StatusEmpty
	s.chatting = false
	s.doc = nil
	s.analysis = nil
	s.messages = nil
	s.suggestions = nil
	s.mu.Unlock()

	return drop()
}

func (s *Session) recordLocked() *models.SessionRecord {
	rec := &models.SessionRecord{
		ID:                 s.id,
		Status:             s.status,
		SummaryLength:      s.prefs.Length,
		SummaryStyle:       s.prefs.Style,
		Generation:         s.generation,
		Analysis:           s.analysis,
		DynamicSuggestions: cloneStrings(s.suggestions),
		CreatedAt:          s.createdAt,
		UpdatedAt:          s.updatedAt,
	}
	if s.doc != nil {
		filename, size, pages, key := s.doc.Filename, s.doc.FileSize, s.doc.PageCount, s.doc.S3Key
		rec.Filename = &filename
		rec.FileSize = &size
		rec.PageCount = &pages
		rec.S3Key = &key
	}
	if s.errMsg != "" {
		msg := s.errMsg
		rec.ErrorMessage = &msg
	}
	return rec
}

func (s *Session) suggestionsLocked() []string {
	if s.suggestions != nil {
		return cloneStrings(s.suggestions)
	}
	if s.analysis != nil {
		return cloneStrings(s.analysis.SuggestedQuestions)
	}
	return nil
}

func (s *Session) touch() {
	s.updatedAt = s.now()
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}
