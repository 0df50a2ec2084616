package services

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BerylCAtieno/docmind-api/internal/analyzer"
	"github.com/BerylCAtieno/docmind-api/internal/config"
	"github.com/BerylCAtieno/docmind-api/internal/extractor"
	"github.com/BerylCAtieno/docmind-api/internal/models"
	"github.com/BerylCAtieno/docmind-api/internal/repository"
	"github.com/BerylCAtieno/docmind-api/internal/session"
	"github.com/BerylCAtieno/docmind-api/internal/storage"
	"github.com/BerylCAtieno/docmind-api/internal/utils"
)

// Messages recorded on the session and returned to clients.
const (
	MsgInvalidFileType   = "Please upload a valid PDF file."
	MsgReadFailed        = "Failed to read file."
	MsgProcessingFailed  = "File processing error."
	MsgAnalysisMalformed = "Analysis failed. The AI response was malformed."
	MsgAnalysisFailed    = "Something went wrong during analysis."
	MsgDocumentReplaced  = "The document was replaced while it was being analyzed."
)

type SessionService interface {
	CreateSession(ctx context.Context, prefs *models.Preferences) (*models.SessionView, error)
	GetSession(ctx context.Context, id string) (*models.SessionView, error)
	SetPreferences(ctx context.Context, id string, prefs models.Preferences) (*models.SessionView, error)
	UploadDocument(ctx context.Context, id string, req *models.UploadRequest) (*models.SessionView, error)
	RecordUploadError(ctx context.Context, id, message string) error
	SendMessage(ctx context.Context, id, message string) (*models.SessionView, error)
	ResetSession(ctx context.Context, id string) (*models.SessionView, error)
	DeleteSession(ctx context.Context, id string) error
}

type sessionService struct {
	repo     repository.Repository
	storage  storage.Storage
	analyzer analyzer.Analyzer
	logger   *utils.Logger
	timeout  time.Duration

	mu       sync.Mutex
	sessions map[string]*session.Session
	deleted  map[string]struct{}
}

func NewService(repo repository.Repository, store storage.Storage, llm analyzer.Analyzer, cfg *config.Config, logger *utils.Logger) SessionService {
	timeout := cfg.LLMTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &sessionService{
		repo:     repo,
		storage:  store,
		analyzer: llm,
		logger:   logger,
		timeout:  timeout,
		sessions: make(map[string]*session.Session),
		deleted:  make(map[string]struct{}),
	}
}

func (s *sessionService) CreateSession(ctx context.Context, prefs *models.Preferences) (*models.SessionView, error) {
	sess := session.New(utils.GenerateID())
	if prefs != nil {
		if err := sess.SetPreferences(*prefs); err != nil {
			return nil, utils.NewBadRequestError(err.Error())
		}
	}

	if err := s.persist(ctx, sess); err != nil {
		s.logger.FromContext(ctx).Error("Failed to save session", "error", err, "session_id", sess.ID())
		return nil, utils.NewInternalError("Failed to create session")
	}

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()

	s.logger.FromContext(ctx).Info("Session created", "session_id", sess.ID())
	return viewOf(sess), nil
}

func (s *sessionService) GetSession(ctx context.Context, id string) (*models.SessionView, error) {
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return viewOf(sess), nil
}

func (s *sessionService) SetPreferences(ctx context.Context, id string, prefs models.Preferences) (*models.SessionView, error) {
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := sess.SetPreferences(prefs); err != nil {
		if errors.Is(err, session.ErrPreferencesLocked) {
			return nil, utils.NewConflictError("Preferences can only be changed before analysis starts")
		}
		return nil, utils.NewBadRequestError(err.Error())
	}

	s.persistOrWarn(ctx, sess)
	return viewOf(sess), nil
}

func (s *sessionService) RecordUploadError(ctx context.Context, id, message string) error {
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	sess.RejectUpload(message)
	s.persistOrWarn(ctx, sess)
	return nil
}

// UploadDocument validates the file, replaces the session's document and runs the
// analysis. The model call is detached from the request so an abandoned request
// still settles the session.
func (s *sessionService) UploadDocument(ctx context.Context, id string, req *models.UploadRequest) (*models.SessionView, error) {
	log := s.logger.FromContext(ctx)

	sess, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	if !IsPDFContentType(req.ContentType) {
		log.Warn("Unsupported content type", "content_type", req.ContentType, "filename", req.Filename, "session_id", id)
		sess.RejectUpload(MsgInvalidFileType)
		s.persistOrWarn(ctx, sess)
		return nil, utils.NewBadRequestError(MsgInvalidFileType)
	}

	if len(req.File) == 0 {
		sess.RejectUpload(MsgReadFailed)
		s.persistOrWarn(ctx, sess)
		return nil, utils.NewBadRequestError(MsgReadFailed)
	}

	doc := models.NewDocument(req.Filename, req.File)
	doc.S3Key = fmt.Sprintf("documents/%s/%s/%s", id, utils.GenerateID(), filepath.Base(req.Filename))
	if info, err := extractor.InspectPDF(req.File); err != nil {
		log.Warn("Could not inspect PDF", "error", err, "filename", req.Filename)
	} else {
		doc.PageCount = info.Pages
	}

	previous := sess.Document()
	ticket := sess.BeginAnalysis(doc)
	s.removeObject(ctx, previous)

	if err := s.storage.Upload(ctx, doc.S3Key, doc.Data, doc.ContentType); err != nil {
		log.Error("Failed to upload to storage", "error", err, "s3_key", doc.S3Key)
		if sess.FailAnalysis(ticket.Generation, MsgProcessingFailed) == nil {
			s.persistOrWarn(ctx, sess)
		}
		return nil, utils.NewInternalError(MsgProcessingFailed)
	}

	// A reset, delete or newer upload may have landed while the bytes were in flight.
	if !sess.Current(ticket.Generation) {
		log.Info("Discarding upload for superseded document", "session_id", id, "generation", ticket.Generation)
		s.removeObject(ctx, doc)
		return nil, utils.NewConflictError(MsgDocumentReplaced)
	}
	s.persistOrWarn(ctx, sess)

	log.Info("Starting document analysis",
		"session_id", id,
		"filename", doc.Filename,
		"file_size", doc.FileSize,
		"pages", doc.PageCount,
		"length", ticket.Preferences.Length,
		"style", ticket.Preferences.Style)

	modelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	result, err := s.analyzer.Analyze(modelCtx, doc, ticket.Preferences)
	if err != nil {
		msg := MsgAnalysisFailed
		if errors.Is(err, analyzer.ErrMalformedAnalysis) {
			msg = MsgAnalysisMalformed
		}
		log.Error("Failed to analyze document", "error", err, "session_id", id)

		if ferr := sess.FailAnalysis(ticket.Generation, msg); ferr != nil {
			log.Info("Discarding failure of superseded analysis", "session_id", id, "generation", ticket.Generation)
			s.removeObject(ctx, doc)
			return nil, utils.NewConflictError(MsgDocumentReplaced)
		}
		s.removeObject(ctx, doc)
		s.persistOrWarn(ctx, sess)
		return nil, utils.NewBadGatewayError(msg, err)
	}

	if err := sess.CompleteAnalysis(ticket.Generation, result); err != nil {
		log.Info("Discarding superseded analysis", "session_id", id, "generation", ticket.Generation)
		s.removeObject(ctx, doc)
		return nil, utils.NewConflictError(MsgDocumentReplaced)
	}
	s.persistOrWarn(ctx, sess)

	log.Info("Document analyzed successfully",
		"session_id", id,
		"key_points", len(result.KeyPoints),
		"entities", len(result.Entities),
		"summary_length", len(result.Summary))

	return viewOf(sess), nil
}

// SendMessage runs one chat turn. Model failures are absorbed into the
// transcript, so the turn always closes with a model message.
func (s *sessionService) SendMessage(ctx context.Context, id, message string) (*models.SessionView, error) {
	log := s.logger.FromContext(ctx)

	sess, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	ticket, err := sess.BeginChat(strings.TrimSpace(message))
	switch {
	case errors.Is(err, session.ErrEmptyQuestion):
		return nil, utils.NewBadRequestError("Message is required")
	case errors.Is(err, session.ErrNotReady):
		return nil, utils.NewConflictError("No analyzed document in this session")
	case errors.Is(err, session.ErrChatInFlight):
		return nil, utils.NewConflictError("A question is already being answered")
	case err != nil:
		return nil, utils.NewInternalError("Failed to start chat")
	}
	s.persistOrWarn(ctx, sess)

	modelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	resp, err := s.analyzer.Chat(modelCtx, ticket.Document, ticket.Question, ticket.History)
	if err != nil {
		log.Error("Chat request failed", "error", err, "session_id", id)
		err = sess.FailChat(ticket.Generation)
	} else {
		err = sess.CompleteChat(ticket.Generation, resp)
	}
	if err != nil {
		log.Info("Discarding chat answer for superseded document", "session_id", id, "generation", ticket.Generation)
		return viewOf(sess), nil
	}

	s.persistOrWarn(ctx, sess)
	return viewOf(sess), nil
}

func (s *sessionService) ResetSession(ctx context.Context, id string) (*models.SessionView, error) {
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := sess.Document()
	sess.Reset()
	s.removeObject(ctx, previous)
	s.persistOrWarn(ctx, sess)

	s.logger.FromContext(ctx).Info("Session reset", "session_id", id)
	return viewOf(sess), nil
}

func (s *sessionService) DeleteSession(ctx context.Context, id string) error {
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.deleted[id] = struct{}{}
	s.mu.Unlock()

	doc := sess.Document()
	err = sess.Close(func() error {
		return s.repo.DeleteSession(context.WithoutCancel(ctx), id)
	})
	s.removeObject(ctx, doc)

	if err != nil {
		s.logger.FromContext(ctx).Error("Failed to delete session", "error", err, "session_id", id)
		return utils.NewInternalError("Failed to delete session")
	}
	return nil
}

// lookup returns the live session, restoring it from the repository on a miss.
// The restore runs without the registry lock; the first restore to finish wins.
func (s *sessionService) lookup(ctx context.Context, id string) (*session.Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	_, gone := s.deleted[id]
	s.mu.Unlock()

	if ok {
		return sess, nil
	}
	if gone {
		return nil, utils.NewNotFoundError("Session not found")
	}

	restored, err := s.restore(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, gone := s.deleted[id]; gone {
		return nil, utils.NewNotFoundError("Session not found")
	}
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	s.sessions[id] = restored
	return restored, nil
}

func (s *sessionService) restore(ctx context.Context, id string) (*session.Session, error) {
	rec, err := s.repo.GetSession(ctx, id)
	if err != nil {
		s.logger.FromContext(ctx).Error("Failed to get session", "error", err, "session_id", id)
		return nil, utils.NewInternalError("Failed to retrieve session")
	}
	if rec == nil {
		return nil, utils.NewNotFoundError("Session not found")
	}

	doc := s.restoreDocument(ctx, rec)

	var messages []models.ChatMessage
	if doc != nil {
		messages, err = s.repo.ListMessages(ctx, id)
		if err != nil {
			s.logger.FromContext(ctx).Error("Failed to load transcript", "error", err, "session_id", id)
			return nil, utils.NewInternalError("Failed to retrieve session")
		}
	}

	return session.Restore(rec, doc, messages), nil
}

func (s *sessionService) restoreDocument(ctx context.Context, rec *models.SessionRecord) *models.Document {
	if rec.Status != models.StatusReady || rec.S3Key == nil || rec.Filename == nil {
		return nil
	}

	data, err := s.storage.Download(ctx, *rec.S3Key)
	if err != nil {
		s.logger.FromContext(ctx).Warn("Stored document unavailable, session restored empty",
			"error", err, "session_id", rec.ID, "s3_key", *rec.S3Key)
		return nil
	}

	doc := models.NewDocument(*rec.Filename, data)
	doc.S3Key = *rec.S3Key
	if rec.PageCount != nil {
		doc.PageCount = *rec.PageCount
	}
	return doc
}

func (s *sessionService) persist(ctx context.Context, sess *session.Session) error {
	return sess.Persist(func(rec *models.SessionRecord, messages []models.ChatMessage) error {
		if err := s.repo.SaveSession(ctx, rec); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		if err := s.repo.ReplaceMessages(ctx, rec.ID, messages); err != nil {
			return fmt.Errorf("save transcript: %w", err)
		}
		return nil
	})
}

// persistOrWarn keeps serving from memory when the database write fails.
// Deleted sessions are skipped.
func (s *sessionService) persistOrWarn(ctx context.Context, sess *session.Session) {
	err := s.persist(context.WithoutCancel(ctx), sess)
	if err != nil && !errors.Is(err, session.ErrClosed) {
		s.logger.FromContext(ctx).Warn("Failed to persist session", "error", err, "session_id", sess.ID())
	}
}

func (s *sessionService) removeObject(ctx context.Context, doc *models.Document) {
	if doc == nil || doc.S3Key == "" {
		return
	}
	if err := s.storage.Delete(context.WithoutCancel(ctx), doc.S3Key); err != nil {
		s.logger.FromContext(ctx).Warn("Failed to delete stored document", "error", err, "s3_key", doc.S3Key)
	}
}

// IsPDFContentType reports whether contentType is exactly application/pdf,
// ignoring parameters.
func IsPDFContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == models.PDFContentType
}

func viewOf(sess *session.Session) *models.SessionView {
	view := sess.View()
	return &view
}
