package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BerylCAtieno/docmind-api/internal/config"
	"github.com/BerylCAtieno/docmind-api/internal/db"
	"github.com/BerylCAtieno/docmind-api/internal/handlers"
	"github.com/BerylCAtieno/docmind-api/internal/models"
	"github.com/BerylCAtieno/docmind-api/internal/repository"
	"github.com/BerylCAtieno/docmind-api/internal/services"
	"github.com/BerylCAtieno/docmind-api/internal/session"
	"github.com/BerylCAtieno/docmind-api/internal/storage"
	"github.com/BerylCAtieno/docmind-api/internal/utils"
)

type stubAnalyzer struct {
	mu       sync.Mutex
	analyses int
	chatErr  error
}

func (s *stubAnalyzer) setChatErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatErr = err
}

func (s *stubAnalyzer) analysisCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyses
}

func (s *stubAnalyzer) Analyze(ctx context.Context, doc *models.Document, prefs models.Preferences) (*models.AnalysisResult, error) {
	s.mu.Lock()
	s.analyses++
	s.mu.Unlock()
	return &models.AnalysisResult{
		Summary:            "A contract between two parties.",
		KeyPoints:          []string{"Term is 12 months"},
		Entities:           []models.Entity{},
		Sentiment:          models.Sentiment{Score: 50, Label: "Neutral", Description: "Formal"},
		Complexity:         "Moderate",
		SuggestedQuestions: []string{"What is the term?", "Who are the parties?", "What is the termination clause?"},
	}, nil
}

func (s *stubAnalyzer) Chat(ctx context.Context, doc *models.Document, question string, history []models.HistoryItem) (*models.ChatResponse, error) {
	s.mu.Lock()
	err := s.chatErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &models.ChatResponse{
		Answer:            "Either party may terminate with 30 days written notice.",
		FollowUpQuestions: []string{"Is there a termination fee?"},
	}, nil
}

func newTestServer(t *testing.T, llm *stubAnalyzer) *httptest.Server {
	t.Helper()

	dbFile := filepath.Join(t.TempDir(), "router.db")
	if err := db.RunMigrations(dbFile); err != nil {
		t.Fatalf("RunMigrations returned error: %v", err)
	}
	database, err := db.NewSQLiteDB(dbFile)
	if err != nil {
		t.Fatalf("NewSQLiteDB returned error: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := &config.Config{
		MaxFileSize:        1 << 20,
		LLMTimeout:         5 * time.Second,
		CORSAllowedOrigins: []string{"*"},
	}
	logger := utils.NewDiscardLogger()
	repo := repository.NewRepository(database)
	store := storage.NewMemoryStorage()
	svc := services.NewService(repo, store, llm, cfg, logger)

	checkers := map[string]handlers.HealthChecker{
		"database": handlers.CheckFunc(repo.Ping),
		"storage":  handlers.CheckFunc(store.Ping),
	}

	srv := httptest.NewServer(NewRouter(svc, checkers, cfg, logger))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, *models.SessionView) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, _ := http.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	var view models.SessionView
	json.NewDecoder(resp.Body).Decode(&view)
	return resp, &view
}

func upload(t *testing.T, url, filename, contentType string) (*http.Response, *models.SessionView) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, _ := mw.CreatePart(header)
	part.Write([]byte("%PDF-1.4 sample"))
	mw.Close()

	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	defer resp.Body.Close()

	var view models.SessionView
	json.NewDecoder(resp.Body).Decode(&view)
	return resp, &view
}

func TestSessionLifecycle(t *testing.T) {
	llm := &stubAnalyzer{}
	srv := newTestServer(t, llm)
	base := srv.URL + "/api/v1/sessions"

	resp, created := doJSON(t, http.MethodPost, base, models.Preferences{Length: models.LengthBrief, Style: models.StyleBullets})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}
	sessionURL := base + "/" + created.ID

	resp, view := upload(t, sessionURL+"/document", "notes.txt", "text/plain")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400 for text upload, got %d", resp.StatusCode)
	}
	if llm.analysisCount() != 0 {
		t.Fatal("Expected no analysis for rejected upload")
	}

	resp, view = upload(t, sessionURL+"/document", "contract.pdf", "application/pdf")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for PDF upload, got %d", resp.StatusCode)
	}
	if view.Status != models.StatusReady || len(view.Suggestions) != 3 {
		t.Fatalf("Unexpected view after upload: %+v", view)
	}

	resp, _ = doJSON(t, http.MethodPut, sessionURL+"/preferences", models.DefaultPreferences())
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for locked preferences, got %d", resp.StatusCode)
	}

	resp, view = doJSON(t, http.MethodPost, sessionURL+"/chat", models.ChatRequest{Message: "What is the termination clause?"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for chat, got %d", resp.StatusCode)
	}
	if len(view.Messages) != 2 || !strings.Contains(view.Messages[1].Content, "30 days") {
		t.Errorf("Unexpected transcript %+v", view.Messages)
	}
	if len(view.Suggestions) != 1 || view.Suggestions[0] != "Is there a termination fee?" {
		t.Errorf("Expected follow-ups to replace suggestions, got %v", view.Suggestions)
	}

	llm.setChatErr(errors.New("network down"))
	_, view = doJSON(t, http.MethodPost, sessionURL+"/chat", models.ChatRequest{Message: "Any penalties?"})
	if len(view.Messages) != 4 || view.Messages[3].Content != session.ChatErrorReply {
		t.Errorf("Expected apology as last message, got %+v", view.Messages)
	}

	resp, view = doJSON(t, http.MethodPost, sessionURL+"/reset", nil)
	if resp.StatusCode != http.StatusOK || view.Status != models.StatusEmpty || len(view.Messages) != 0 {
		t.Errorf("Expected empty session after reset, got %d %+v", resp.StatusCode, view)
	}

	resp, _ = doJSON(t, http.MethodDelete, sessionURL, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, sessionURL, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubAnalyzer{})

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	var status handlers.HealthStatus
	json.NewDecoder(resp.Body).Decode(&status)
	if status.Status != "healthy" || len(status.Checks) != 2 {
		t.Errorf("Unexpected health %+v", status)
	}
}
