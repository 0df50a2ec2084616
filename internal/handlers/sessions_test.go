package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/BerylCAtieno/docmind-api/internal/models"
	"github.com/BerylCAtieno/docmind-api/internal/services"
	"github.com/BerylCAtieno/docmind-api/internal/utils"
	"github.com/gorilla/mux"
)

type fakeService struct {
	uploads  []*models.UploadRequest
	recorded []string
	messages []string
	prefs    *models.Preferences
	err      error
}

func (f *fakeService) CreateSession(ctx context.Context, prefs *models.Preferences) (*models.SessionView, error) {
	f.prefs = prefs
	return &models.SessionView{ID: "s1", Status: models.StatusEmpty}, f.err
}

func (f *fakeService) GetSession(ctx context.Context, id string) (*models.SessionView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.SessionView{ID: id, Status: models.StatusEmpty}, nil
}

func (f *fakeService) SetPreferences(ctx context.Context, id string, prefs models.Preferences) (*models.SessionView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.SessionView{ID: id, Preferences: prefs}, nil
}

func (f *fakeService) UploadDocument(ctx context.Context, id string, req *models.UploadRequest) (*models.SessionView, error) {
	f.uploads = append(f.uploads, req)
	if f.err != nil {
		return nil, f.err
	}
	return &models.SessionView{ID: id, Status: models.StatusReady}, nil
}

func (f *fakeService) RecordUploadError(ctx context.Context, id, message string) error {
	f.recorded = append(f.recorded, message)
	return nil
}

func (f *fakeService) SendMessage(ctx context.Context, id, message string) (*models.SessionView, error) {
	f.messages = append(f.messages, message)
	if f.err != nil {
		return nil, f.err
	}
	return &models.SessionView{ID: id, Status: models.StatusReady}, nil
}

func (f *fakeService) ResetSession(ctx context.Context, id string) (*models.SessionView, error) {
	return &models.SessionView{ID: id, Status: models.StatusEmpty}, f.err
}

func (f *fakeService) DeleteSession(ctx context.Context, id string) error {
	return f.err
}

var _ services.SessionService = (*fakeService)(nil)

func newTestHandler(svc services.SessionService, maxFileSize int64) http.Handler {
	h := NewSessionHandler(svc, maxFileSize, utils.NewDiscardLogger())

	r := mux.NewRouter()
	r.HandleFunc("/sessions", h.CreateSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", h.GetSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", h.DeleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{id}/preferences", h.SetPreferences).Methods(http.MethodPut)
	r.HandleFunc("/sessions/{id}/document", h.UploadDocument).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/chat", h.SendMessage).Methods(http.MethodPost)
	return r
}

func multipartBody(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart returned error: %v", err)
	}
	part.Write(data)
	mw.Close()

	return &buf, mw.FormDataContentType()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	return body["error"]
}

func TestUploadDocument(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		data        []byte
		wantStatus  int
		wantUpload  bool
		wantError   string
	}{
		{"pdf header", "report.pdf", "application/pdf", []byte("%PDF-1.4"), http.StatusOK, true, ""},
		{"octet stream with pdf extension", "report.pdf", "application/octet-stream", []byte("%PDF-1.4"), http.StatusOK, true, ""},
		{"no header with pdf extension", "report.pdf", "", []byte("%PDF-1.4"), http.StatusOK, true, ""},
		{"text file", "notes.txt", "text/plain", []byte("hello"), http.StatusBadRequest, false, services.MsgInvalidFileType},
		{"header wins over extension", "report.pdf", "image/png", []byte("png"), http.StatusBadRequest, false, services.MsgInvalidFileType},
		{"too large", "big.pdf", "application/pdf", bytes.Repeat([]byte("a"), 2048), http.StatusBadRequest, false, "File size exceeds 1KB limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			handler := newTestHandler(svc, 1024)

			body, ct := multipartBody(t, tt.filename, tt.contentType, tt.data)
			req := httptest.NewRequest(http.MethodPost, "/sessions/s1/document", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if got := len(svc.uploads) == 1; got != tt.wantUpload {
				t.Errorf("Expected upload forwarded=%v, got %d uploads", tt.wantUpload, len(svc.uploads))
			}
			if tt.wantError != "" {
				if msg := decodeError(t, rec); msg != tt.wantError {
					t.Errorf("Expected error %q, got %q", tt.wantError, msg)
				}
				if len(svc.recorded) != 1 || svc.recorded[0] != tt.wantError {
					t.Errorf("Expected error recorded on session, got %v", svc.recorded)
				}
			}
			if tt.wantUpload && svc.uploads[0].ContentType == "" {
				t.Error("Expected a determined content type")
			}
		})
	}
}

func TestUploadDocumentWithoutFile(t *testing.T) {
	svc := &fakeService{}
	handler := newTestHandler(svc, 1024)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("other", "value")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/sessions/s1/document", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
	if len(svc.uploads) != 0 {
		t.Error("Expected no upload to be forwarded")
	}
}

func TestCreateSession(t *testing.T) {
	svc := &fakeService{}
	handler := newTestHandler(svc, 1024)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rec.Code)
	}
	if svc.prefs != nil {
		t.Errorf("Expected no preferences for empty body, got %+v", svc.prefs)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions",
		strings.NewReader(`{"length":"detailed","style":"bullets"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rec.Code)
	}
	if svc.prefs == nil || svc.prefs.Length != models.LengthDetailed || svc.prefs.Style != models.StyleBullets {
		t.Errorf("Unexpected preferences %+v", svc.prefs)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{bad`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		msg  string
	}{
		{"not found", utils.NewNotFoundError("Session not found"), http.StatusNotFound, "Session not found"},
		{"conflict", utils.NewConflictError("A question is already being answered"), http.StatusConflict, "A question is already being answered"},
		{"unknown", context.DeadlineExceeded, http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(&fakeService{err: tt.err}, 1024)

			req := httptest.NewRequest(http.MethodPost, "/sessions/s1/chat", strings.NewReader(`{"message":"hi"}`))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
			if msg := decodeError(t, rec); msg != tt.msg {
				t.Errorf("Expected message %q, got %q", tt.msg, msg)
			}
		})
	}
}

func TestSendMessageRejectsBadBody(t *testing.T) {
	svc := &fakeService{}
	handler := newTestHandler(svc, 1024)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions/s1/chat", strings.NewReader("not json")))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
	if len(svc.messages) != 0 {
		t.Error("Expected service not to be called")
	}
}

func TestDetermineContentType(t *testing.T) {
	tests := []struct {
		filename, header, want string
	}{
		{"a.pdf", "application/pdf", "application/pdf"},
		{"a.pdf", "", "application/pdf"},
		{"a.PDF", "application/octet-stream", "application/pdf"},
		{"a.pdf", "text/plain", "text/plain"},
		{"noext", "", ""},
		{"noext", "application/octet-stream", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := determineContentType(tt.filename, tt.header); got != tt.want {
			t.Errorf("determineContentType(%q, %q) = %q, want %q", tt.filename, tt.header, got, tt.want)
		}
	}
}

func TestHealthHandler(t *testing.T) {
	checkers := map[string]HealthChecker{
		"database": CheckFunc(func(context.Context) error { return nil }),
	}
	rec := httptest.NewRecorder()
	HealthHandler(checkers, utils.NewDiscardLogger())(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	checkers["storage"] = CheckFunc(func(context.Context) error { return context.DeadlineExceeded })
	rec = httptest.NewRecorder()
	HealthHandler(checkers, utils.NewDiscardLogger())(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}

	var status HealthStatus
	json.NewDecoder(rec.Body).Decode(&status)
	if status.Checks["storage"].Status != "unhealthy" || status.Checks["database"].Status != "healthy" {
		t.Errorf("Unexpected checks %+v", status.Checks)
	}
}
