package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BerylCAtieno/docmind-api/internal/models"
	"github.com/BerylCAtieno/docmind-api/internal/utils"
)

func openRouterServer(t *testing.T, status int, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Unexpected Authorization header %q", got)
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenRouterAnalyze(t *testing.T) {
	var seen map[string]any
	srv := openRouterServer(t, http.StatusOK, validAnalysis, &seen)
	a := NewOpenRouterAnalyzer("test-key", "google/gemini-flash", srv.URL, time.Second, utils.NewDiscardLogger())

	doc := models.NewDocument("report.pdf", []byte("%PDF-1.4 test"))
	result, err := a.Analyze(context.Background(), doc, models.Preferences{Length: models.LengthBrief, Style: models.StyleBullets})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if result.Complexity != "Moderate" {
		t.Errorf("Unexpected complexity %q", result.Complexity)
	}

	messages := seen["messages"].([]any)
	parts := messages[0].(map[string]any)["content"].([]any)
	file := parts[0].(map[string]any)["file"].(map[string]any)
	if !strings.HasPrefix(file["file_data"].(string), "data:application/pdf;base64,") {
		t.Errorf("Expected base64 PDF data URL, got %v", file["file_data"])
	}
	text := parts[1].(map[string]any)["text"].(string)
	if !strings.Contains(text, "structured bulleted list") {
		t.Errorf("Expected bullet instruction in prompt, got %q", text)
	}
	format := seen["response_format"].(map[string]any)
	if format["type"] != "json_schema" {
		t.Errorf("Expected json_schema response format, got %v", format["type"])
	}
}

func TestOpenRouterChatHistory(t *testing.T) {
	var seen map[string]any
	srv := openRouterServer(t, http.StatusOK, `{"answer":"yes","followUpQuestions":["a","b","c"]}`, &seen)
	a := NewOpenRouterAnalyzer("test-key", "m", srv.URL, time.Second, utils.NewDiscardLogger())

	history := []models.HistoryItem{
		{Role: models.RoleUser, Content: "first"},
		{Role: models.RoleModel, Content: "answer"},
	}
	resp, err := a.Chat(context.Background(), models.NewDocument("a.pdf", []byte("x")), "second", history)
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if resp.Answer != "yes" {
		t.Errorf("Unexpected answer %q", resp.Answer)
	}

	messages := seen["messages"].([]any)
	if len(messages) != 4 {
		t.Fatalf("Expected system + 2 history + question, got %d messages", len(messages))
	}
	roles := []string{"system", "user", "assistant", "user"}
	for i, want := range roles {
		if got := messages[i].(map[string]any)["role"]; got != want {
			t.Errorf("message %d: expected role %s, got %v", i, want, got)
		}
	}
}

func TestOpenRouterErrors(t *testing.T) {
	doc := models.NewDocument("a.pdf", []byte("x"))

	srv := openRouterServer(t, http.StatusTooManyRequests, "", nil)
	a := NewOpenRouterAnalyzer("test-key", "m", srv.URL, time.Second, utils.NewDiscardLogger())
	if _, err := a.Analyze(context.Background(), doc, models.DefaultPreferences()); err == nil || errors.Is(err, ErrMalformedAnalysis) {
		t.Errorf("Expected transport error, got %v", err)
	}

	srv = openRouterServer(t, http.StatusOK, "not json at all", nil)
	a = NewOpenRouterAnalyzer("test-key", "m", srv.URL, time.Second, utils.NewDiscardLogger())
	if _, err := a.Analyze(context.Background(), doc, models.DefaultPreferences()); !errors.Is(err, ErrMalformedAnalysis) {
		t.Errorf("Expected ErrMalformedAnalysis, got %v", err)
	}
	if _, err := a.Chat(context.Background(), doc, "q", nil); !errors.Is(err, ErrMalformedChat) {
		t.Errorf("Expected ErrMalformedChat, got %v", err)
	}
}
