package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/BerylCAtieno/docmind-api/internal/config"
	"github.com/BerylCAtieno/docmind-api/internal/models"
	"github.com/BerylCAtieno/docmind-api/internal/utils"
)

// Analyzer sends a PDF to a hosted model. Both calls are single attempts; callers
// decide what a failure means for their state.
type Analyzer interface {
	Analyze(ctx context.Context, doc *models.Document, prefs models.Preferences) (*models.AnalysisResult, error)
	Chat(ctx context.Context, doc *models.Document, question string, history []models.HistoryItem) (*models.ChatResponse, error)
}

var (
	ErrMalformedAnalysis = errors.New("analysis response was malformed")
	ErrMalformedChat     = errors.New("chat response was malformed")
)

// New builds the analyzer selected by cfg.LLMProvider.
func New(ctx context.Context, cfg *config.Config, logger *utils.Logger) (Analyzer, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		return NewGeminiAnalyzer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	case config.ProviderOpenRouter:
		return NewOpenRouterAnalyzer(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterBaseURL, cfg.LLMTimeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

type rawEntity struct {
	Name         *string `json:"name"`
	Type         *string `json:"type"`
	Significance *string `json:"significance"`
}

type rawSentiment struct {
	Score       *float64 `json:"score"`
	Label       *string  `json:"label"`
	Description *string  `json:"description"`
}

type rawAnalysis struct {
	Summary            *string       `json:"summary"`
	KeyPoints          *[]string     `json:"keyPoints"`
	Entities           *[]rawEntity  `json:"entities"`
	Sentiment          *rawSentiment `json:"sentiment"`
	Complexity         *string       `json:"complexity"`
	SuggestedQuestions *[]string     `json:"suggestedQuestions"`
}

type rawChat struct {
	Answer            *string   `json:"answer"`
	FollowUpQuestions *[]string `json:"followUpQuestions"`
}

// ParseAnalysis decodes model output into an AnalysisResult, requiring every
// field of the response schema.
func ParseAnalysis(text string) (*models.AnalysisResult, error) {
	var raw rawAnalysis
	if err := decodeJSON(text, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAnalysis, err)
	}

	var missing []string
	if raw.Summary == nil {
		missing = append(missing, "summary")
	}
	if raw.KeyPoints == nil {
		missing = append(missing, "keyPoints")
	}
	if raw.Entities == nil {
		missing = append(missing, "entities")
	}
	if raw.Sentiment == nil || raw.Sentiment.Score == nil || raw.Sentiment.Label == nil || raw.Sentiment.Description == nil {
		missing = append(missing, "sentiment")
	}
	if raw.Complexity == nil {
		missing = append(missing, "complexity")
	}
	if raw.SuggestedQuestions == nil {
		missing = append(missing, "suggestedQuestions")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedAnalysis, strings.Join(missing, ", "))
	}

	entities := make([]models.Entity, 0, len(*raw.Entities))
	for i, e := range *raw.Entities {
		if e.Name == nil || e.Type == nil || e.Significance == nil {
			return nil, fmt.Errorf("%w: entity %d is incomplete", ErrMalformedAnalysis, i)
		}
		entities = append(entities, models.Entity{Name: *e.Name, Type: *e.Type, Significance: *e.Significance})
	}

	return &models.AnalysisResult{
		Summary:   *raw.Summary,
		KeyPoints: *raw.KeyPoints,
		Entities:  entities,
		Sentiment: models.Sentiment{
			Score:       clampScore(*raw.Sentiment.Score),
			Label:       *raw.Sentiment.Label,
			Description: *raw.Sentiment.Description,
		},
		Complexity:         *raw.Complexity,
		SuggestedQuestions: *raw.SuggestedQuestions,
	}, nil
}

// ParseChat decodes model output into a ChatResponse.
func ParseChat(text string) (*models.ChatResponse, error) {
	var raw rawChat
	if err := decodeJSON(text, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedChat, err)
	}
	if raw.Answer == nil {
		return nil, fmt.Errorf("%w: missing answer", ErrMalformedChat)
	}
	if raw.FollowUpQuestions == nil {
		return nil, fmt.Errorf("%w: missing followUpQuestions", ErrMalformedChat)
	}
	return &models.ChatResponse{
		Answer:            *raw.Answer,
		FollowUpQuestions: *raw.FollowUpQuestions,
	}, nil
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// decodeJSON tolerates code fences and leading chatter around the JSON object.
func decodeJSON(text string, v any) error {
	text = extractJSON(strings.TrimSpace(text))
	if text == "" {
		return errors.New("empty response")
	}
	err := json.Unmarshal([]byte(text), v)
	if err == nil {
		return nil
	}
	if s := findFirstJSON(text); s != "" {
		if err2 := json.Unmarshal([]byte(s), v); err2 == nil {
			return nil
		}
	}
	return err
}

// extractJSON attempts to extract JSON from markdown code blocks
func extractJSON(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	if i := strings.Index(content, "\n"); i != -1 {
		content = content[i+1:]
	} else {
		content = strings.TrimPrefix(content, "```")
	}
	content = strings.TrimSpace(content)
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// findFirstJSON returns the first balanced {...} span, ignoring braces in strings.
func findFirstJSON(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if start != -1 {
				inString = true
			}
		case '{':
			if start == -1 {
				start = i
			}
			depth++
		case '}':
			if start != -1 {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
