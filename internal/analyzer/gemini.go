package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/BerylCAtieno/docmind-api/internal/models"
	"github.com/BerylCAtieno/docmind-api/internal/utils"

	genai "google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-3-flash-preview"

type geminiAnalyzer struct {
	client *genai.Client
	model  string
	logger *utils.Logger
}

func NewGeminiAnalyzer(ctx context.Context, apiKey, model string, logger *utils.Logger) (Analyzer, error) {
	if apiKey == "" {
		return nil, errors.New("missing GEMINI_API_KEY")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiAnalyzer{client: c, model: model, logger: logger}, nil
}

func (g *geminiAnalyzer) Analyze(ctx context.Context, doc *models.Document, prefs models.Preferences) (*models.AnalysisResult, error) {
	res, err := g.client.Models.GenerateContent(ctx, g.model, analysisContents(doc, prefs), analysisConfig())
	if err != nil {
		return nil, fmt.Errorf("gemini analysis request failed: %w", err)
	}

	text := res.Text()
	result, err := ParseAnalysis(text)
	if err != nil {
		g.logger.FromContext(ctx).Error("Failed to parse Gemini analysis", "error", err, "response_length", len(text))
		return nil, err
	}
	return result, nil
}

func (g *geminiAnalyzer) Chat(ctx context.Context, doc *models.Document, question string, history []models.HistoryItem) (*models.ChatResponse, error) {
	res, err := g.client.Models.GenerateContent(ctx, g.model, chatContents(doc, question, history), chatConfig())
	if err != nil {
		return nil, fmt.Errorf("gemini chat request failed: %w", err)
	}

	text := res.Text()
	resp, err := ParseChat(text)
	if err != nil {
		g.logger.FromContext(ctx).Error("Failed to parse Gemini chat response", "error", err, "response_length", len(text))
		return nil, err
	}
	return resp, nil
}

func pdfPart(doc *models.Document) *genai.Part {
	return &genai.Part{InlineData: &genai.Blob{MIMEType: models.PDFContentType, Data: doc.Data}}
}

func analysisContents(doc *models.Document, prefs models.Preferences) []*genai.Content {
	return []*genai.Content{
		{
			Role: string(models.RoleUser),
			Parts: []*genai.Part{
				pdfPart(doc),
				{Text: AnalysisPrompt(prefs)},
			},
		},
	}
}

func analysisConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema(),
	}
}

// chatContents replays earlier turns as text and attaches the PDF to the new question.
func chatContents(doc *models.Document, question string, history []models.HistoryItem) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, h := range history {
		contents = append(contents, &genai.Content{
			Role:  string(h.Role),
			Parts: []*genai.Part{{Text: h.Content}},
		})
	}
	return append(contents, &genai.Content{
		Role: string(models.RoleUser),
		Parts: []*genai.Part{
			pdfPart(doc),
			{Text: ChatPrompt(question)},
		},
	})
}

func chatConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: chatSystemInstruction}}},
		ResponseMIMEType:  "application/json",
		ResponseSchema:    chatSchema(),
	}
}
