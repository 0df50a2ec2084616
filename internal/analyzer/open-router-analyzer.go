package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BerylCAtieno/docmind-api/internal/models"
	"github.com/BerylCAtieno/docmind-api/internal/utils"

	genai "google.golang.org/genai"
)

const DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

type openRouterAnalyzer struct {
	apiKey  string
	model   string
	baseURL string
	logger  *utils.Logger
	client  *http.Client
}

type OpenRouterRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// Message content is either a plain string or a list of ContentPart.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type ContentPart struct {
	Type string    `json:"type"`
	Text string    `json:"text,omitempty"`
	File *FilePart `json:"file,omitempty"`
}

type FilePart struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type ResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

type JSONSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type OpenRouterResponse struct {
	Choices []Choice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

type Choice struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
}

func NewOpenRouterAnalyzer(apiKey, model, baseURL string, timeout time.Duration, logger *utils.Logger) Analyzer {
	if baseURL == "" {
		baseURL = DefaultOpenRouterBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &openRouterAnalyzer{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (a *openRouterAnalyzer) Analyze(ctx context.Context, doc *models.Document, prefs models.Preferences) (*models.AnalysisResult, error) {
	reqBody := OpenRouterRequest{
		Model: a.model,
		Messages: []Message{
			{Role: "user", Content: []ContentPart{filePart(doc), {Type: "text", Text: AnalysisPrompt(prefs)}}},
		},
		ResponseFormat: schemaFormat("document_analysis", analysisSchema()),
	}

	content, err := a.complete(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	result, err := ParseAnalysis(content)
	if err != nil {
		a.logger.FromContext(ctx).Error("Failed to parse LLM response", "content", content)
		return nil, err
	}
	return result, nil
}

func (a *openRouterAnalyzer) Chat(ctx context.Context, doc *models.Document, question string, history []models.HistoryItem) (*models.ChatResponse, error) {
	messages := []Message{{Role: "system", Content: chatSystemInstruction}}
	for _, h := range history {
		role := "user"
		if h.Role == models.RoleModel {
			role = "assistant"
		}
		messages = append(messages, Message{Role: role, Content: h.Content})
	}
	messages = append(messages, Message{
		Role:    "user",
		Content: []ContentPart{filePart(doc), {Type: "text", Text: ChatPrompt(question)}},
	})

	content, err := a.complete(ctx, OpenRouterRequest{
		Model:          a.model,
		Messages:       messages,
		ResponseFormat: schemaFormat("chat_answer", chatSchema()),
	})
	if err != nil {
		return nil, err
	}

	resp, err := ParseChat(content)
	if err != nil {
		a.logger.FromContext(ctx).Error("Failed to parse LLM chat response", "content", content)
		return nil, err
	}
	return resp, nil
}

func (a *openRouterAnalyzer) complete(ctx context.Context, reqBody OpenRouterRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", "https://github.com/BerylCAtieno/docmind-api")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		a.logger.FromContext(ctx).Error("OpenRouter API error", "status", resp.StatusCode, "body", string(body))
		return "", fmt.Errorf("OpenRouter API returned status %d", resp.StatusCode)
	}

	var openRouterResp OpenRouterResponse
	if err := json.Unmarshal(body, &openRouterResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if openRouterResp.Error != nil {
		return "", fmt.Errorf("OpenRouter API error: %s", openRouterResp.Error.Message)
	}

	if len(openRouterResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return openRouterResp.Choices[0].Message.Content, nil
}

func filePart(doc *models.Document) ContentPart {
	return ContentPart{
		Type: "file",
		File: &FilePart{
			Filename: doc.Filename,
			FileData: "data:" + models.PDFContentType + ";base64," + doc.Base64,
		},
	}
}

func schemaFormat(name string, schema *genai.Schema) *ResponseFormat {
	return &ResponseFormat{
		Type:       "json_schema",
		JSONSchema: &JSONSchema{Name: name, Strict: true, Schema: jsonSchema(schema)},
	}
}
