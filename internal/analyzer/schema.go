package analyzer

import (
	"strings"

	genai "google.golang.org/genai"
)

var (
	scoreMin = 0.0
	scoreMax = 100.0
)

func stringList(description string) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Items:       &genai.Schema{Type: genai.TypeString},
		Description: description,
	}
}

func analysisSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary": {
				Type:        genai.TypeString,
				Description: "The requested executive summary of the document based on the user's preferred length and style.",
			},
			"keyPoints": stringList("List of 5-8 most critical points found in the document."),
			"entities": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":         {Type: genai.TypeString},
						"type":         {Type: genai.TypeString},
						"significance": {Type: genai.TypeString},
					},
					Required: []string{"name", "type", "significance"},
				},
			},
			"sentiment": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"score": {
						Type:        genai.TypeNumber,
						Description: "Sentiment score from 0 (very negative) to 100 (very positive).",
						Minimum:     &scoreMin,
						Maximum:     &scoreMax,
					},
					"label":       {Type: genai.TypeString},
					"description": {Type: genai.TypeString},
				},
				Required: []string{"score", "label", "description"},
			},
			"complexity":         {Type: genai.TypeString, Description: "Technical complexity level of the document."},
			"suggestedQuestions": stringList("3 intelligent follow-up questions the user might want to ask."),
		},
		Required: []string{"summary", "keyPoints", "entities", "sentiment", "complexity", "suggestedQuestions"},
	}
}

func chatSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"answer": {
				Type:        genai.TypeString,
				Description: "The direct answer to the user's question based on the PDF content.",
			},
			"followUpQuestions": stringList("3 intelligent, context-aware follow-up questions related specifically to the user's last question and the provided answer."),
		},
		Required: []string{"answer", "followUpQuestions"},
	}
}

// jsonSchema renders a genai schema as standard JSON Schema for providers that
// take response_format.json_schema.
func jsonSchema(s *genai.Schema) map[string]any {
	out := map[string]any{"type": strings.ToLower(string(s.Type))}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if s.Minimum != nil {
		out["minimum"] = *s.Minimum
	}
	if s.Maximum != nil {
		out["maximum"] = *s.Maximum
	}
	if s.Items != nil {
		out["items"] = jsonSchema(s.Items)
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = jsonSchema(p)
		}
		out["properties"] = props
		out["additionalProperties"] = false
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}
