package analyzer

import (
	"fmt"

	"github.com/BerylCAtieno/docmind-api/internal/models"
)

const chatSystemInstruction = "You are a specialized document analysis assistant. Always return your response in JSON format. " +
	"The 'answer' should be in clear Markdown format if it contains lists or tables. " +
	"The 'followUpQuestions' should be a list of 3 strings."

func lengthInstruction(l models.SummaryLength) string {
	if l == models.LengthDetailed {
		return "Provide a comprehensive, detailed executive summary (1-2 paragraphs)."
	}
	return "Keep the summary concise (2-3 sentences)."
}

func styleInstruction(s models.SummaryStyle) string {
	if s == models.StyleBullets {
		return "Format the summary as a structured bulleted list within the summary string."
	}
	return "Format the summary as a cohesive narrative paragraph."
}

// AnalysisPrompt is the text part sent next to the PDF for an analysis.
func AnalysisPrompt(prefs models.Preferences) string {
	prefs = prefs.WithDefaults()
	return fmt.Sprintf(`Analyze this document thoroughly and return a structured JSON report.
For the 'summary' field: %s %s
Focus on objective facts, key themes, and important entities.
Be critical if the content is technical or dense.`, lengthInstruction(prefs.Length), styleInstruction(prefs.Style))
}

// ChatPrompt embeds the user's question verbatim.
func ChatPrompt(question string) string {
	return fmt.Sprintf(`Based on the attached PDF, answer this question: "%s". Then, provide 3 follow-up questions that would help me explore this specific topic deeper.`, question)
}
