package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/BerylCAtieno/docmind-api/internal/analyzer"
	"github.com/BerylCAtieno/docmind-api/internal/config"
	"github.com/BerylCAtieno/docmind-api/internal/extractor"
	"github.com/BerylCAtieno/docmind-api/internal/models"
	"github.com/BerylCAtieno/docmind-api/internal/services"
	"github.com/BerylCAtieno/docmind-api/internal/session"
	"github.com/BerylCAtieno/docmind-api/internal/utils"
)

func newLogger(verbose bool) *utils.Logger {
	if verbose {
		return utils.NewLoggerTo(os.Stderr, "debug")
	}
	return utils.NewDiscardLogger()
}

func newAnalyzer(ctx context.Context, logger *utils.Logger) (analyzer.Analyzer, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	llm, err := analyzer.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return llm, cfg, nil
}

// loadDocument reads a local PDF, rejecting anything without a .pdf extension.
func loadDocument(path string, logger *utils.Logger) (*models.Document, error) {
	if !services.IsPDFContentType(mime.TypeByExtension(filepath.Ext(path))) {
		return nil, errors.New(services.MsgInvalidFileType)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", services.MsgReadFailed, err)
	}
	if len(data) == 0 {
		return nil, errors.New(services.MsgReadFailed)
	}

	doc := models.NewDocument(filepath.Base(path), data)
	if info, err := extractor.InspectPDF(data); err != nil {
		logger.Warn("Could not inspect PDF", "error", err, "path", path)
	} else {
		doc.PageCount = info.Pages
		if !info.HasText {
			logger.Info("PDF has no text layer; the model will read the page images", "path", path)
		}
	}
	return doc, nil
}

// analyzeInto runs the analysis for doc on sess and settles the session.
func analyzeInto(ctx context.Context, sess *session.Session, llm analyzer.Analyzer, doc *models.Document, cfg *config.Config) error {
	ticket := sess.BeginAnalysis(doc)

	ctx, cancel := context.WithTimeout(ctx, cfg.LLMTimeout)
	defer cancel()

	result, err := llm.Analyze(ctx, doc, ticket.Preferences)
	if err != nil {
		msg := services.MsgAnalysisFailed
		if errors.Is(err, analyzer.ErrMalformedAnalysis) {
			msg = services.MsgAnalysisMalformed
		}
		sess.FailAnalysis(ticket.Generation, msg)
		return fmt.Errorf("%s: %w", msg, err)
	}

	return sess.CompleteAnalysis(ticket.Generation, result)
}
