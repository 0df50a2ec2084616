package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/BerylCAtieno/docmind-api/internal/models"
	"github.com/BerylCAtieno/docmind-api/internal/session"
	"github.com/BerylCAtieno/docmind-api/internal/utils"
	"github.com/spf13/cobra"
)

func analyzeCmd(verbose *bool) *cobra.Command {
	var length string
	var style string

	cmd := &cobra.Command{
		Use:   "analyze <pdf>",
		Short: "Print the structured analysis of a PDF as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(*verbose)
			ctx := cmd.Context()

			sess := session.New(utils.GenerateID())
			prefs := models.Preferences{
				Length: models.SummaryLength(length),
				Style:  models.SummaryStyle(style),
			}
			if err := sess.SetPreferences(prefs); err != nil {
				return err
			}

			doc, err := loadDocument(args[0], logger)
			if err != nil {
				return err
			}

			llm, cfg, err := newAnalyzer(ctx, logger)
			if err != nil {
				return err
			}

			if err := analyzeInto(ctx, sess, llm, doc, cfg); err != nil {
				return err
			}

			return writeAnalysis(cmd.OutOrStdout(), sess.View().Analysis)
		},
	}
	cmd.Flags().StringVar(&length, "length", string(models.LengthBrief), "summary length: brief|detailed")
	cmd.Flags().StringVar(&style, "style", string(models.StyleParagraph), "summary style: paragraph|bullets")
	return cmd
}

func writeAnalysis(out io.Writer, analysis *models.AnalysisResult) error {
	if analysis == nil {
		return errors.New("no analysis to print")
	}
	b, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}
