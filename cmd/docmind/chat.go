package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/BerylCAtieno/docmind-api/internal/analyzer"
	"github.com/BerylCAtieno/docmind-api/internal/config"
	"github.com/BerylCAtieno/docmind-api/internal/models"
	"github.com/BerylCAtieno/docmind-api/internal/session"
	"github.com/BerylCAtieno/docmind-api/internal/utils"
	"github.com/spf13/cobra"
)

func chatCmd(verbose *bool) *cobra.Command {
	var length string
	var style string

	cmd := &cobra.Command{
		Use:   "chat <pdf>",
		Short: "Analyze a PDF, then answer questions about it read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(*verbose)
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			sess := session.New(utils.GenerateID())
			if err := sess.SetPreferences(models.Preferences{
				Length: models.SummaryLength(length),
				Style:  models.SummaryStyle(style),
			}); err != nil {
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

			fmt.Fprintf(out, "Analyzing %s...\n", doc.Filename)
			if err := analyzeInto(ctx, sess, llm, doc, cfg); err != nil {
				return err
			}

			view := sess.View()
			fmt.Fprintf(out, "\n%s\n", view.Analysis.Summary)
			printSuggestions(out, sess.Suggestions())

			return chatLoop(ctx, cmd.InOrStdin(), out, sess, llm, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&length, "length", string(models.LengthBrief), "summary length: brief|detailed")
	cmd.Flags().StringVar(&style, "style", string(models.StyleParagraph), "summary style: paragraph|bullets")
	return cmd
}

// chatLoop answers one question per input line until EOF, "exit" or "quit".
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, sess *session.Session, llm analyzer.Analyzer, cfg *config.Config, logger *utils.Logger) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		ticket, err := sess.BeginChat(question)
		if err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, cfg.LLMTimeout)
		resp, err := llm.Chat(callCtx, ticket.Document, ticket.Question, ticket.History)
		cancel()

		if err != nil {
			logger.Error("Chat request failed", "error", err)
			err = sess.FailChat(ticket.Generation)
		} else {
			err = sess.CompleteChat(ticket.Generation, resp)
		}
		if err != nil {
			return err
		}

		messages := sess.Messages()
		fmt.Fprintf(out, "\n%s\n", messages[len(messages)-1].Content)
		printSuggestions(out, sess.Suggestions())
	}
}

func printSuggestions(out io.Writer, suggestions []string) {
	if len(suggestions) == 0 {
		return
	}
	fmt.Fprintln(out, "\nYou could ask:")
	for _, s := range suggestions {
		fmt.Fprintf(out, "  - %s\n", s)
	}
}
