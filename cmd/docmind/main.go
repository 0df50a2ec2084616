package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var verbose bool

	root := &cobra.Command{
		Use:           "docmind",
		Short:         "Analyze a PDF with a language model and chat about it",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "write JSON logs to stderr")

	root.AddCommand(analyzeCmd(&verbose))
	root.AddCommand(chatCmd(&verbose))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
