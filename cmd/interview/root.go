// Command interview is a PII-anonymizing interview practice tool.
//
// It serves practice questions, strips personally identifiable information
// from every answer before anything leaves the process, and keeps a
// reversible mapping so anonymized transcripts can be read back.
//
// Usage:
//
//	# Interactive practice session on the terminal
//	./interview run --role "software engineer"
//
//	# One-shot transcript anonymization
//	./interview anonymize -f transcript.txt -m mapping.json
//
//	# Recorded answers, newest first
//	./interview history --limit 10
//
//	# HTTP/websocket API server
//	./interview serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "interview",
	Short: "PII-anonymizing interview practice",
	Long: "Interview serves practice questions and anonymizes every answer:\n" +
		"names, ages, dates of birth, phones, emails, locations and organizations\n" +
		"are replaced with stable identifiers before the text goes anywhere.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(anonymizeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
