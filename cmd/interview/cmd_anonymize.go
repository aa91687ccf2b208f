package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"interview-anonymizer/internal/config"
)

var anonymizeFlags struct {
	inputFile   string
	mappingFile string
}

var anonymizeCmd = &cobra.Command{
	Use:   "anonymize",
	Short: "Anonymize a transcript from a file or stdin",
	Long: "Anonymize reads a transcript, replaces all detected PII with stable\n" +
		"identifiers, and prints the result. The identifier-to-original mapping\n" +
		"can be written to a JSON file for later de-anonymization.",
	RunE: runAnonymize,
}

func init() {
	f := anonymizeCmd.Flags()
	f.StringVarP(&anonymizeFlags.inputFile, "file", "f", "", "Transcript file (default: stdin)")
	f.StringVarP(&anonymizeFlags.mappingFile, "mapping", "m", "", "Write the entity mapping table to this JSON file")
}

func runAnonymize(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	transcript, err := readTranscript(anonymizeFlags.inputFile)
	if err != nil {
		return err
	}
	if strings.TrimSpace(transcript) == "" {
		return fmt.Errorf("empty transcript")
	}

	res, err := a.anon.Anonymize(cmd.Context(), transcript)
	if err != nil {
		return fmt.Errorf("anonymize: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.AnonymizedText)

	if anonymizeFlags.mappingFile != "" {
		data, err := json.MarshalIndent(res.Entities, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal mapping: %w", err)
		}
		if err := os.WriteFile(anonymizeFlags.mappingFile, append(data, '\n'), 0o600); err != nil {
			return fmt.Errorf("write mapping: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "mapping written to %s (%d entities)\n",
			anonymizeFlags.mappingFile, len(res.Entities))
	}
	return nil
}

func readTranscript(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
