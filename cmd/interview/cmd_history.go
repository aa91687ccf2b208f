package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"interview-anonymizer/internal/config"
	"interview-anonymizer/internal/feedback"
	"interview-anonymizer/internal/logger"
)

var historyFlags struct {
	limit   int
	summary bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded answers, newest first",
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.IntVar(&historyFlags.limit, "limit", 0, "Maximum records to show (0 = all)")
	f.BoolVar(&historyFlags.summary, "summary", false, "Generate an LLM summary of the anonymized answers")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	recs, err := store.List(cmd.Context(), historyFlags.limit)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(recs) == 0 {
		fmt.Fprintln(out, "No recorded answers.")
		return nil
	}

	for _, rec := range recs {
		fmt.Fprintf(out, "%s  [%s, %s]", rec.Timestamp.Format("2006-01-02 15:04"), rec.Role, rec.InputType)
		if rec.Degraded {
			fmt.Fprintf(out, "  (degraded)")
		}
		fmt.Fprintf(out, "\n  Q: %s\n  A: %s\n", rec.Question, rec.AnonymizedAnswer)
		for _, e := range rec.EntityMap {
			fmt.Fprintf(out, "     %s = %q\n", e.Identifier, e.Original)
		}
		fmt.Fprintln(out)
	}

	if !historyFlags.summary {
		return nil
	}

	// Summaries only ever see the anonymized answers.
	var b strings.Builder
	for i := len(recs) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", recs[i].Question, recs[i].AnonymizedAnswer)
	}
	coach := feedback.NewCoach(cfg.LLMEndpoint, cfg.LLMAPIKey, cfg.LLMModel,
		logger.New("interview", cfg.LogLevel))
	summary, err := coach.Summarize(cmd.Context(), b.String())
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	fmt.Fprintf(out, "Summary:\n%s\n", summary)
	return nil
}
