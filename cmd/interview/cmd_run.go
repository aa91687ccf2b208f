package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"interview-anonymizer/internal/config"
	"interview-anonymizer/internal/history"
)

var runFlags struct {
	role string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Interactive practice session on the terminal",
	Long: "Run starts a text-mode practice session: a question is printed,\n" +
		"you type an answer, and the anonymized version is shown together\n" +
		"with the entity mapping and feedback before the next question.",
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.role, "role", "", "Role to practice for (default from config)")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	role := runFlags.role
	if role == "" {
		role = cfg.DefaultRole
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	q, err := a.orch.StartSession(ctx, role, history.InputText)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	fmt.Fprintf(out, "Practicing for: %s\n", role)
	fmt.Fprintf(out, "Type your answer and press Enter. Commands: /next (skip), /quit\n\n")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprintf(out, "Q: %s\n> ", q)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit":
			return nil
		case "/next":
			q, err = a.orch.NextQuestion(ctx)
			if err != nil {
				return fmt.Errorf("next question: %w", err)
			}
			continue
		}

		answer, err := a.orch.Capture().SubmitText(line)
		if err != nil {
			return fmt.Errorf("submit answer: %w", err)
		}
		rec, err := a.orch.SubmitAnswer(ctx, answer)
		if rec == nil {
			return fmt.Errorf("submit answer: %w", err)
		}
		if err != nil {
			fmt.Fprintf(out, "  (warning: %v)\n", err)
		}
		printRecord(out, rec)

		q = a.orch.CurrentQuestion()
		if q == "" {
			// Next question failed; retry once before giving up.
			if q, err = a.orch.RequestQuestion(ctx); err != nil {
				return fmt.Errorf("next question: %w", err)
			}
		}
	}
}

func printRecord(out io.Writer, rec *history.InterviewRecord) {
	fmt.Fprintf(out, "\nAnonymized: %s\n", rec.AnonymizedAnswer)
	if rec.Degraded {
		fmt.Fprintf(out, "  NOTE: anonymization unavailable, raw answer recorded\n")
	}
	for _, e := range rec.EntityMap {
		fmt.Fprintf(out, "  %s = %q (%s)\n", e.Identifier, e.Original, e.Type)
	}
	if fb := rec.Feedback; fb != nil {
		fmt.Fprintf(out, "Feedback:\n  clarity:   %s\n  relevance: %s\n", fb.Clarity, fb.Relevance)
		if fb.SpeechPace != "" {
			fmt.Fprintf(out, "  pace:      %s\n", fb.SpeechPace)
		}
	}
	fmt.Fprintln(out)
}
