package main

import (
	"io"
	"os"
	"strings"
	"testing"

	"interview-anonymizer/internal/config"
)

// captureStdout redirects os.Stdout to a pipe for the duration of fn,
// then returns everything written to it.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w

	fn()

	if closeErr := w.Close(); closeErr != nil {
		t.Fatalf("pipe write close: %v", closeErr)
	}
	os.Stdout = old

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read pipe: %v", err)
	}
	return string(out)
}

func TestPrintBanner_ContainsExpectedFields(t *testing.T) {
	cfg := &config.Config{
		APIPort:          8080,
		BindAddress:      "127.0.0.1",
		LLMEndpoint:      "http://localhost:11434/v1",
		LLMModel:         "qwen2.5:3b",
		UseLLMClassifier: true,
		QuestionSource:   "bank",
		HistoryPath:      "interview-history.db",
	}

	out := captureStdout(t, func() { printBanner(cfg) })

	for _, want := range []string{"8080", "localhost:11434", "qwen2.5:3b", "interview-history.db"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in banner output, got:\n%s", want, out)
		}
	}
}

func TestPrintBanner_MemoryStore(t *testing.T) {
	out := captureStdout(t, func() { printBanner(&config.Config{}) })
	if !strings.Contains(out, "(in-memory)") {
		t.Errorf("expected in-memory marker for empty history path, got:\n%s", out)
	}
}

func TestRegisteredSubcommands(t *testing.T) {
	want := map[string]bool{"run": false, "anonymize": false, "history": false, "serve": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}
