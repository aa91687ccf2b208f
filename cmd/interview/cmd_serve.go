package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"interview-anonymizer/internal/api"
	"interview-anonymizer/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket API server",
	Long: "Serve exposes the anonymizer over HTTP: /status, /history,\n" +
		"/anonymize, and a /capture websocket for streaming speech segments.",
	RunE: runServe,
}

func runServe(*cobra.Command, []string) error {
	cfg := config.Load()
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	printBanner(cfg)

	srv := api.New(cfg, a.orch, a.anon, a.store, a.metrics, a.log)
	return srv.ListenAndServe()
}

func printBanner(cfg *config.Config) {
	historyPath := cfg.HistoryPath
	if historyPath == "" {
		historyPath = "(in-memory)"
	}

	fmt.Printf(`
╔══════════════════════════════════════════════════════╗
║        Interview Anonymizer  (Go)                    ║
╚══════════════════════════════════════════════════════╝
  API port        : %d
  Bind address    : %s
  LLM endpoint    : %s
  LLM model       : %s
  LLM classifier  : %v
  Question source : %s
  History store   : %s

  Check status:
    curl http://%s:%d/status
`, cfg.APIPort, cfg.BindAddress,
		cfg.LLMEndpoint, cfg.LLMModel, cfg.UseLLMClassifier,
		cfg.QuestionSource, historyPath,
		cfg.BindAddress, cfg.APIPort)
}
