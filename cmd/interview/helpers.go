package main

import (
	"fmt"

	"interview-anonymizer/internal/anonymizer"
	"interview-anonymizer/internal/config"
	"interview-anonymizer/internal/feedback"
	"interview-anonymizer/internal/history"
	"interview-anonymizer/internal/logger"
	"interview-anonymizer/internal/metrics"
	"interview-anonymizer/internal/question"
	"interview-anonymizer/internal/session"
)

// app bundles the wired components every subcommand draws from.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
	anon    *anonymizer.Anonymizer
	store   history.Store
	orch    *session.Orchestrator
}

// newApp wires the application from config: classifier stack, anonymizer,
// question supplier, history store, optional feedback coach, orchestrator.
func newApp(cfg *config.Config) (*app, error) {
	log := logger.New("interview", cfg.LogLevel)
	m := metrics.New()

	anon := anonymizer.New(buildClassifier(cfg, m, log), log, m)

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	var supplier question.Supplier = question.NewBank()
	if cfg.QuestionSource == "llm" {
		gen := question.NewGenerator(cfg.LLMEndpoint, cfg.LLMAPIKey, cfg.LLMModel, log)
		supplier = question.WithFallback(gen, log)
	}

	var coach feedback.Provider
	if cfg.FeedbackEnabled {
		coach = feedback.NewCoach(cfg.LLMEndpoint, cfg.LLMAPIKey, cfg.LLMModel, log)
	}

	return &app{
		cfg:     cfg,
		log:     log,
		metrics: m,
		anon:    anon,
		store:   store,
		orch:    session.New(anon, supplier, store, coach, log, m),
	}, nil
}

// buildClassifier assembles the detection stack: regex rules always, the
// LLM pass when enabled, and a result cache in front of the whole thing.
func buildClassifier(cfg *config.Config, m *metrics.Metrics, log *logger.Logger) anonymizer.Classifier {
	var cls anonymizer.Classifier = anonymizer.NewRuleClassifier()
	if cfg.UseLLMClassifier {
		cls = anonymizer.Multi{
			cls,
			anonymizer.NewLLMClassifier(cfg.LLMEndpoint, cfg.LLMAPIKey, cfg.LLMModel, log),
		}
	}
	return anonymizer.NewCachedClassifier(cls, cfg.CacheSize, m)
}

// openStore opens the configured history store. An empty path keeps
// history in memory for the lifetime of the process.
func openStore(cfg *config.Config) (history.Store, error) {
	if cfg.HistoryPath == "" {
		return history.NewMemoryStore(), nil
	}
	store, err := history.NewBoltStore(cfg.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("open history store %s: %w", cfg.HistoryPath, err)
	}
	return store, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warnf("shutdown", "close history store: %v", err)
	}
}
