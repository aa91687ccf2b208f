// Package config loads and holds all interview-anonymizer configuration.
// Settings are read in layers: built-in defaults, then interview-config.json,
// then a .env file (if present), then environment variables. Later layers
// win. The LLM API key is env-only so it never lands in a config file that
// might get committed.
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the full application configuration.
type Config struct {
	APIPort     int    `json:"apiPort"`
	BindAddress string `json:"bindAddress"`

	LLMEndpoint      string `json:"llmEndpoint"` // OpenAI-compatible base URL; empty = hosted API
	LLMModel         string `json:"llmModel"`
	LLMAPIKey        string `json:"-"` // env only, never persisted
	UseLLMClassifier bool   `json:"useLlmClassifier"`

	QuestionSource  string `json:"questionSource"` // "bank" or "llm"
	DefaultRole     string `json:"defaultRole"`
	FeedbackEnabled bool   `json:"feedbackEnabled"`

	HistoryPath string `json:"historyPath"` // empty = in-memory only
	CacheSize   int    `json:"cacheSize"`   // classification result cache entries
	LogLevel    string `json:"logLevel"`
	APIToken    string `json:"-"` // env only; empty = no auth on the HTTP API
}

// Load returns config with defaults overridden by interview-config.json,
// .env, and environment variables, in that order.
func Load() *Config {
	cfg := defaults()
	loadFile(cfg, "interview-config.json")
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[CONFIG] Warning: could not load .env: %v", err)
	}
	loadEnv(cfg)
	return cfg
}

func defaults() *Config {
	return &Config{
		APIPort:          8080,
		BindAddress:      "127.0.0.1",
		LLMEndpoint:      "http://localhost:11434/v1",
		LLMModel:         "qwen2.5:3b",
		UseLLMClassifier: true,
		QuestionSource:   "bank",
		DefaultRole:      "software engineer",
		FeedbackEnabled:  true,
		HistoryPath:      "interview-history.db",
		CacheSize:        4096,
		LogLevel:         "info",
	}
}

func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // file is optional
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		log.Printf("[CONFIG] Warning: could not parse %s: %v", path, err)
	} else {
		log.Printf("[CONFIG] Loaded %s", path)
	}
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("API_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.APIPort = n
		}
	}
	if v := os.Getenv("BIND_ADDRESS"); v != "" {
		cfg.BindAddress = v
	}
	if v := os.Getenv("LLM_ENDPOINT"); v != "" {
		cfg.LLMEndpoint = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLMModel = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLMAPIKey = v
	}
	if v := os.Getenv("USE_LLM_CLASSIFIER"); v == "false" {
		cfg.UseLLMClassifier = false
	}
	if v := os.Getenv("QUESTION_SOURCE"); v != "" {
		cfg.QuestionSource = v
	}
	if v := os.Getenv("DEFAULT_ROLE"); v != "" {
		cfg.DefaultRole = v
	}
	if v := os.Getenv("FEEDBACK_ENABLED"); v == "false" {
		cfg.FeedbackEnabled = false
	}
	if v := os.Getenv("HISTORY_PATH"); v != "" {
		cfg.HistoryPath = v
	}
	if v := os.Getenv("CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheSize = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("API_TOKEN"); v != "" {
		cfg.APIToken = v
	}
}
