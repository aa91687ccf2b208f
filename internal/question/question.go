// Package question supplies the next interview question for a role,
// excluding questions already asked in the session.
//
// Two suppliers are provided: Bank rotates through a fixed per-role list
// and never fails, Generator asks a chat-completion model for a fresh
// question and can fail with ErrUnavailable. The orchestrator treats both
// identically; retry on failure is a manual user action, not automatic.
package question

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"interview-anonymizer/internal/logger"
)

// ErrUnavailable is returned when no question can be supplied right now.
// The session stays in its awaiting-question state so the user can retry.
var ErrUnavailable = errors.New("question supply unavailable")

// Supplier returns the next question for role, never repeating anything in
// excluded.
type Supplier interface {
	NextQuestion(ctx context.Context, role string, excluded []string) (string, error)
}

// defaultQuestions is the general HR rotation used when a role has no
// dedicated bank.
var defaultQuestions = []string{
	"Tell me about yourself.",
	"Why do you want to work with our company?",
	"What are your strengths and weaknesses?",
	"Where do you see yourself in the next 5 years?",
	"Can you describe a challenge you faced at work or school and how you handled it?",
}

// roleQuestions holds role-specific banks, keyed by lowercased role.
var roleQuestions = map[string][]string{
	"software engineer": {
		"Walk me through a recent project you are proud of.",
		"How do you approach debugging a problem you have never seen before?",
		"Tell me about a time you disagreed with a technical decision on your team.",
		"How do you decide when code is ready to ship?",
		"Describe a system you designed and what you would change about it today.",
	},
	"product manager": {
		"How do you prioritize competing feature requests?",
		"Tell me about a product decision you got wrong and what you learned.",
		"How do you measure whether a launch succeeded?",
		"Describe how you work with engineers when scope has to be cut.",
	},
}

// Bank is a Supplier backed by fixed question lists. It never fails: when
// every question in the bank has been asked, the rotation wraps around.
type Bank struct{}

// NewBank returns the static question bank.
func NewBank() *Bank { return &Bank{} }

// NextQuestion returns the first bank question not in excluded, or wraps
// around to the start of the rotation when everything has been asked.
func (b *Bank) NextQuestion(_ context.Context, role string, excluded []string) (string, error) {
	bank := defaultQuestions
	if qs, ok := roleQuestions[strings.ToLower(strings.TrimSpace(role))]; ok {
		bank = qs
	}

	asked := make(map[string]bool, len(excluded))
	for _, q := range excluded {
		asked[q] = true
	}
	for _, q := range bank {
		if !asked[q] {
			return q, nil
		}
	}
	// All asked: restart the rotation at the position the session reached.
	return bank[len(excluded)%len(bank)], nil
}

// generatePrompt asks the model for one new question, listing already-asked
// questions to avoid.
const generatePrompt = `You are an expert interviewer. Generate a relevant interview question for a candidate interviewing for the role of %s.

%sGenerate one new, insightful question. The question should be behavioral, situational, or technical, depending on what is most appropriate for the role. Return ONLY the question text, no numbering or commentary.`

// Generator is a Supplier backed by a chat-completion model.
type Generator struct {
	client *openai.Client
	model  string
	log    *logger.Logger
}

// NewGenerator builds a Generator against an OpenAI-compatible endpoint.
// An empty baseURL means the hosted OpenAI API.
func NewGenerator(baseURL, apiKey, model string, log *logger.Logger) *Generator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Generator{client: openai.NewClientWithConfig(cfg), model: model, log: log}
}

// NextQuestion asks the model for a fresh question. Transport failures and
// empty completions surface as ErrUnavailable.
func (g *Generator) NextQuestion(ctx context.Context, role string, excluded []string) (string, error) {
	var avoid string
	if len(excluded) > 0 {
		avoid = "Avoid asking the following questions that have already been asked:\n- " +
			strings.Join(excluded, "\n- ") + "\n\n"
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(generatePrompt, role, avoid)},
		},
	})
	if err != nil {
		g.log.Errorf("generate", "model request failed: %v", err)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: model returned no choices", ErrUnavailable)
	}
	q := strings.TrimSpace(strings.Trim(resp.Choices[0].Message.Content, `"`))
	if q == "" {
		return "", fmt.Errorf("%w: model returned an empty question", ErrUnavailable)
	}
	return q, nil
}

// WithFallback returns a Supplier that tries primary first and falls back
// to the static bank on ErrUnavailable, so a dead model endpoint degrades
// to canned questions instead of blocking the session.
func WithFallback(primary Supplier, log *logger.Logger) Supplier {
	return &fallbackSupplier{primary: primary, bank: NewBank(), log: log}
}

type fallbackSupplier struct {
	primary Supplier
	bank    *Bank
	log     *logger.Logger
}

func (f *fallbackSupplier) NextQuestion(ctx context.Context, role string, excluded []string) (string, error) {
	q, err := f.primary.NextQuestion(ctx, role, excluded)
	if err == nil {
		return q, nil
	}
	f.log.Warnf("fallback", "generator failed, using question bank: %v", err)
	return f.bank.NextQuestion(ctx, role, excluded)
}
