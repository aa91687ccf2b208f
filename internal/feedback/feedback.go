// Package feedback generates coaching feedback on anonymized answers and
// summaries of anonymized transcripts.
//
// Feedback always operates on the ANONYMIZED answer: PII is stripped before
// any text reaches a model or a history record, so the reviewer never sees
// the candidate's real details. Feedback is best-effort — a failed review
// degrades to a record without feedback, never to a lost answer.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"interview-anonymizer/internal/logger"
)

// Feedback is the coach's review of one answer.
type Feedback struct {
	Clarity    string `json:"clarity"`
	Relevance  string `json:"relevance"`
	SpeechPace string `json:"speechPace,omitempty"` // voice mode only
}

// Provider reviews one anonymized answer in the context of its question
// and role.
type Provider interface {
	Review(ctx context.Context, role, question, anonymizedAnswer string) (*Feedback, error)
}

// reviewPrompt asks for structured feedback as a bare JSON object.
const reviewPrompt = `You are an expert interview coach providing feedback to a candidate interviewing for the role of %s.

Provide constructive feedback on the candidate's answer based on clarity, conciseness, and relevance to the question and the role. Also comment on the speech pace, assuming a standard speaking rate.

Note: personally identifiable information in the answer has been replaced with placeholder identifiers like N001 or E001; treat them as the underlying values.

Return ONLY a JSON object with string fields "clarity", "relevance" and "speechPace". No other text.

Interview Question:
"%s"

Candidate's Answer:
"%s"`

// summaryPrompt asks for a concise transcript summary.
const summaryPrompt = `You are an AI assistant designed to summarize interview transcripts. Provide a concise summary of the following anonymized interview transcript:

%s`

// Coach is an LLM-backed Provider that also produces session summaries.
type Coach struct {
	client *openai.Client
	model  string
	log    *logger.Logger
}

// NewCoach builds a Coach against an OpenAI-compatible endpoint.
func NewCoach(baseURL, apiKey, model string, log *logger.Logger) *Coach {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Coach{client: openai.NewClientWithConfig(cfg), model: model, log: log}
}

// Review implements Provider.
func (c *Coach) Review(ctx context.Context, role, question, anonymizedAnswer string) (*Feedback, error) {
	content, err := c.complete(ctx, fmt.Sprintf(reviewPrompt, role, question, anonymizedAnswer))
	if err != nil {
		return nil, err
	}
	return parseFeedback(content)
}

// parseFeedback extracts the feedback JSON object from the model's text
// response, tolerating prose or code fences around it.
func parseFeedback(content string) (*Feedback, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in feedback response")
	}
	var fb Feedback
	if err := json.Unmarshal([]byte(content[start:end+1]), &fb); err != nil {
		return nil, fmt.Errorf("feedback parse error: %w", err)
	}
	return &fb, nil
}

// Summarize produces a concise summary of an anonymized transcript.
func (c *Coach) Summarize(ctx context.Context, anonymizedTranscript string) (string, error) {
	content, err := c.complete(ctx, fmt.Sprintf(summaryPrompt, anonymizedTranscript))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (c *Coach) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		c.log.Errorf("complete", "model request failed: %v", err)
		return "", fmt.Errorf("coach request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("coach returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
