package anonymizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"interview-anonymizer/internal/entity"
	"interview-anonymizer/internal/logger"
)

// classifyPrompt instructs the model to return detections as a bare JSON
// array. Offsets from language models are unreliable, so the model returns
// only the exact strings and their types; occurrences are located here by
// substring scan.
const classifyPrompt = `You are an expert in de-identifying text. Find all personally identifiable information (PII) in the text below. PII categories: name, age, dateOfBirth, phone, email, location, organization.

Return ONLY a JSON array of detections. Each item must have:
- "original": the exact text found, character for character
- "type": one of: name, age, dateOfBirth, phone, email, location, organization

Return ONLY the JSON array, no explanation. Example: [{"original":"John Smith","type":"name"}]

Text to analyze:
%s`

// llmDetection is one item in the model's JSON response.
type llmDetection struct {
	Original string `json:"original"`
	Type     string `json:"type"`
}

// LLMClassifier detects PII with a chat-completion model behind any
// OpenAI-compatible endpoint (hosted API or a local Ollama server).
type LLMClassifier struct {
	client *openai.Client
	model  string
	log    *logger.Logger
}

// NewLLMClassifier builds a classifier against the given endpoint. An empty
// baseURL means the hosted OpenAI API; point it at
// http://localhost:11434/v1 for a local Ollama server.
func NewLLMClassifier(baseURL, apiKey, model string, log *logger.Logger) *LLMClassifier {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &LLMClassifier{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		log:    log,
	}
}

// Classify asks the model for detections and locates every occurrence of
// each detected value in text. Any transport or parse failure is reported
// as ErrClassifierUnavailable — never an empty result.
func (c *LLMClassifier) Classify(ctx context.Context, text string) ([]entity.Span, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(classifyPrompt, text)},
		},
		Temperature: 0,
	})
	if err != nil {
		c.log.Errorf("classify", "model request failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: model returned no choices", ErrClassifierUnavailable)
	}

	detections, err := parseDetections(resp.Choices[0].Message.Content)
	if err != nil {
		c.log.Errorf("classify", "response parse failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	return locateDetections(text, detections), nil
}

// parseDetections extracts the JSON array from the model's text response.
// Models often wrap the array in prose or code fences; everything outside
// the outermost brackets is ignored.
func parseDetections(raw string) ([]llmDetection, error) {
	raw = strings.TrimSpace(raw)
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array in model response")
	}
	var detections []llmDetection
	if err := json.Unmarshal([]byte(raw[start:end+1]), &detections); err != nil {
		return nil, fmt.Errorf("detection parse error: %w", err)
	}
	return detections, nil
}

// locateDetections turns value/type detections into byte spans by scanning
// for every exact occurrence. Detections with unknown types or values not
// present in the text are dropped.
func locateDetections(text string, detections []llmDetection) []entity.Span {
	var spans []entity.Span
	for _, d := range detections {
		typ := normalizeType(d.Type)
		if d.Original == "" || !typ.Valid() {
			continue
		}
		for from := 0; ; {
			i := strings.Index(text[from:], d.Original)
			if i < 0 {
				break
			}
			start := from + i
			end := start + len(d.Original)
			spans = append(spans, entity.Span{Start: start, End: end, Text: d.Original, Type: typ})
			from = end
		}
	}
	return spans
}

// normalizeType maps the model's type label onto the closed entity set,
// tolerating casing variants and common aliases.
func normalizeType(s string) entity.Type {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name", "person":
		return entity.TypeName
	case "age":
		return entity.TypeAge
	case "dateofbirth", "date_of_birth", "dob", "birthdate", "date":
		return entity.TypeDateOfBirth
	case "phone", "phonenumber", "phone_number", "telephone":
		return entity.TypePhone
	case "email", "emailaddress", "email_address":
		return entity.TypeEmail
	case "location", "address", "city":
		return entity.TypeLocation
	case "organization", "organisation", "company":
		return entity.TypeOrganization
	}
	return entity.Type(s)
}
