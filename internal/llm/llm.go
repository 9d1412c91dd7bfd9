package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// CategorySuggestion is the model's pick for a new issue.
type CategorySuggestion struct {
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

// Client wraps the Anthropic API for issue triage.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildCategoryPrompt constructs the system and user prompts for category suggestion.
func buildCategoryPrompt(title, description string, categories []string) (system string, user string) {
	var sb strings.Builder
	sb.WriteString(`You triage civic issues reported by citizens to their municipal corporation. Pick the single best category for the issue and return a JSON object with exactly two fields:

- "category": one of the allowed categories, copied exactly
- "reason": one short sentence explaining the choice

Allowed categories:
`)
	for _, c := range categories {
		sb.WriteString("- ")
		sb.WriteString(c)
		sb.WriteString("\n")
	}
	sb.WriteString(`
Rules:
- Use "Other" only when no other category fits
- Return valid JSON only, no markdown fencing or explanation`)
	system = sb.String()

	var ub strings.Builder
	ub.WriteString("Issue title: ")
	ub.WriteString(title)
	ub.WriteString("\n")
	if description != "" {
		ub.WriteString("\nDescription:\n")
		ub.WriteString(description)
		ub.WriteString("\n")
	}
	user = ub.String()
	return
}

// SuggestCategory asks the model to pick one of categories for the issue.
func (c *Client) SuggestCategory(ctx context.Context, title, description string, categories []string) (*CategorySuggestion, error) {
	systemPrompt, userPrompt := buildCategoryPrompt(title, description, categories)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 256,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return parseSuggestion(text, categories)
}

// parseSuggestion decodes the model reply and checks the category is allowed.
func parseSuggestion(text string, categories []string) (*CategorySuggestion, error) {
	text = stripFence(text)

	var s CategorySuggestion
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	for _, c := range categories {
		if strings.EqualFold(strings.TrimSpace(s.Category), c) {
			s.Category = c
			return &s, nil
		}
	}
	return nil, fmt.Errorf("LLM suggested unknown category %q", s.Category)
}

// stripFence removes markdown code fencing around a reply, if present.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.SplitN(text, "\n", 2)
	if len(lines) > 1 {
		text = lines[1]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
