package category

import (
	"context"
	"log/slog"

	"github.com/joescharf/civic/internal/llm"
)

// Model is an LLM that can pick a category.
type Model interface {
	SuggestCategory(ctx context.Context, title, description string, categories []string) (*llm.CategorySuggestion, error)
}

// Suggestion is a suggested category and where it came from.
type Suggestion struct {
	Category string `json:"category"`
	Reason   string `json:"reason,omitempty"`
	Source   string `json:"source"` // "llm" or "keywords"
}

// Suggester asks the model when one is configured and falls back to keyword
// heuristics otherwise or on failure.
type Suggester struct {
	model  Model
	logger *slog.Logger
}

// NewSuggester creates a Suggester. model and logger may be nil.
func NewSuggester(model Model, logger *slog.Logger) *Suggester {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Suggester{model: model, logger: logger}
}

func (s *Suggester) Suggest(ctx context.Context, title, description string) Suggestion {
	if s.model != nil {
		got, err := s.model.SuggestCategory(ctx, title, description, Categories())
		if err == nil {
			return Suggestion{Category: got.Category, Reason: got.Reason, Source: "llm"}
		}
		s.logger.Warn("llm category suggestion failed, using keywords", "error", err)
	}
	return Suggestion{Category: Suggest(title, description), Source: "keywords"}
}
