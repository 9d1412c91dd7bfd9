package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCategories = []string{"Roads & Potholes", "Streetlights", "Other"}

func TestBuildCategoryPrompt(t *testing.T) {
	t.Run("with description", func(t *testing.T) {
		system, user := buildCategoryPrompt("Dark street", "No lights for a week", testCategories)

		assert.Contains(t, system, "JSON object")
		assert.Contains(t, system, `"category"`)
		assert.Contains(t, system, `"reason"`)
		assert.Contains(t, system, "- Roads & Potholes\n")
		assert.Contains(t, system, "- Streetlights\n")

		assert.Contains(t, user, "Issue title: Dark street")
		assert.Contains(t, user, "No lights for a week")
	})

	t.Run("without description", func(t *testing.T) {
		_, user := buildCategoryPrompt("Dark street", "", testCategories)
		assert.NotContains(t, user, "Description:")
	})
}

func TestParseSuggestion(t *testing.T) {
	t.Run("plain JSON", func(t *testing.T) {
		s, err := parseSuggestion(`{"category":"Streetlights","reason":"lights are out"}`, testCategories)
		require.NoError(t, err)
		assert.Equal(t, "Streetlights", s.Category)
		assert.Equal(t, "lights are out", s.Reason)
	})

	t.Run("fenced and differently cased", func(t *testing.T) {
		s, err := parseSuggestion("```json\n{\"category\":\"roads & potholes\",\"reason\":\"r\"}\n```", testCategories)
		require.NoError(t, err)
		assert.Equal(t, "Roads & Potholes", s.Category)
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := parseSuggestion(`{"category":"Aliens","reason":"r"}`, testCategories)
		assert.Error(t, err)
	})

	t.Run("not JSON", func(t *testing.T) {
		_, err := parseSuggestion("Streetlights", testCategories)
		assert.Error(t, err)
	})
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFence(`  {"a":1}  `))
}
