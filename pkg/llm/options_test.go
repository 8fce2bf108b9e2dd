package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply_OverridesDefaults(t *testing.T) {
	base := GenerateOptions{Model: "gpt-4o-mini", Temperature: 0.2, MaxTokens: 1000}

	got := Apply(base, WithModel("glm-4.6v"), WithFormat(FormatJSONObject), nil)

	assert.Equal(t, "glm-4.6v", got.Model)
	assert.Equal(t, 0.2, got.Temperature)
	assert.Equal(t, 1000, got.MaxTokens)
	assert.Equal(t, FormatJSONObject, got.Format)
}

func TestApply_NoOptionsKeepsBase(t *testing.T) {
	base := GenerateOptions{Model: "m", MaxTokens: 10}
	assert.Equal(t, base, Apply(base))
	assert.Equal(t, GenerateOptions{Temperature: 0}, Apply(GenerateOptions{}, WithTemperature(0)))
	assert.Equal(t, 5, Apply(GenerateOptions{}, WithMaxTokens(5)).MaxTokens)
}
