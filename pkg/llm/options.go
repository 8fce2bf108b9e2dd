// Package llm provides options pattern for LLM generation parameters.
package llm

// GenerateOptions holds parameters for LLM generation.
// Defaults come from config.yaml and can be overridden per call.
type GenerateOptions struct {
	// Model is the model identifier (e.g., "gpt-4o-mini", "glm-4.6v-flash")
	Model string

	// Temperature controls randomness in responses (0.0 = deterministic)
	Temperature float64

	// MaxTokens limits the response length
	MaxTokens int

	// Format specifies response format (FormatJSONObject for structured output)
	Format string
}

// GenerateOption is a functional option for configuring GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithModel sets the model for generation.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithTemperature sets the temperature for generation.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// WithMaxTokens sets the maximum tokens for generation.
func WithMaxTokens(tokens int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = tokens
	}
}

// WithFormat sets the response format for generation.
func WithFormat(format string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Format = format
	}
}

// Apply applies opts on top of base and returns the result.
func Apply(base GenerateOptions, opts ...GenerateOption) GenerateOptions {
	for _, opt := range opts {
		if opt != nil {
			opt(&base)
		}
	}
	return base
}
