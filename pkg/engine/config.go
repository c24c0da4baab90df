package engine

// Config holds configuration for the core engine.
type Config struct {
	// DefaultModel is used when the request names no model, or when a
	// non-elevated caller asks for a higher-capability tier.
	DefaultModel string

	// MaxTokensCeiling caps maxTokens for non-elevated callers. Values
	// above the ceiling are silently reduced, not rejected. Zero or
	// negative means the default of 1000.
	MaxTokensCeiling int

	// DefaultSystem is the instruction text for the synthesized system
	// message when neither the caller nor the template supplies one.
	DefaultSystem string
}

func (c Config) defaultModel() string {
	if c.DefaultModel == "" {
		return "gpt-3.5-turbo"
	}
	return c.DefaultModel
}

func (c Config) maxTokensCeiling() int {
	if c.MaxTokensCeiling <= 0 {
		return 1000
	}
	return c.MaxTokensCeiling
}

func (c Config) defaultSystem() string {
	if c.DefaultSystem == "" {
		return "You are a helpful assistant."
	}
	return c.DefaultSystem
}
