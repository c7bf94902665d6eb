package manager

import "context"

// Provider abstracts the model runtime used by the Manager. Concrete
// implementations (llama.cpp server, in-process go-llama.cpp) satisfy it.
type Provider interface {
	// Load acquires a tokenizer/model pair. It must not return a partially
	// initialized Backend: on error, everything it allocated is released.
	Load(ctx context.Context, spec LoadSpec) (Backend, error)
}

// LoadSpec carries what a provider needs to load a model.
type LoadSpec struct {
	ModelID    string
	Credential string
}

// Backend is a loaded tokenizer+model pair. Generate may be called
// concurrently; implementations that cannot run concurrently serialize
// internally.
type Backend interface {
	// Generate runs format-free text generation for prompt. Implementations
	// should return when ctx is canceled if the runtime allows it.
	Generate(ctx context.Context, prompt string, params GenerationParams) (Completion, error)
	// Device describes where the model executes (e.g. "cuda", "cpu").
	Device() string
	// Close releases the model, tokenizer and any device cache.
	Close() error
}

// GenerationParams captures the sampling configuration passed to backends.
// It is fixed per deployment.
type GenerationParams struct {
	MaxNewTokens      int
	Temperature       float32
	TopK              int
	TopP              float32
	RepetitionPenalty float32
	// PromptMaxTokens truncates the tokenized prompt when the backend
	// supports it.
	PromptMaxTokens int
	Stop            []string
}

// DefaultGenerationParams mirrors the tuned sampling settings of the story
// service: nucleus/top-k sampling with a repetition penalty.
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		MaxNewTokens:      300,
		Temperature:       0.85,
		TopK:              60,
		TopP:              0.92,
		RepetitionPenalty: 1.3,
		PromptMaxTokens:   512,
	}
}

// Completion summarizes a finished generation.
type Completion struct {
	Text         string
	FinishReason string
	Usage        Usage
}

// Usage contains token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
