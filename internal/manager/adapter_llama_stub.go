//go:build !llama

package manager

import "context"

// LlamaOptions configures the in-process go-llama.cpp provider.
type LlamaOptions struct {
	ModelPath func(modelID string) (string, error)
	CtxSize   int
	Threads   int
	GPULayers int
}

// llamaTagged reports whether the in-process provider is compiled in.
const llamaTagged = false

// llamaProvider refuses to load without the 'llama' build tag so default
// builds stay CGO-free.
type llamaProvider struct{}

func NewLlamaProvider(LlamaOptions) Provider { return llamaProvider{} }

func (llamaProvider) Load(ctx context.Context, _ LoadSpec) (Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
