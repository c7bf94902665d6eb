//go:build llama

package manager

import (
	"context"
	"errors"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
)

// LlamaOptions configures the in-process go-llama.cpp provider.
type LlamaOptions struct {
	// ModelPath resolves a model id to a local GGUF file.
	ModelPath func(modelID string) (string, error)
	CtxSize   int
	Threads   int
	GPULayers int
}

// llamaTagged reports whether the in-process provider is compiled in.
const llamaTagged = true

type llamaProvider struct {
	opts LlamaOptions
}

// NewLlamaProvider returns a Provider that loads GGUF weights in-process.
func NewLlamaProvider(opts LlamaOptions) Provider {
	return &llamaProvider{opts: opts}
}

func (p *llamaProvider) Load(ctx context.Context, spec LoadSpec) (Backend, error) {
	if p.opts.ModelPath == nil {
		return nil, errors.New("no model path resolver configured")
	}
	path, err := p.opts.ModelPath(spec.ModelID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{llama.SetContext(zn(p.opts.CtxSize, 2048))}
	if p.opts.GPULayers > 0 {
		mo = append(mo, llama.SetGPULayers(p.opts.GPULayers))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := llama.New(path, mo...)
	if err != nil {
		return nil, err
	}
	device := "cpu"
	if p.opts.GPULayers > 0 {
		device = "cuda"
	}
	return &llamaBackend{model: m, threads: p.opts.Threads, device: device}, nil
}

// llamaBackend owns the loaded model. go-llama.cpp contexts are not safe for
// concurrent Predict calls, so generations are serialized.
type llamaBackend struct {
	mu      sync.Mutex
	model   *llama.LLama
	threads int
	device  string
}

func (b *llamaBackend) Device() string { return b.device }

func (b *llamaBackend) Generate(ctx context.Context, prompt string, params GenerationParams) (Completion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.model == nil {
		return Completion{}, errors.New("llama model not initialized")
	}
	tokens := 0
	// Returning false from the callback stops prediction.
	b.model.SetTokenCallback(func(string) bool {
		tokens++
		return ctx.Err() == nil
	})
	text, err := b.model.Predict(prompt, predictOptions(params, b.threads)...)
	if ctx.Err() != nil {
		return Completion{}, ctx.Err()
	}
	if err != nil {
		return Completion{}, err
	}
	return Completion{
		Text:         text,
		FinishReason: "stop",
		Usage:        Usage{CompletionTokens: tokens, TotalTokens: tokens},
	}, nil
}

func (b *llamaBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.model != nil {
		b.model.Free()
		b.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

func predictOptions(params GenerationParams, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(zn(params.MaxNewTokens, 1)),
		llama.SetThreads(zn(threads, 1)),
		llama.SetTopP(zf(params.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(params.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(zf(params.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(zf(params.RepetitionPenalty, llama.DefaultOptions.Penalty)),
	}
	if len(params.Stop) > 0 {
		po = append(po, llama.SetStopWords(params.Stop...))
	}
	return po
}
