package manager

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LlamaServerOptions configures the HTTP provider for an OpenAI-compatible
// llama.cpp server.
type LlamaServerOptions struct {
	BaseURL        string
	Device         string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	Logger         zerolog.Logger
}

// llamaServerProvider implements Provider by talking to a running
// llama.cpp server over HTTP.
type llamaServerProvider struct {
	baseURL    string
	device     string
	reqTimeout time.Duration
	httpClient *http.Client
	log        zerolog.Logger
}

// NewLlamaServerProvider constructs a server-backed provider.
func NewLlamaServerProvider(opts LlamaServerOptions) Provider {
	connect := opts.ConnectTimeout
	if connect <= 0 {
		connect = 5 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connect,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	device := strings.TrimSpace(opts.Device)
	if device == "" {
		device = "remote"
	}
	// Timeout=0: every request carries a context deadline.
	return &llamaServerProvider{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		device:     device,
		reqTimeout: opts.RequestTimeout,
		httpClient: &http.Client{Transport: tr, Timeout: 0},
		log:        opts.Logger.With().Str("adapter", "llama_server").Logger(),
	}
}

// Load verifies the server is reachable and accepts the credential.
func (p *llamaServerProvider) Load(ctx context.Context, spec LoadSpec) (Backend, error) {
	if p.baseURL == "" {
		return nil, errors.New("llama server url is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, err
	}
	if spec.Credential != "" {
		req.Header.Set("Authorization", "Bearer "+spec.Credential)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrDependencyUnavailable(fmt.Sprintf("llama server unreachable: %v", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("llama server http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&list); err == nil {
		ids := make([]string, 0, len(list.Data))
		for _, d := range list.Data {
			ids = append(ids, d.ID)
		}
		p.log.Debug().Strs("models", ids).Msg("llama server models")
	}
	return &llamaServerBackend{p: p, modelID: spec.ModelID, apiKey: spec.Credential}, nil
}

type llamaServerBackend struct {
	p       *llamaServerProvider
	modelID string
	apiKey  string
}

// completionRequest represents the payload for /v1/completions.
type completionRequest struct {
	Model       string   `json:"model,omitempty"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float32  `json:"temperature,omitempty"`
	TopP        float32  `json:"top_p,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Stream      bool     `json:"stream"`
	// Not standard OpenAI; llama.cpp accepts it and other servers ignore it.
	RepeatPenalty float32 `json:"repeat_penalty,omitempty"`
}

type completionChunk struct {
	Choices []struct {
		Text  string `json:"text"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Content string `json:"content"`
	Usage   *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (b *llamaServerBackend) Device() string { return b.p.device }

func (b *llamaServerBackend) Close() error {
	b.p.httpClient.CloseIdleConnections()
	return nil
}

// Generate streams a completion and aggregates the fragments.
func (b *llamaServerBackend) Generate(ctx context.Context, prompt string, params GenerationParams) (Completion, error) {
	if b.p.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.p.reqTimeout)
		defer cancel()
	}
	payload := completionRequest{
		Model:         b.modelID,
		Prompt:        prompt,
		MaxTokens:     params.MaxNewTokens,
		Temperature:   params.Temperature,
		TopP:          params.TopP,
		TopK:          params.TopK,
		Stop:          params.Stop,
		Stream:        true,
		RepeatPenalty: params.RepetitionPenalty,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Completion{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.p.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return Completion{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}
	resp, err := b.p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Completion{}, ctx.Err()
		}
		return Completion{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Completion{}, fmt.Errorf("llama server http error: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var (
		out   Completion
		sb    strings.Builder
		frags int
	)
	r := bufio.NewReader(resp.Body)
	for {
		line, rerr := r.ReadString('\n')
		line = strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(line), "data:") {
			data := strings.TrimSpace(line[len("data:"):])
			if data == "[DONE]" {
				break
			}
			var chunk completionChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				b.p.log.Debug().Str("line", line).Msg("unknown stream line")
			} else {
				frag := chunk.Content
				if len(chunk.Choices) > 0 {
					c := chunk.Choices[0]
					frag += c.Text + c.Delta.Content
					if c.FinishReason != "" {
						out.FinishReason = c.FinishReason
					}
				}
				if frag != "" {
					sb.WriteString(frag)
					frags++
				}
				if chunk.Usage != nil {
					out.Usage = Usage{
						PromptTokens:     chunk.Usage.PromptTokens,
						CompletionTokens: chunk.Usage.CompletionTokens,
						TotalTokens:      chunk.Usage.TotalTokens,
					}
				}
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				return Completion{}, ctx.Err()
			}
			return Completion{}, rerr
		}
	}
	out.Text = sb.String()
	if out.Usage.CompletionTokens == 0 {
		out.Usage.CompletionTokens = frags
		out.Usage.TotalTokens = out.Usage.PromptTokens + frags
	}
	if out.FinishReason == "" {
		out.FinishReason = "stop"
	}
	return out, nil
}
