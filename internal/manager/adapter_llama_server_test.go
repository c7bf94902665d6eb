package manager

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// sseWriter helps write SSE-style lines.
type sseWriter struct{ w http.ResponseWriter }

func (sw sseWriter) writeLine(line string) {
	_, _ = sw.w.Write([]byte(line + "\n"))
	if f, ok := sw.w.(http.Flusher); ok {
		f.Flush()
	}
}

func modelsHandler(wantAuth string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if wantAuth != "" && r.Header.Get("Authorization") != "Bearer "+wantAuth {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"bad token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"gemma","object":"model"}]}`))
	}
}

func newServerProvider(t *testing.T, url string, reqTimeout time.Duration) Provider {
	t.Helper()
	return NewLlamaServerProvider(LlamaServerOptions{
		BaseURL:        url,
		Device:         "cuda",
		RequestTimeout: reqTimeout,
		ConnectTimeout: time.Second,
		Logger:         zerolog.Nop(),
	})
}

func TestLlamaServerProvider_StreamAggregates(t *testing.T) {
	var got completionRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", modelsHandler("tok"))
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		sw := sseWriter{w: w}
		sw.writeLine(`data: {"choices":[{"text":"Once"}]}`)
		sw.writeLine("")
		sw.writeLine(`data: {"choices":[{"delta":{"content":" upon"}}]}`)
		sw.writeLine(`data: {"content":" a time"}`)
		sw.writeLine(`data: not-json`)
		sw.writeLine(`data: {"choices":[{"text":"","finish_reason":"length"}],"usage":{"prompt_tokens":7,"completion_tokens":3,"total_tokens":10}}`)
		sw.writeLine("data: [DONE]")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	b, err := newServerProvider(t, ts.URL, 5*time.Second).Load(testCtx(t), LoadSpec{ModelID: "gemma", Credential: "tok"})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	defer b.Close()
	if b.Device() != "cuda" {
		t.Fatalf("device = %q", b.Device())
	}

	params := DefaultGenerationParams()
	out, err := b.Generate(testCtx(t), "Say hi", params)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if out.Text != "Once upon a time" {
		t.Fatalf("unexpected output: %q", out.Text)
	}
	if out.FinishReason != "length" || out.Usage.TotalTokens != 10 {
		t.Fatalf("unexpected finish/usage: %+v", out)
	}
	if got.Model != "gemma" || got.MaxTokens != params.MaxNewTokens || !got.Stream || got.TopK != params.TopK {
		t.Fatalf("unexpected request payload: %+v", got)
	}
}

func TestLlamaServerProvider_LoadRejectsBadCredential(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", modelsHandler("right"))
	ts := httptest.NewServer(mux)
	defer ts.Close()

	_, err := newServerProvider(t, ts.URL, time.Second).Load(testCtx(t), LoadSpec{ModelID: "m", Credential: "wrong"})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
}

func TestLlamaServerProvider_LoadUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := newServerProvider(t, url, time.Second).Load(testCtx(t), LoadSpec{ModelID: "m"})
	if !IsDependencyUnavailable(err) {
		t.Fatalf("expected dependency unavailable, got %v", err)
	}
}

func TestLlamaServerProvider_HTTPError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", modelsHandler(""))
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "boom"}})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	b, err := newServerProvider(t, ts.URL, 3*time.Second).Load(testCtx(t), LoadSpec{ModelID: "m"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer b.Close()

	if _, err := b.Generate(testCtx(t), "hello", DefaultGenerationParams()); err == nil {
		t.Fatalf("expected error on HTTP 500")
	}
}

func TestLlamaServerProvider_RequestTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", modelsHandler(""))
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		sw := sseWriter{w: w}
		for i := 0; i < 5; i++ {
			sw.writeLine(`data: {"choices":[{"text":"x"}]}`)
			select {
			case <-r.Context().Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
		}
		sw.writeLine("data: [DONE]")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	b, err := newServerProvider(t, ts.URL, 250*time.Millisecond).Load(testCtx(t), LoadSpec{ModelID: "m"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer b.Close()

	if _, err := b.Generate(context.Background(), "hello", DefaultGenerationParams()); err == nil {
		t.Fatalf("expected deadline error due to short request timeout")
	}
}

func TestLlamaProviderStub_WithoutTag(t *testing.T) {
	if llamaTagged {
		t.Skip("built with llama tag")
	}
	_, err := NewLlamaProvider(LlamaOptions{}).Load(testCtx(t), LoadSpec{ModelID: "m"})
	if !IsDependencyUnavailable(err) {
		t.Fatalf("expected dependency unavailable, got %v", err)
	}
}
