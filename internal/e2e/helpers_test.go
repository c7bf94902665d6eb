package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"storyd/internal/device"
	"storyd/internal/httpapi"
	"storyd/internal/inference"
	"storyd/internal/manager"
	"storyd/internal/service"
)

// stubBackend answers with a fixed story. When gate is non-nil, Generate
// blocks until it is closed (or ctx ends, unless ignoreCtx).
type stubBackend struct {
	text      string
	err       error
	gate      chan struct{}
	ignoreCtx bool
	entered   chan struct{}
	closed    atomic.Bool
}

func (b *stubBackend) Generate(ctx context.Context, prompt string, _ manager.GenerationParams) (manager.Completion, error) {
	if b.entered != nil {
		select {
		case b.entered <- struct{}{}:
		default:
		}
	}
	if b.gate != nil {
		if b.ignoreCtx {
			<-b.gate
		} else {
			select {
			case <-b.gate:
			case <-ctx.Done():
				return manager.Completion{}, ctx.Err()
			}
		}
	}
	if b.err != nil {
		return manager.Completion{}, b.err
	}
	return manager.Completion{Text: b.text}, nil
}

func (b *stubBackend) Device() string { return "cuda" }

func (b *stubBackend) Close() error {
	b.closed.Store(true)
	return nil
}

// stubProvider hands out backends in order, repeating the last one.
type stubProvider struct {
	mu       sync.Mutex
	backends []*stubBackend
	loads    int
	failNext error
}

func (p *stubProvider) Load(ctx context.Context, spec manager.LoadSpec) (manager.Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext != nil {
		err := p.failNext
		p.failNext = nil
		return nil, err
	}
	i := p.loads
	if i >= len(p.backends) {
		i = len(p.backends) - 1
	}
	p.loads++
	return p.backends[i], nil
}

func (p *stubProvider) failOnce(err error) {
	p.mu.Lock()
	p.failNext = err
	p.mu.Unlock()
}

type gpuProbe struct{ info device.Info }

func (g gpuProbe) Probe(context.Context) (device.Info, error) {
	if !g.info.CUDAAvailable {
		return device.Info{}, device.ErrNoGPU
	}
	return g.info, nil
}

type stack struct {
	srv  *httptest.Server
	mgr  *manager.Manager
	pool *inference.Pool
	mon  *device.Monitor
}

type stackOpts struct {
	deadline time.Duration
	workers  int
	gpu      device.Info
}

func newStack(t *testing.T, p manager.Provider, o stackOpts) *stack {
	t.Helper()
	log := zerolog.Nop()
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Provider:       p,
		ModelID:        "google/gemma-3-270m-it",
		AllowAnonymous: true,
		Logger:         log,
	})
	workers := o.workers
	if workers == 0 {
		workers = 2
	}
	pool := inference.NewPool(inference.PoolConfig{Workers: workers, QueueWait: time.Second, Logger: log})
	exec := inference.NewExecutor(mgr, pool, inference.Config{Deadline: o.deadline, Logger: log})
	mon := device.NewMonitor(gpuProbe{info: o.gpu}, device.MonitorConfig{Interval: time.Hour, Logger: log})
	mon.Refresh(context.Background())

	httpapi.SetLogger(log)
	httpapi.SetBaseContext(nil)
	srv := httptest.NewServer(httpapi.NewMux(service.New(mgr, exec, mon, log)))
	s := &stack{srv: srv, mgr: mgr, pool: pool, mon: mon}
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Close(ctx)
		_ = mgr.Close()
	})
	return s
}

func (s *stack) load(t *testing.T) {
	t.Helper()
	if err := s.mgr.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPost(t *testing.T, url, contentType string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("json: %v (body=%s)", err, b)
	}
	return v
}

var errBoom = errors.New("boom")
