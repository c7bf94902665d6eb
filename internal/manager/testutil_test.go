package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeBackend is an in-memory backend used for tests.
type fakeBackend struct {
	device string
	closed atomic.Int32
}

func (b *fakeBackend) Generate(ctx context.Context, prompt string, _ GenerationParams) (Completion, error) {
	if err := ctx.Err(); err != nil {
		return Completion{}, err
	}
	return Completion{Text: "story for " + prompt, FinishReason: "stop"}, nil
}

func (b *fakeBackend) Device() string { return b.device }

func (b *fakeBackend) Close() error {
	b.closed.Add(1)
	return nil
}

// fakeProvider hands out fakeBackends. Load blocks on gate when set, and
// ignores ctx if ignoreCtx is true.
type fakeProvider struct {
	mu        sync.Mutex
	err       error
	panicMsg  string
	gate      chan struct{}
	ignoreCtx bool
	loads     int
	creds     []string
	backends  []*fakeBackend

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (p *fakeProvider) Load(ctx context.Context, spec LoadSpec) (Backend, error) {
	n := p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for {
		m := p.maxInflight.Load()
		if n <= m || p.maxInflight.CompareAndSwap(m, n) {
			break
		}
	}

	p.mu.Lock()
	p.loads++
	p.creds = append(p.creds, spec.Credential)
	gate, err, panicMsg, ignore := p.gate, p.err, p.panicMsg, p.ignoreCtx
	p.mu.Unlock()

	if gate != nil {
		if ignore {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if panicMsg != "" {
		panic(panicMsg)
	}
	if err != nil {
		return nil, err
	}
	b := &fakeBackend{device: "cuda"}
	p.mu.Lock()
	p.backends = append(p.backends, b)
	p.mu.Unlock()
	return b, nil
}

func (p *fakeProvider) set(fn func(p *fakeProvider)) {
	p.mu.Lock()
	fn(p)
	p.mu.Unlock()
}

func (p *fakeProvider) allBackends() []*fakeBackend {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*fakeBackend(nil), p.backends...)
}

func envWith(vals map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vals[k]
		return v, ok
	}
}

// newTestManager builds a Manager with a credential set and a memory publisher.
func newTestManager(t *testing.T, p *fakeProvider) (*Manager, *MemoryPublisher) {
	t.Helper()
	pub := NewMemoryPublisher(0)
	m := NewWithConfig(ManagerConfig{
		Provider:    p,
		ModelID:     "google/gemma-3-270m-it",
		LookupEnv:   envWith(map[string]string{"MODEL_ACCESS_TOKEN": "tok"}),
		LoadTimeout: 2 * time.Second,
		Logger:      zerolog.Nop(),
		Publisher:   pub,
	})
	return m, pub
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}
