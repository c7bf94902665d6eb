package inference

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"storyd/internal/manager"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type genFunc func(ctx context.Context, prompt string) (string, error)

// scriptedBackend delegates Generate to a test-provided func.
type scriptedBackend struct {
	gen    genFunc
	closed atomic.Int32
}

func (b *scriptedBackend) Generate(ctx context.Context, prompt string, _ manager.GenerationParams) (manager.Completion, error) {
	text, err := b.gen(ctx, prompt)
	return manager.Completion{Text: text}, err
}

func (b *scriptedBackend) Device() string { return "cuda" }

func (b *scriptedBackend) Close() error {
	b.closed.Add(1)
	return nil
}

type scriptedProvider struct {
	mu       sync.Mutex
	gen      genFunc
	backends []*scriptedBackend
}

func (p *scriptedProvider) Load(ctx context.Context, _ manager.LoadSpec) (manager.Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := &scriptedBackend{gen: p.gen}
	p.backends = append(p.backends, b)
	return b, nil
}

func (p *scriptedProvider) backend(i int) *scriptedBackend {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backends[i]
}

func newManager(t *testing.T, gen genFunc) (*manager.Manager, *scriptedProvider) {
	t.Helper()
	p := &scriptedProvider{gen: gen}
	m := manager.NewWithConfig(manager.ManagerConfig{
		Provider: p,
		ModelID:  "google/gemma-3-270m-it",
		LookupEnv: func(k string) (string, bool) {
			return "tok", k == "MODEL_ACCESS_TOKEN"
		},
		Logger: zerolog.Nop(),
	})
	t.Cleanup(func() { _ = m.Close() })
	return m, p
}

func newReadyManager(t *testing.T, gen genFunc) (*manager.Manager, *scriptedProvider) {
	t.Helper()
	m, p := newManager(t, gen)
	require.NoError(t, m.Load(context.Background()))
	return m, p
}

func newExecutor(t *testing.T, acq Acquirer, pcfg PoolConfig, deadline time.Duration) *Executor {
	t.Helper()
	pool := NewPool(pcfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, pool.Close(ctx))
	})
	return NewExecutor(acq, pool, Config{Deadline: deadline, Logger: zerolog.Nop()})
}

// echoStory answers like a chat model that echoes its prompt.
func echoStory(story string) genFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		return prompt + "\n<start_of_turn>model\n" + story + "<end_of_turn>", nil
	}
}
