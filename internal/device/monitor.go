package device

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"
)

const (
	gpuKey              = "gpu"
	defaultInterval     = 10 * time.Second
	defaultProbeTimeout = 3 * time.Second
)

// MonitorConfig tunes probing cadence.
type MonitorConfig struct {
	Interval     time.Duration
	ProbeTimeout time.Duration
	Logger       zerolog.Logger
}

// Monitor keeps the latest probe result in a TTL cache. Entries expire after
// three missed intervals, at which point Snapshot reports no GPU.
type Monitor struct {
	prober       Prober
	cache        *ttlcache.Cache[string, Info]
	interval     time.Duration
	probeTimeout time.Duration
	log          zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor builds a Monitor around p.
func NewMonitor(p Prober, cfg MonitorConfig) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	c := ttlcache.New[string, Info](
		ttlcache.WithTTL[string, Info](3*interval),
		ttlcache.WithDisableTouchOnHit[string, Info](),
	)
	return &Monitor{
		prober:       p,
		cache:        c,
		interval:     interval,
		probeTimeout: timeout,
		log:          cfg.Logger.With().Str("component", "device").Logger(),
	}
}

// Start launches the expiration loop and the background prober. The first
// probe runs immediately. Calling Start twice is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		m.cache.Start()
	}()
	go func() {
		defer m.wg.Done()
		m.loop(ctx)
	}()
}

func (m *Monitor) loop(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		m.Refresh(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Refresh probes synchronously and stores the result. A failed probe is
// stored as "no GPU".
func (m *Monitor) Refresh(ctx context.Context) Info {
	pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	info, err := m.prober.Probe(pctx)
	if err != nil {
		m.log.Debug().Err(err).Msg("gpu probe failed")
		info = Info{}
	}
	info.ProbedAt = time.Now()
	m.cache.Set(gpuKey, info, ttlcache.DefaultTTL)
	return info
}

// Snapshot returns the cached probe result without blocking on a probe.
func (m *Monitor) Snapshot() Info {
	item := m.cache.Get(gpuKey)
	if item == nil {
		return Info{}
	}
	return item.Value()
}

// Stop halts background work and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	m.cache.Stop()
	m.wg.Wait()
}
