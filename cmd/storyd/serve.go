package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"storyd/internal/config"
	"storyd/internal/device"
	"storyd/internal/httpapi"
	"storyd/internal/inference"
	"storyd/internal/manager"
	"storyd/internal/registry"
	"storyd/internal/service"
)

// app is the fully wired process: model manager, worker pool, device
// monitor and HTTP handler.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	mgr      *manager.Manager
	pool     *inference.Pool
	monitor  *device.Monitor
	executor *inference.Executor
	handler  http.Handler
}

func newProvider(cfg config.Config, log zerolog.Logger) manager.Provider {
	switch cfg.Provider {
	case config.ProviderLlama:
		return manager.NewLlamaProvider(manager.LlamaOptions{
			ModelPath: registry.Resolver(cfg.ModelsDir),
			CtxSize:   cfg.CtxSize,
			Threads:   cfg.Threads,
			GPULayers: cfg.GPULayers,
		})
	default:
		return manager.NewLlamaServerProvider(manager.LlamaServerOptions{
			BaseURL:        cfg.ProviderURL,
			Device:         cfg.Device,
			RequestTimeout: cfg.Deadline(),
			Logger:         log,
		})
	}
}

func newManager(cfg config.Config, log zerolog.Logger) *manager.Manager {
	return manager.NewWithConfig(manager.ManagerConfig{
		Provider:       newProvider(cfg, log),
		ModelID:        cfg.ModelID,
		CredentialEnvs: cfg.CredentialEnvs(),
		// The in-process provider reads local files and needs no token.
		AllowAnonymous: cfg.AllowAnonymous || cfg.Provider == config.ProviderLlama,
		LoadTimeout:    cfg.LoadTimeout(),
		Logger:         log,
		Publisher:      logPublisher{log: log},
	})
}

func generationParams(cfg config.Config) manager.GenerationParams {
	return manager.GenerationParams{
		MaxNewTokens:      cfg.MaxNewTokens,
		Temperature:       float32(cfg.Temperature),
		TopK:              cfg.TopK,
		TopP:              float32(cfg.TopP),
		RepetitionPenalty: float32(cfg.RepetitionPenalty),
		PromptMaxTokens:   cfg.PromptMaxTokens,
	}
}

func newApp(cfg config.Config, log zerolog.Logger, prober device.Prober) *app {
	a := &app{cfg: cfg, log: log}
	a.mgr = newManager(cfg, log)
	a.pool = inference.NewPool(inference.PoolConfig{
		Workers:    cfg.Workers,
		QueueDepth: cfg.QueueDepth,
		QueueWait:  cfg.QueueWait(),
		Logger:     log,
	})
	a.monitor = device.NewMonitor(prober, device.MonitorConfig{
		Interval: cfg.DeviceProbeInterval(),
		Logger:   log,
	})
	a.executor = inference.NewExecutor(a.mgr, a.pool, inference.Config{
		Params:   generationParams(cfg),
		Deadline: cfg.Deadline(),
		Logger:   log,
	})
	svc := service.New(a.mgr, a.executor, a.monitor, log)

	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetReloadTimeout(cfg.LoadTimeout())
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)
	a.handler = httpapi.NewMux(svc)
	return a
}

// start launches background work tied to ctx: device probing and, when
// configured, the initial model load.
func (a *app) start(ctx context.Context) {
	httpapi.SetBaseContext(ctx)
	a.monitor.Start(ctx)
	if !a.cfg.LoadOnStart {
		a.log.Info().Msg("model load on start disabled; serving fallback until /reload-model")
		return
	}
	done := a.mgr.LoadAsync(ctx)
	go func() {
		if err := <-done; err != nil {
			a.log.Warn().Err(err).Msg("initial model load failed; serving fallback stories")
			return
		}
		a.log.Info().Str("model", a.cfg.ModelID).Dur("uptime", a.mgr.Uptime()).Msg("model ready")
	}()
}

// shutdown drains workers and releases the model. The monitor stops last so
// status stays answerable while draining.
func (a *app) shutdown(ctx context.Context) {
	if err := a.pool.Close(ctx); err != nil {
		a.log.Warn().Err(err).Msg("worker pool did not drain")
	}
	if err := a.mgr.Close(); err != nil {
		a.log.Warn().Err(err).Msg("model close")
	}
	a.monitor.Stop()
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	baseCtx, cancelBase := context.WithCancel(ctx)
	defer cancelBase()

	a := newApp(cfg, log, device.NvidiaSMI{})
	a.start(baseCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("model", cfg.ModelID).Str("provider", cfg.Provider).Msg("storyd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case serveErr = <-errCh:
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	// In-flight generations observe the canceled base context and fall back.
	cancelBase()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	a.shutdown(shCtx)
	return serveErr
}

// logPublisher writes manager lifecycle events to the log.
type logPublisher struct {
	log zerolog.Logger
}

func (p logPublisher) Publish(e manager.Event) {
	ev := p.log.Debug().Str("event", e.Name).Str("model", e.ModelID)
	if len(e.Fields) > 0 {
		ev = ev.Fields(e.Fields)
	}
	ev.Msg("model event")
}
