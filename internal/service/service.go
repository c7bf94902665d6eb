// Package service composes the model manager, the inference executor and
// the device monitor into the operations exposed over HTTP.
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"storyd/internal/device"
	"storyd/internal/inference"
	"storyd/internal/manager"
	"storyd/pkg/types"
)

// RootMessage is returned by GET /.
const RootMessage = "Story generation API is running!"

const none = "None"

// Lifecycle is the subset of *manager.Manager the service needs.
type Lifecycle interface {
	Status() manager.Status
	Reload(ctx context.Context) error
	Ready() bool
}

// Generator produces story results. *inference.Executor satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) inference.Result
}

// Devices reports cached device information. *device.Monitor satisfies it.
type Devices interface {
	Snapshot() device.Info
}

// Service implements httpapi.Service.
type Service struct {
	mgr Lifecycle
	gen Generator
	dev Devices
	now func() time.Time
	log zerolog.Logger
}

// New wires a Service. dev may be nil when no probing is configured.
func New(mgr Lifecycle, gen Generator, dev Devices, log zerolog.Logger) *Service {
	return &Service{
		mgr: mgr,
		gen: gen,
		dev: dev,
		now: time.Now,
		log: log.With().Str("component", "service").Logger(),
	}
}

func (s *Service) device() device.Info {
	if s.dev == nil {
		return device.Info{}
	}
	return s.dev.Snapshot()
}

// Root returns the banner payload.
func (s *Service) Root() types.RootResponse { return types.RootResponse{Message: RootMessage} }

// Ready reports whether the model can serve requests.
func (s *Service) Ready() bool { return s.mgr.Ready() }

// Health never blocks on model work.
func (s *Service) Health() types.HealthResponse {
	now := s.now()
	return types.HealthResponse{
		Status:        "healthy",
		ModelLoaded:   s.mgr.Ready(),
		CUDAAvailable: s.device().CUDAAvailable,
		Timestamp:     float64(now.UnixNano()) / 1e9,
	}
}

// ModelStatus reports lifecycle and device details.
func (s *Service) ModelStatus() types.ModelStatusResponse {
	st := s.mgr.Status()
	dev := s.device()
	resp := types.ModelStatusResponse{
		ModelLoaded:   st.State == manager.StateReady,
		ModelName:     none,
		Device:        none,
		CUDAAvailable: dev.CUDAAvailable,
		State:         string(st.State),
		LastError:     st.LastError,
	}
	if dev.CUDAAvailable {
		resp.MemoryAllocated = dev.MemoryAllocated
	}
	if resp.ModelLoaded {
		resp.ModelName = st.ModelID
		if st.Device != "" {
			resp.Device = st.Device
		}
	}
	return resp
}

// GenerateStory always answers; failures degrade to fallback content.
func (s *Service) GenerateStory(ctx context.Context, req types.GenerateRequest) types.GenerateResponse {
	r := s.gen.Generate(ctx, req.Prompt)
	return types.GenerateResponse{
		Story:     r.Text,
		Status:    r.Status,
		ModelUsed: r.ModelUsed,
		Note:      r.Note,
		Error:     r.Error,
	}
}

// ReloadModel unloads and loads the model, reporting the outcome.
func (s *Service) ReloadModel(ctx context.Context) types.ReloadResponse {
	if err := s.mgr.Reload(ctx); err != nil {
		s.log.Error().Err(err).Msg("reload failed")
		return types.ReloadResponse{
			Status:      "error",
			ModelLoaded: false,
			Message:     "Failed to reload model: " + err.Error(),
		}
	}
	return types.ReloadResponse{
		Status:      "success",
		ModelLoaded: s.mgr.Ready(),
		Message:     "Model reloaded successfully",
	}
}
