package manager

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultLoadTimeout = 10 * time.Minute
)

// DefaultCredentialEnvs are consulted in order when ManagerConfig.CredentialEnvs is empty.
var DefaultCredentialEnvs = []string{"MODEL_ACCESS_TOKEN", "HUGGING_FACE_TOKEN"}

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Provider Provider
	ModelID  string
	// CredentialEnvs lists environment variables holding the model access
	// credential; the first non-empty one wins.
	CredentialEnvs []string
	// AllowAnonymous skips the credential requirement (local providers).
	AllowAnonymous bool
	// LookupEnv overrides os.LookupEnv (tests).
	LookupEnv   func(string) (string, bool)
	LoadTimeout time.Duration
	Logger      zerolog.Logger
	Publisher   EventPublisher
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:          StateUnloaded,
		provider:       cfg.Provider,
		modelID:        cfg.ModelID,
		credentialEnvs: cfg.CredentialEnvs,
		allowAnon:      cfg.AllowAnonymous,
		lookupEnv:      cfg.LookupEnv,
		loadTimeout:    cfg.LoadTimeout,
		log:            cfg.Logger.With().Str("component", "manager").Logger(),
		publisher:      cfg.Publisher,
	}
	// Apply defaults if unset
	if len(m.credentialEnvs) == 0 {
		m.credentialEnvs = DefaultCredentialEnvs
	}
	if m.lookupEnv == nil {
		m.lookupEnv = os.LookupEnv
	}
	if m.loadTimeout <= 0 {
		m.loadTimeout = defaultLoadTimeout
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	m.startTime = time.Now()
	setStateGauge(StateUnloaded)
	return m
}
