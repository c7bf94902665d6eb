package manager

import "strings"

// SanityReport describes whether the prerequisites for a load are present.
type SanityReport struct {
	ModelID         string `json:"model_id"`
	ProviderSet     bool   `json:"provider_set"`
	CredentialFound bool   `json:"credential_found"`
	CredentialEnv   string `json:"credential_env,omitempty"`
	Error           string `json:"error,omitempty"`
}

// SanityCheck reports load prerequisites without touching the backend.
// It does not mutate state and is safe to call at any time.
func (m *Manager) SanityCheck() SanityReport {
	r := SanityReport{ModelID: m.modelID, ProviderSet: m.provider != nil}
	_, env, ok := m.credential()
	r.CredentialFound = ok
	r.CredentialEnv = env
	switch {
	case !r.ProviderSet:
		r.Error = "no model provider configured"
	case !ok && !m.allowAnon:
		r.Error = "credential not set (checked " + strings.Join(m.credentialEnvs, ", ") + ")"
	case strings.TrimSpace(m.modelID) == "":
		r.Error = "model id is empty"
	}
	return r
}
