package types

// RootResponse is returned by GET /.
type RootResponse struct {
	// example: Story generation API is running
	Message string `json:"message" example:"Story generation API is running"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// Always "healthy" while the process serves requests.
	// example: healthy
	Status string `json:"status" example:"healthy"`
	// Whether a model handle is installed and ready.
	// example: true
	ModelLoaded bool `json:"model_loaded" example:"true"`
	// Whether a CUDA device was detected by the last probe.
	// example: false
	CUDAAvailable bool `json:"cuda_available" example:"false"`
	// Server time in fractional unix seconds.
	// example: 1700000000.123
	Timestamp float64 `json:"timestamp" example:"1700000000.123"`
}

// GenerateRequest is the payload of POST /generate-story.
type GenerateRequest struct {
	// Subject of the story; must contain non-whitespace characters.
	// example: a hand-thrown clay teapot
	Prompt string `json:"prompt" example:"a hand-thrown clay teapot"`
}

// GenerateResponse is returned by POST /generate-story.
type GenerateResponse struct {
	// Generated or fallback story text, or the validation message.
	Story string `json:"story"`
	// "success" unless the request was invalid.
	// example: success
	Status string `json:"status" example:"success"`
	// True only when the text came from the model.
	// example: true
	ModelUsed bool `json:"model_used" example:"true"`
	// Set when the model missed its time budget.
	// example: generation exceeded time budget
	Note string `json:"note,omitempty" example:"generation exceeded time budget"`
	// Set when the model attempt failed and fallback text was returned.
	Error string `json:"error,omitempty"`
}

// ReloadResponse is returned by POST /reload-model.
type ReloadResponse struct {
	// example: success
	Status string `json:"status" example:"success"`
	// example: true
	ModelLoaded bool `json:"model_loaded" example:"true"`
	// example: Model reloaded successfully
	Message string `json:"message" example:"Model reloaded successfully"`
}

// ModelStatusResponse is returned by GET /model-status.
type ModelStatusResponse struct {
	// example: true
	ModelLoaded bool `json:"model_loaded" example:"true"`
	// Model identifier, "None" unless ready.
	// example: google/gemma-3-270m-it
	ModelName string `json:"model_name" example:"google/gemma-3-270m-it"`
	// Device descriptor, "None" unless ready.
	// example: cuda
	Device string `json:"device" example:"cuda"`
	// example: true
	CUDAAvailable bool `json:"cuda_available" example:"true"`
	// Bytes allocated on the GPU, 0 when not applicable.
	// example: 1610612736
	MemoryAllocated uint64 `json:"memory_allocated" example:"1610612736"`
	// Lifecycle state: unloaded, loading, ready or failed.
	// example: ready
	State string `json:"state" example:"ready"`
	// Message of the last failed load, if any.
	LastError string `json:"last_error,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
