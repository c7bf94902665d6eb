package types

// Model is a GGUF weights file discovered on disk for the in-process provider.
type Model struct {
	// Stable identifier derived from the file name.
	// example: gemma-3-270m-it-Q4_K_M
	ID string `json:"id" yaml:"id" example:"gemma-3-270m-it-Q4_K_M"`
	// Human-friendly name.
	// example: gemma 3 270m it (Q4_K_M)
	Name string `json:"name" yaml:"name" example:"gemma 3 270m it (Q4_K_M)"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/gemma-3-270m-it-Q4_K_M.gguf
	Path string `json:"path" yaml:"path" example:"/home/user/models/gemma-3-270m-it-Q4_K_M.gguf"`
	// Quantization level or variant string.
	// example: Q4_K_M
	Quant string `json:"quant" yaml:"quant" example:"Q4_K_M"`
	// Optional family (e.g., gemma, llama).
	// example: gemma
	Family string `json:"family,omitempty" yaml:"family,omitempty" example:"gemma"`
}
