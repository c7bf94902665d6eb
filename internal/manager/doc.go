// Package manager owns the lifecycle of the story model backend.
//
//   - manager.go: Manager type, Acquire, simple getters.
//   - config.go: ManagerConfig and defaults; NewWithConfig applies them.
//   - types.go: State, Status and the reference-counted Handle.
//   - provider.go: Provider/Backend seam and generation parameters.
//   - lifecycle.go: Load, Unload, Reload, Close.
//   - status.go: non-blocking Status.
//   - events.go: lifecycle events and publishers.
//   - errors.go: typed config/load errors.
//
// Build tags:
//
//   - `-tags=llama` enables the in-process go-llama.cpp provider
//     (adapter_llama.go, llama_cgo.go). Without it a stub reports the
//     dependency as unavailable.
//   - The llama-server HTTP provider (adapter_llama_server.go) is always built.
//
// Callers pin a backend with Acquire and release it when done; a reload
// never closes a backend that is still pinned.
package manager
