package manager

import "context"

// LoadAsync starts Load in the background and returns a channel that
// receives its result. Callers can poll Status to observe transitions while
// the load runs; the service keeps answering with fallback content.
func (m *Manager) LoadAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- m.Load(ctx)
	}()
	return done
}
