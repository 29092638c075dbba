// Package system starts and stops the server's long-running background
// components in a deterministic order.
package system

import "context"

// Service is a background component with an explicit lifecycle, such as the
// snapshot flusher. Start must return promptly, spawning goroutines for any
// ongoing work; Stop blocks until that work has wound down or ctx expires.
// Name identifies the service in manager errors and must be unique.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
