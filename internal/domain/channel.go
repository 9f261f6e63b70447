package domain

import "context"

// Channel is the interface for user-facing front-ends (CLI, Web, Telegram).
// Start blocks until the context is cancelled or the channel fails.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}
