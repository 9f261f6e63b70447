package domain

import "context"

// Narrator turns a fully composed prompt into the natural-language answer
// shown to the user. Implementations perform exactly one synchronous
// completion call; no retries, no streaming.
type Narrator interface {
	Narrate(ctx context.Context, prompt string) (string, error)
	Name() string
	Healthy(ctx context.Context) error
}
