package embedding

import "context"

type Embedder interface {
	// Embed returns a 768-dim vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)
	Close() error
}
