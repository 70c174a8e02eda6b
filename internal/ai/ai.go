package ai

import "context"

// Completer turns a rendered prompt into a text completion.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder maps text to a fixed-dimension vector. Implementations must be
// deterministic for a given ModelVersion.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	ModelVersion() string
}
