package retrieval

import (
	"context"
	"fmt"

	"github.com/kalambet/coursechat/internal/course"
	"github.com/kalambet/coursechat/internal/engine"
	"golang.org/x/sync/errgroup"
)

// embedParallelism bounds concurrent embedding requests against the local
// engine so document ingestion does not saturate it.
const embedParallelism = 4

// Embedder turns course text into vectors using an engine-hosted model.
type Embedder struct {
	engine engine.Engine
	model  string
}

// NewEmbedder creates an Embedder using the given Engine and model name.
func NewEmbedder(e engine.Engine, model string) *Embedder {
	return &Embedder{engine: e, model: model}
}

// Embed returns the vector for a single text. Used for search queries and
// catalog titles.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.engine.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return vec, nil
}

// EmbedChunks returns one vector per chunk, embedding contents
// concurrently while preserving document order. Returns nil (not error)
// for empty/nil input.
func (e *Embedder) EmbedChunks(ctx context.Context, chunks []course.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	vecs := make([][]float32, len(chunks))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(embedParallelism)

	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			vec, err := e.engine.Embed(gCtx, e.model, c.Content)
			if err != nil {
				return fmt.Errorf("embedding chunk %d of %q: %w", c.Index, c.CourseTitle, err)
			}
			vecs[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vecs, nil
}
