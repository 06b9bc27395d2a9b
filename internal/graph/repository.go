package graph

import (
	"context"
)

// Repository provides storage for build graphs.
type Repository interface {
	// StoreGraph persists the entire build graph.
	StoreGraph(ctx context.Context, g *Graph) error
	// LoadGraph retrieves the stored graph of one target.
	LoadGraph(ctx context.Context, target string) (*Graph, error)
	// QueryProducers returns the tasks that produce the given file.
	QueryProducers(ctx context.Context, path string) ([]string, error)
	// Close releases resources.
	Close(ctx context.Context) error
}
