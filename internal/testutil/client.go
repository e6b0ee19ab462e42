package testutil

import (
	"context"
)

// InMemoryTxClient implements postgres.IClient for tests. The in-memory
// stores serialize on their own mutexes, so WithTx just runs the function.
type InMemoryTxClient struct{}

// NewInMemoryTxClient creates a new pass-through transaction client
func NewInMemoryTxClient() *InMemoryTxClient {
	return &InMemoryTxClient{}
}

func (c *InMemoryTxClient) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
