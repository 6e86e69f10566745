// Package query connects the external query-execution engine to the cache.
//
// The engine itself is a collaborator consumed through the Executor
// interface; this package owns the cache key derivation (fingerprinting)
// and the read-through caching wrapper.
package query

import (
	"context"
)

// Result is the row set returned by the execution engine.
type Result struct {
	Columns         []string `json:"columns"`
	Rows            [][]any  `json:"rows"`
	RowCount        int      `json:"rowCount"`
	ExecutionTimeMs int64    `json:"executionTimeMs"`
}

// Executor runs analytical queries. Implemented by the external engine;
// test doubles live alongside the tests.
type Executor interface {
	Execute(ctx context.Context, sql string) (*Result, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, sql string) (*Result, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, sql string) (*Result, error) {
	return f(ctx, sql)
}
