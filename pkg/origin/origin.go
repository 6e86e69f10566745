// Package origin defines the remote dataset source consumed by
// refresh-dataset sync tasks.
//
// An origin is read-only from this side: datasets are fetched into the
// datasets partition and revalidated against origin metadata; nothing is
// ever written back.
package origin

import (
	"context"
	"errors"
	"time"
)

// ErrDatasetNotFound is returned when the origin has no dataset under the
// requested name.
var ErrDatasetNotFound = errors.New("dataset not found at origin")

// DatasetInfo describes one dataset available at the origin.
type DatasetInfo struct {
	// Name is the dataset's key, identical to its path in the datasets
	// partition.
	Name string

	// Size is the dataset's byte length at the origin.
	Size int64

	// LastModified is the origin-side modification time.
	LastModified time.Time

	// ETag is the origin's content version tag, stored as entry metadata
	// and compared during revalidation. Empty when the origin has none.
	ETag string
}

// Origin is a remote dataset source.
type Origin interface {
	// Fetch downloads a dataset's full payload and its metadata.
	// Returns ErrDatasetNotFound when the name is unknown.
	Fetch(ctx context.Context, name string) ([]byte, DatasetInfo, error)

	// List enumerates the datasets available at the origin.
	List(ctx context.Context) ([]DatasetInfo, error)
}
