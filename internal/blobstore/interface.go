package blobstore

import (
	"context"
	"io"
)

// Storage is the local byte-storage surface used by the replica service.
// Names are relative to the storage root; paths are absolute filesystem paths.
type Storage interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Stage(ctx context.Context) (*Staged, error)
	Remove(ctx context.Context, path string) error
	Root() string
}

var _ Storage = (*LocalStorage)(nil)
