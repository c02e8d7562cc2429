// Package storage provides a small local-filesystem sink used to persist
// debug artifacts a saturation run produces — iteration traces, extraction
// snapshots — never e-graph state itself (spec.md §1 rules out durable
// storage of the graph).
package storage

import (
	"context"
	"fmt"
	"io"
)

// Storage is the write/read surface a debug sink needs. It mirrors the
// host project's object-storage interface shape, trimmed to the local
// backend: there is no remote object store in this domain, only a
// directory of trace artifacts a developer inspects after a run.
type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader) error
	UploadFile(ctx context.Context, key string, localPath string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	DownloadFile(ctx context.Context, key string, localPath string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	GetURL(key string) string
}

// NewStorage creates a LocalStorage rooted at basePath. A dedicated
// constructor rather than a factory keyed on a config.StorageConfig
// type, since local disk is this domain's only backend.
func NewStorage(basePath string) (Storage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("local storage path is required")
	}
	return NewLocalStorage(basePath)
}
