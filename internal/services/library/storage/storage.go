// Package storage defines persistence contracts for the build library.
package storage

import (
	"context"
	"time"

	apperrors "github.com/mephi42/gopob/internal/platform/errors"
)

// ErrNotFound indicates a requested build is missing. It matches any
// NOT_FOUND domain error under errors.Is.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "build not found")

// StoredBuild is one named build saved as engine XML.
type StoredBuild struct {
	Name      string
	XML       []byte
	UpdatedAt time.Time
}

// BuildStore persists named builds.
type BuildStore interface {
	// Put inserts or replaces the build with the same name.
	Put(ctx context.Context, build StoredBuild) error
	Get(ctx context.Context, name string) (StoredBuild, error)
	// List returns every build ordered by name, without XML.
	List(ctx context.Context) ([]StoredBuild, error)
	Delete(ctx context.Context, name string) error
}
