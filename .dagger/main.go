// Spyre CI
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
package main

import (
	"context"

	"dagger/spyre/internal/dagger"
)

// Spyre is the main module for the spyre CI pipeline
type Spyre struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Spyre CI module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", "build", "tmp", ".spyre", ".env"]
	source *dagger.Directory,
) *Spyre {
	return &Spyre{
		Source: source,
	}
}

// goContainer returns a Go container with the project source mounted and
// the module and build caches attached. spyre is pure Go, so CGO is off.
func (s *Spyre) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-alpine").
		WithEnvVariable("CGO_ENABLED", "0").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", s.Source)
}

// Test runs the spyre unit tests via "go test"
//
// +check
func (s *Spyre) Test(ctx context.Context) (string, error) {
	return s.goContainer().
		WithExec([]string{"go", "test", "./..."}).
		Stdout(ctx)
}

// Vet runs "go vet" over every package.
//
// +check
func (s *Spyre) Vet(ctx context.Context) (string, error) {
	return s.goContainer().
		WithExec([]string{"go", "vet", "./..."}).
		Stdout(ctx)
}
