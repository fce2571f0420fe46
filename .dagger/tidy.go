package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/spyre/internal/dagger"
)

// CheckModules fails when go.mod/go.sum need tidying or a downloaded module
// does not match its checksum.
//
// +check
func (s *Spyre) CheckModules(ctx context.Context) (string, error) {
	ctr := s.goContainer()

	if _, err := ctr.WithExec([]string{"go", "mod", "tidy", "-diff"}).Stdout(ctx); err != nil {
		var e *dagger.ExecError
		if errors.As(err, &e) {
			return "", fmt.Errorf("go.mod or go.sum are not tidy, run 'go mod tidy':\n\n%s", e.Stdout)
		}
		return "", fmt.Errorf("running go mod tidy: %w", err)
	}

	out, err := ctr.WithExec([]string{"go", "mod", "verify"}).Stdout(ctx)
	if err != nil {
		return "", fmt.Errorf("verifying modules: %w", err)
	}

	return out, nil
}
