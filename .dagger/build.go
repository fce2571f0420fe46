package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/spyre/internal/dagger"
)

const versionPkg = "github.com/papercomputeco/spyre/pkg/utils"

// Build and return directory of spyre binaries for every supported platform
func (s *Spyre) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	gooses := []string{"linux", "darwin"}
	goarches := []string{"amd64", "arm64"}

	outputs := dag.Directory()
	golang := s.goContainer()

	for _, goos := range gooses {
		for _, goarch := range goarches {
			path := fmt.Sprintf("%s/%s/", goos, goarch)

			build := golang.
				WithEnvVariable("GOOS", goos).
				WithEnvVariable("GOARCH", goarch).
				WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/spyre"})

			outputs = outputs.WithDirectory(path, build.Directory(path))
		}
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (s *Spyre) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X '%s.Version=%s'", versionPkg, version),
		fmt.Sprintf("-X '%s.Sha=%s'", versionPkg, commit),
		fmt.Sprintf("-X '%s.Buildtime=%s'", versionPkg, time.Now().UTC().Format(time.RFC3339)),
	}

	return s.Build(ctx, strings.Join(ldflags, " "))
}

// Image packages the linux/amd64 binary into a minimal container that runs
// the forwarding server.
func (s *Spyre) Image(
	ctx context.Context,

	// Version string of build
	// +optional
	// +default="dev"
	version string,
) *dagger.Container {
	bin := s.BuildRelease(ctx, version, "HEAD").File("linux/amd64/spyre")

	return dag.Container().
		From("alpine:3.20").
		WithFile("/usr/local/bin/spyre", bin).
		WithExposedPort(5001).
		WithEntrypoint([]string{"spyre"}).
		WithDefaultArgs([]string{"serve"})
}
