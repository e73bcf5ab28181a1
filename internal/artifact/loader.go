package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/wasm-jit-loader/internal/wasm"
)

// Loader handles loading artifacts from disk.
type Loader struct {
	runtime      *wasm.Runtime
	moduleLoader *wasm.ModuleLoader
	logger       *zap.Logger
}

// NewLoader creates a new artifact loader.
func NewLoader(runtime *wasm.Runtime, logger *zap.Logger) *Loader {
	return &Loader{
		runtime:      runtime,
		moduleLoader: wasm.NewModuleLoader(runtime, logger),
		logger:       logger.With(zap.String("component", "artifact-loader")),
	}
}

// LoadArtifact loads a single artifact from a directory and compiles its
// embedding runtime. The compiled module is cached under the artifact name.
func (l *Loader) LoadArtifact(ctx context.Context, dir string) (*Artifact, error) {
	l.logger.Debug("Loading artifact", zap.String("dir", dir))

	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loading artifact",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.String("abi", manifest.Runtime.ABI),
	)

	a := &Artifact{Manifest: manifest, LoadedAt: time.Now()}
	if err := l.Compile(ctx, a); err != nil {
		return nil, err
	}

	l.logger.Info("Artifact loaded successfully",
		zap.String("name", manifest.Name),
		zap.Int64("size_bytes", a.Compiled.SizeBytes),
	)

	return a, nil
}

// Compile compiles the artifact's runtime if it has not been compiled yet.
func (l *Loader) Compile(ctx context.Context, a *Artifact) error {
	if a.Compiled != nil {
		return nil
	}
	compiled, err := l.moduleLoader.LoadModule(ctx, Source(a))
	if err != nil {
		return &ArtifactLoadError{
			ArtifactName: a.Name(),
			Err:          err,
		}
	}
	a.Compiled = compiled
	return nil
}

// Source returns the module source of an artifact's runtime. Its cache key
// combines the artifact name with the absolute runtime path, so artifacts
// sharing a name never share a compiled runtime.
func Source(a *Artifact) wasm.ModuleSource {
	path := a.RuntimePath()
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &runtimeSource{
		FileModuleSource: wasm.FileModuleSource{Path: path},
		key:              a.Name() + "@" + path,
	}
}

type runtimeSource struct {
	wasm.FileModuleSource
	key string
}

func (s *runtimeSource) Name() string {
	return s.key
}

// DiscoverArtifacts scans directories for artifacts.
func (l *Loader) DiscoverArtifacts(ctx context.Context, paths []string) ([]*Artifact, error) {
	var artifacts []*Artifact
	var errs []error

	for _, basePath := range paths {
		l.logger.Debug("Scanning artifact directory", zap.String("path", basePath))

		entries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Artifact path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			dir := filepath.Join(basePath, entry.Name())
			a, err := l.LoadArtifact(ctx, dir)
			if err != nil {
				l.logger.Error("Failed to load artifact",
					zap.String("dir", dir),
					zap.Error(err),
				)
				errs = append(errs, err)
				continue
			}

			artifacts = append(artifacts, a)
		}
	}

	if len(artifacts) > 0 && len(errs) > 0 {
		l.logger.Warn("Some artifacts failed to load",
			zap.Int("loaded", len(artifacts)),
			zap.Int("failed", len(errs)),
		)
	}

	if len(artifacts) == 0 {
		return nil, &NoArtifactsFoundError{Paths: paths}
	}

	return artifacts, nil
}
