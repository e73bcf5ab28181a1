// Package runner implements the loader/runner pipeline: start an embedding
// runtime, locate the binary embedded in its memory, compile and instantiate
// that binary with no imports, and call one of its exports.
package runner

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/woxQAQ/wasm-jit-loader/internal/artifact"
	"github.com/woxQAQ/wasm-jit-loader/internal/config"
	"github.com/woxQAQ/wasm-jit-loader/internal/embedding"
	"github.com/woxQAQ/wasm-jit-loader/internal/wasm"
)

// Pipeline steps, as reported by StepError.
const (
	StepCompileRuntime = "compile-runtime"
	StepStartRuntime   = "start-runtime"
	StepLocateBlob     = "locate-blob"
	StepViewBlob       = "view-blob"
	StepCompileBlob    = "compile-blob"
	StepInstantiate    = "instantiate-blob"
	StepCall           = "call"
)

// Runner manages artifacts and runs them.
type Runner struct {
	cfg          *config.RunnerConfig
	runtime      *wasm.Runtime
	loader       *artifact.Loader
	registry     *artifact.Registry
	moduleLoader *wasm.ModuleLoader
	instanceMgr  *wasm.InstanceManager
	logger       *zap.Logger

	mu     sync.RWMutex
	loaded bool
}

// Entry overrides the manifest's entry function and arguments. Empty fields
// keep the manifest values.
type Entry struct {
	Function string
	Args     []string
}

// Result is the outcome of one run.
type Result struct {
	Artifact string
	Function string
	Args     []string

	// Location of the embedded binary in the runtime's memory.
	Pointer uint32
	Length  uint32

	Call *wasm.CallResult
}

// Value returns the formatted return value(s) of the call.
func (r *Result) Value() string {
	return r.Call.String()
}

// New creates a runner on top of an initialized runtime.
func New(cfg *config.RunnerConfig, runtime *wasm.Runtime, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:          cfg,
		runtime:      runtime,
		loader:       artifact.NewLoader(runtime, logger),
		registry:     artifact.NewRegistry(logger),
		moduleLoader: wasm.NewModuleLoader(runtime, logger),
		instanceMgr:  wasm.NewInstanceManager(runtime, wasm.NewHostFunctions(logger), logger),
		logger:       logger.With(zap.String("component", "runner")),
	}
}

// LoadAll discovers and registers all artifacts from configured paths.
func (r *Runner) LoadAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return fmt.Errorf("artifacts already loaded")
	}

	r.logger.Info("Loading artifacts",
		zap.Strings("paths", r.cfg.ArtifactPaths),
	)

	artifacts, err := r.loader.DiscoverArtifacts(ctx, r.cfg.ArtifactPaths)
	if err != nil {
		return err
	}

	for _, a := range artifacts {
		if err := r.registry.Register(a); err != nil {
			r.logger.Error("Failed to register artifact",
				zap.String("name", a.Name()),
				zap.Error(err),
			)
			continue
		}
	}

	r.loaded = true

	r.logger.Info("Artifacts loaded successfully",
		zap.Int("count", r.registry.Count()),
	)

	return nil
}

// GetArtifact retrieves an artifact by name.
func (r *Runner) GetArtifact(name string) (*artifact.Artifact, error) {
	a, ok := r.registry.Get(name)
	if !ok {
		return nil, &artifact.ArtifactNotFoundError{ArtifactName: name}
	}
	return a, nil
}

// Run runs the registered artifact name.
func (r *Runner) Run(ctx context.Context, name string, entry Entry) (*Result, error) {
	a, err := r.GetArtifact(name)
	if err != nil {
		return nil, err
	}
	return r.RunArtifact(ctx, a, entry)
}

// RunArtifact runs a, registered or not. The steps run strictly in order and
// the first failure ends the run.
func (r *Runner) RunArtifact(ctx context.Context, a *artifact.Artifact, entry Entry) (*Result, error) {
	ctx, cancel := wasm.WithTimeout(ctx, r.cfg.Wasm.Timeout())
	defer cancel()

	function := entry.Function
	if function == "" {
		function = a.Function()
	}
	args := entry.Args
	if len(args) == 0 {
		args = a.Args()
	}

	log := r.logger.With(zap.String("artifact", a.Name()))

	if err := r.loader.Compile(ctx, a); err != nil {
		return nil, stepError(a, StepCompileRuntime, err)
	}

	rt, err := embedding.Start(ctx, r.runtime, r.logger, embedding.Options{
		Name:           a.Name(),
		Source:         artifact.Source(a),
		ABI:            a.ABI(),
		PointerExport:  a.Manifest.Blob.PointerExport,
		LengthExport:   a.Manifest.Blob.LengthExport,
		StartFunctions: a.Manifest.Runtime.StartFunctions,
	})
	if err != nil {
		return nil, stepError(a, StepStartRuntime, err)
	}
	defer closeLogged(log, "embedding runtime", func() error { return rt.Close(context.Background()) })

	ptr, length, err := rt.Blob(ctx)
	if err != nil {
		return nil, stepError(a, StepLocateBlob, err)
	}

	view, err := rt.View(ptr, length)
	if err != nil {
		return nil, stepError(a, StepViewBlob, err)
	}

	blobName := rt.ID() + "/blob"
	compiled, err := r.moduleLoader.LoadModuleFromView(ctx, blobName, view)
	if err != nil {
		return nil, stepError(a, StepCompileBlob, err)
	}
	defer func() {
		r.runtime.DeleteCompiledModule(blobName)
		closeLogged(log, "compiled blob", func() error { return compiled.Module.Close(context.Background()) })
	}()

	inst, err := r.instanceMgr.Instantiate(ctx, &wasm.InstanceConfig{
		ModuleName: blobName,
	})
	if err != nil {
		return nil, stepError(a, StepInstantiate, err)
	}
	defer closeLogged(log, "blob instance", func() error { return inst.Close(context.Background()) })

	call, err := inst.Call(ctx, function, args...)
	if err != nil {
		return nil, stepError(a, StepCall, err)
	}

	log.Info("Run complete",
		zap.String("function", function),
		zap.Strings("args", args),
		zap.String("result", call.String()),
	)

	return &Result{
		Artifact: a.Name(),
		Function: function,
		Args:     args,
		Pointer:  ptr,
		Length:   length,
		Call:     call,
	}, nil
}

func closeLogged(log *zap.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		log.Warn("Failed to close "+what, zap.Error(err))
	}
}

// Registry returns the artifact registry (for testing/inspection).
func (r *Runner) Registry() *artifact.Registry {
	return r.registry
}

// IsLoaded returns whether artifacts have been loaded.
func (r *Runner) IsLoaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Shutdown closes the runtime and everything created in it.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.logger.Info("Shutting down runner")

	if err := r.runtime.Close(ctx); err != nil {
		r.logger.Error("Failed to shutdown runtime", zap.Error(err))
		return err
	}

	r.logger.Info("Runner shutdown complete")
	return nil
}
