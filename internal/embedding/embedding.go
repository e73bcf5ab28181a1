// Package embedding runs an embedding runtime: a WebAssembly module whose
// linear memory holds another, separately generated WebAssembly binary and
// which exports two accessors locating it.
//
// The runtime is owned by an Instance that is passed explicitly to whoever
// needs it. Views taken from it are valid only while the Instance is open and
// its memory has not grown.
package embedding

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/woxQAQ/wasm-jit-loader/internal/wasm"
)

// Default accessor export names.
const (
	DefaultPointerExport = "jit_add"
	DefaultLengthExport  = "jit_add_len"
)

// DefaultStartFunctions are run after instantiation when Options leaves them
// unset. Emscripten reactors export _initialize; commands export _start.
var DefaultStartFunctions = []string{"_initialize", "_start"}

// Options describes an embedding runtime binary.
type Options struct {
	// Name identifies the runtime in logs.
	Name string

	// Source supplies the runtime's bytes. Its Name is the compiled-module
	// cache key.
	Source wasm.ModuleSource

	// ABI selects the host imports the runtime is linked against.
	ABI wasm.ABI

	// PointerExport and LengthExport name the () -> i32 accessors.
	PointerExport string
	LengthExport  string

	// StartFunctions overrides DefaultStartFunctions. An empty non-nil
	// slice runs nothing.
	StartFunctions []string

	// Output receives anything the runtime writes to stdout or stderr.
	// Nil selects os.Stderr so that process stdout carries only results.
	Output io.Writer
}

// Instance is a started embedding runtime.
type Instance struct {
	inst   *wasm.Instance
	mem    *wasm.Memory
	opts   Options
	logger *zap.Logger
}

// Start compiles, links and instantiates the runtime described by opts and
// checks that it exposes a memory and both accessors.
func Start(ctx context.Context, rt *wasm.Runtime, logger *zap.Logger, opts Options) (*Instance, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("embedding runtime %q: no source", opts.Name)
	}
	if opts.Name == "" {
		opts.Name = opts.Source.Name()
	}
	if opts.PointerExport == "" {
		opts.PointerExport = DefaultPointerExport
	}
	if opts.LengthExport == "" {
		opts.LengthExport = DefaultLengthExport
	}
	if opts.StartFunctions == nil {
		opts.StartFunctions = DefaultStartFunctions
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	logger = logger.With(
		zap.String("component", "embedding-runtime"),
		zap.String("runtime", opts.Name),
	)

	loader := wasm.NewModuleLoader(rt, logger)
	compiled, err := loader.LoadModule(ctx, opts.Source)
	if err != nil {
		return nil, err
	}

	manager := wasm.NewInstanceManager(rt, wasm.NewHostFunctions(logger), logger)
	inst, err := manager.Instantiate(ctx, &wasm.InstanceConfig{
		ModuleName:     compiled.Name,
		ABI:            opts.ABI,
		AllowImports:   true,
		StartFunctions: opts.StartFunctions,
		Stdout:         opts.Output,
		Stderr:         opts.Output,
	})
	if err != nil {
		return nil, err
	}

	e := &Instance{inst: inst, opts: opts, logger: logger}
	if err := e.bind(); err != nil {
		_ = inst.Close(ctx)
		return nil, err
	}

	logger.Info("Embedding runtime ready",
		zap.String("instance_id", inst.ID),
		zap.Uint32("memory_bytes", e.mem.Size()),
	)
	return e, nil
}

func (e *Instance) bind() error {
	mem, err := e.inst.Memory()
	if err != nil {
		return err
	}
	e.mem = mem

	for _, name := range []string{e.opts.PointerExport, e.opts.LengthExport} {
		if _, err := e.accessor(name); err != nil {
			return err
		}
	}
	return nil
}

func (e *Instance) accessor(name string) (api.Function, error) {
	fn, err := e.inst.Function(name)
	if err != nil {
		return nil, err
	}
	def := fn.Definition()
	params, results := def.ParamTypes(), def.ResultTypes()
	if len(params) != 0 || len(results) != 1 || results[0] != api.ValueTypeI32 {
		return nil, &wasm.SignatureError{
			FunctionName: name,
			Want:         "() -> i32",
			Got:          wasm.Signature(params, results),
		}
	}
	return fn, nil
}

// Name returns the runtime's name.
func (e *Instance) Name() string {
	return e.opts.Name
}

// ID returns the instance ID of the runtime module.
func (e *Instance) ID() string {
	return e.inst.ID
}

// Memory returns the runtime's linear memory.
func (e *Instance) Memory() *wasm.Memory {
	return e.mem
}

// BlobPointer returns the address of the embedded binary.
func (e *Instance) BlobPointer(ctx context.Context) (uint32, error) {
	return e.callAccessor(ctx, e.opts.PointerExport)
}

// BlobLength returns the byte length of the embedded binary.
func (e *Instance) BlobLength(ctx context.Context) (uint32, error) {
	return e.callAccessor(ctx, e.opts.LengthExport)
}

func (e *Instance) callAccessor(ctx context.Context, name string) (uint32, error) {
	res, err := e.inst.Call(ctx, name)
	if err != nil {
		return 0, err
	}
	return uint32(res.Raw[0]), nil
}

// Blob returns the pointer and length of the embedded binary.
func (e *Instance) Blob(ctx context.Context) (ptr, length uint32, err error) {
	if ptr, err = e.BlobPointer(ctx); err != nil {
		return 0, 0, err
	}
	if length, err = e.BlobLength(ctx); err != nil {
		return 0, 0, err
	}
	e.logger.Debug("Located embedded binary",
		zap.Uint32("ptr", ptr),
		zap.Uint32("length", length),
	)
	return ptr, length, nil
}

// View returns a zero-copy view of [ptr, ptr+length) in the runtime's memory.
func (e *Instance) View(ptr, length uint32) (*wasm.View, error) {
	return e.mem.View(ptr, length)
}

// Close releases the runtime. Views taken from it become stale.
func (e *Instance) Close(ctx context.Context) error {
	return e.inst.Close(ctx)
}
