package wasm

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/emscripten"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

// ABI names the host import convention a module was built against.
type ABI string

const (
	// ABIPlain modules import nothing, or only the "host" module.
	ABIPlain ABI = "plain"
	// ABIEmscripten modules import WASI and the Emscripten "env" module.
	ABIEmscripten ABI = "emscripten"
)

// HostModuleName is the import module exposing HostFunctionsImpl to guests.
const HostModuleName = "host"

// HostFunctionsImpl implements host functions for Wasm modules.
type HostFunctionsImpl struct {
	logger *zap.Logger
}

// NewHostFunctions creates a new host functions implementation.
func NewHostFunctions(logger *zap.Logger) *HostFunctionsImpl {
	return &HostFunctionsImpl{
		logger: logger.With(zap.String("component", "wasm-host")),
	}
}

// logMessage is called by Wasm modules to log messages.
// Signature: log_message(level, ptr, length)
// level: 0 = debug, 1 = info, 2 = warn, 3 = error
func (h *HostFunctionsImpl) logMessage(ctx context.Context, mod api.Module, level uint32, ptr uint32, length uint32) {
	var msg []byte
	ok := false
	if mem := NewMemory(mod); mem != nil {
		msg, ok = mem.ReadBytes(ptr, length)
	}
	if !ok {
		h.logger.Error("Failed to read log message from Wasm memory",
			zap.Uint32("ptr", ptr),
			zap.Uint32("length", length),
		)
		return
	}

	fields := []zap.Field{zap.String("module", mod.Name())}
	switch level {
	case 0:
		h.logger.Debug(string(msg), fields...)
	case 2:
		h.logger.Warn(string(msg), fields...)
	case 3:
		h.logger.Error(string(msg), fields...)
	default:
		h.logger.Info(string(msg), fields...)
	}
}

// Link instantiates the host modules that compiled needs under abi. Host
// modules already present in the runtime are reused. It returns the names of
// the modules it instantiated.
func (h *HostFunctionsImpl) Link(ctx context.Context, r *Runtime, abi ABI, compiled *CompiledModule) ([]string, error) {
	var linked []string

	if importsModule(compiled, HostModuleName) && r.runtime.Module(HostModuleName) == nil {
		builder := r.runtime.NewHostModuleBuilder(HostModuleName)
		builder.NewFunctionBuilder().
			WithFunc(h.logMessage).
			WithParameterNames("level", "ptr", "length").
			Export("log_message")
		if _, err := builder.Instantiate(ctx); err != nil {
			return linked, fmt.Errorf("failed to instantiate host module: %w", err)
		}
		linked = append(linked, HostModuleName)
	}

	switch abi {
	case ABIPlain, "":
	case ABIEmscripten:
		if r.runtime.Module(wasi_snapshot_preview1.ModuleName) == nil {
			if _, err := wasi_snapshot_preview1.Instantiate(ctx, r.runtime); err != nil {
				return linked, fmt.Errorf("failed to instantiate WASI: %w", err)
			}
			linked = append(linked, wasi_snapshot_preview1.ModuleName)
		}
		if r.runtime.Module("env") == nil {
			// invoke_* trampolines depend on the guest's table, so "env" is
			// generated for this module's imports.
			if _, err := emscripten.InstantiateForModule(ctx, r.runtime, compiled.Module); err != nil {
				return linked, fmt.Errorf("failed to instantiate emscripten env: %w", err)
			}
			linked = append(linked, "env")
		}
	default:
		return linked, fmt.Errorf("unknown ABI %q", abi)
	}

	for _, name := range linked {
		h.logger.Debug("Linked host module",
			zap.String("host_module", name),
			zap.String("guest", compiled.Name),
		)
	}
	return linked, nil
}

func importsModule(compiled *CompiledModule, module string) bool {
	for _, def := range compiled.Module.ImportedFunctions() {
		if mod, _, ok := def.Import(); ok && mod == module {
			return true
		}
	}
	return false
}

// ImportNames lists a compiled module's function and memory imports as
// "module.name". wazero does not expose global or table imports, so a module
// importing only those yields no names and fails later, at instantiation,
// with an InstantiationError.
func ImportNames(compiled *CompiledModule) []string {
	var names []string
	for _, def := range compiled.Module.ImportedFunctions() {
		if mod, name, ok := def.Import(); ok {
			names = append(names, mod+"."+name)
		}
	}
	for _, def := range compiled.Module.ImportedMemories() {
		if mod, name, ok := def.Import(); ok {
			names = append(names, mod+"."+name)
		}
	}
	return names
}
