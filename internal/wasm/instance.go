package wasm

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// InstanceManager creates and manages module instances.
type InstanceManager struct {
	runtime   *Runtime
	logger    *zap.Logger
	hostFuncs *HostFunctionsImpl
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, hostFuncs *HostFunctionsImpl, logger *zap.Logger) *InstanceManager {
	return &InstanceManager{
		runtime:   runtime,
		hostFuncs: hostFuncs,
		logger:    logger.With(zap.String("component", "wasm-instance")),
	}
}

// InstanceConfig holds configuration for creating instances.
type InstanceConfig struct {
	// Module name to instantiate.
	ModuleName string

	// Instance ID (if empty, one is generated).
	InstanceID string

	// ABI selects the host imports linked before instantiation.
	ABI ABI

	// AllowImports permits the module to import from host modules. When
	// false the module is instantiated with an empty import set and any
	// declared import is an error.
	AllowImports bool

	// StartFunctions run in order after instantiation; missing ones are
	// skipped. Nil means none.
	StartFunctions []string

	// Stdout and Stderr receive WASI output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer
}

// Instance represents an instantiated Wasm module.
type Instance struct {
	module api.Module

	ID        string
	Name      string
	CreatedAt int64

	// Exported functions, cached on first lookup.
	exports map[string]api.Function

	runtime *Runtime
	logger  *zap.Logger
}

// Instantiate creates a new instance from a compiled module.
func (m *InstanceManager) Instantiate(ctx context.Context, config *InstanceConfig) (*Instance, error) {
	compiled, ok := m.runtime.GetCompiledModule(config.ModuleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: config.ModuleName}
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = generateInstanceID()
	} else if _, active := m.runtime.GetInstance(instanceID); active {
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        ErrInstanceExists,
		}
	}

	m.logger.Info("Instantiating Wasm module",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
		zap.String("abi", string(config.ABI)),
	)

	if config.AllowImports {
		if _, err := m.hostFuncs.Link(ctx, m.runtime, config.ABI, compiled); err != nil {
			return nil, &InstantiationError{
				ModuleName: config.ModuleName,
				InstanceID: instanceID,
				Err:        err,
			}
		}
	} else if imports := ImportNames(compiled); len(imports) > 0 {
		return nil, &ImportsNotAllowedError{
			ModuleName: config.ModuleName,
			Imports:    imports,
		}
	}

	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions(config.StartFunctions...)
	if config.Stdout != nil {
		moduleConfig = moduleConfig.WithStdout(config.Stdout)
	}
	if config.Stderr != nil {
		moduleConfig = moduleConfig.WithStderr(config.Stderr)
	}

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, contextError(ctx, ctxErr)
		}
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	instance := &Instance{
		module:    module,
		ID:        instanceID,
		Name:      config.ModuleName,
		CreatedAt: time.Now().Unix(),
		exports:   make(map[string]api.Function),
		runtime:   m.runtime,
		logger:    m.logger,
	}

	m.runtime.StoreInstance(instanceID, module)

	m.logger.Info("Module instantiated successfully",
		zap.String("instance_id", instanceID),
		zap.Int("exported_functions", len(compiled.Module.ExportedFunctions())),
	)

	return instance, nil
}

// Close closes the instance and releases resources.
func (i *Instance) Close(ctx context.Context) error {
	if i.runtime != nil {
		i.runtime.DeleteInstance(i.ID)
	}
	return i.module.Close(ctx)
}

// Module returns the underlying wazero module.
func (i *Instance) Module() api.Module {
	return i.module
}

// Memory returns a helper over the instance's memory, or MemoryNotFoundError.
func (i *Instance) Memory() (*Memory, error) {
	mem := NewMemory(i.module)
	if mem == nil {
		return nil, &MemoryNotFoundError{ModuleName: i.Name}
	}
	return mem, nil
}

// Function returns the exported function name.
func (i *Instance) Function(name string) (api.Function, error) {
	if fn, ok := i.exports[name]; ok {
		return fn, nil
	}
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil, &FunctionNotFoundError{ModuleName: i.Name, FunctionName: name}
	}
	i.exports[name] = fn
	return fn, nil
}

var instanceSeq atomic.Uint64

// generateInstanceID returns a process-unique instance ID.
func generateInstanceID() string {
	return fmt.Sprintf("inst-%d-%d", time.Now().UnixNano(), instanceSeq.Add(1))
}
