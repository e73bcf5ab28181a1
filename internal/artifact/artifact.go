// Package artifact discovers and indexes embedding runtime artifacts: a
// directory with a manifest.yaml and the runtime binary it names.
package artifact

import (
	"time"

	"github.com/woxQAQ/wasm-jit-loader/internal/wasm"
)

// Artifact represents a loaded artifact with its manifest and compiled runtime.
type Artifact struct {
	// Manifest is the parsed artifact metadata
	Manifest *Manifest

	// Compiled is the compiled embedding runtime, nil until loaded
	Compiled *wasm.CompiledModule

	// LoadedAt is the timestamp when the artifact was loaded
	LoadedAt time.Time
}

// Name returns the artifact name.
func (a *Artifact) Name() string {
	return a.Manifest.Name
}

// Version returns the artifact version.
func (a *Artifact) Version() string {
	return a.Manifest.Version
}

// ABI returns the host import convention of the runtime.
func (a *Artifact) ABI() wasm.ABI {
	if a.Manifest.Runtime.ABI == "" {
		return wasm.ABIPlain
	}
	return wasm.ABI(a.Manifest.Runtime.ABI)
}

// RuntimePath returns the path of the embedding runtime binary.
func (a *Artifact) RuntimePath() string {
	return a.Manifest.RuntimePath()
}

// Function returns the entry function name.
func (a *Artifact) Function() string {
	return a.Manifest.Entry.Function
}

// Args returns a copy of the entry arguments.
func (a *Artifact) Args() []string {
	return append([]string(nil), a.Manifest.Entry.Args...)
}

// New builds an unregistered artifact for a runtime binary at path, using
// default accessor names and entry point. Used to run a binary without a
// manifest.
func New(name, path string, abi wasm.ABI) *Artifact {
	m := &Manifest{
		Name:    name,
		Version: "0.0.0",
		Runtime: RuntimeConfig{File: path, ABI: string(abi)},
	}
	m.applyDefaults()
	return &Artifact{Manifest: m, LoadedAt: time.Now()}
}
