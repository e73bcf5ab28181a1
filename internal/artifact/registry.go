package artifact

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/woxQAQ/wasm-jit-loader/internal/wasm"
)

// Registry manages loaded artifacts.
type Registry struct {
	sync.RWMutex
	artifacts map[string]*Artifact     // name -> artifact
	byABI     map[wasm.ABI][]*Artifact // abi -> artifacts
	logger    *zap.Logger
}

// NewRegistry creates a new artifact registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		artifacts: make(map[string]*Artifact),
		byABI:     make(map[wasm.ABI][]*Artifact),
		logger:    logger.With(zap.String("component", "artifact-registry")),
	}
}

// Register adds an artifact to the registry.
func (r *Registry) Register(a *Artifact) error {
	r.Lock()
	defer r.Unlock()

	name := a.Name()
	if _, exists := r.artifacts[name]; exists {
		return &ArtifactAlreadyRegisteredError{ArtifactName: name}
	}

	r.artifacts[name] = a

	abi := a.ABI()
	r.byABI[abi] = append(r.byABI[abi], a)

	r.logger.Info("Artifact registered",
		zap.String("name", name),
		zap.String("abi", string(abi)),
	)

	return nil
}

// Get retrieves an artifact by name.
func (r *Registry) Get(name string) (*Artifact, bool) {
	r.RLock()
	defer r.RUnlock()

	a, ok := r.artifacts[name]
	return a, ok
}

// LookupByABI finds artifacts built against abi.
func (r *Registry) LookupByABI(abi wasm.ABI) []*Artifact {
	r.RLock()
	defer r.RUnlock()

	artifacts := r.byABI[abi]
	result := make([]*Artifact, len(artifacts))
	copy(result, artifacts)
	return result
}

// List returns all registered artifacts sorted by name.
func (r *Registry) List() []*Artifact {
	r.RLock()
	defer r.RUnlock()

	result := make([]*Artifact, 0, len(r.artifacts))
	for _, a := range r.artifacts {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

// Count returns the number of registered artifacts.
func (r *Registry) Count() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.artifacts)
}
