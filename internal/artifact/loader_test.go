package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/wasm-jit-loader/internal/wasm"
)

func newLoader(t *testing.T) (*Loader, *wasm.Runtime) {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	runtime, err := wasm.NewRuntime(ctx, logger, wasm.DefaultRuntimeConfig())
	require.NoError(t, err)
	t.Cleanup(func() { runtime.Close(ctx) })

	return NewLoader(runtime, logger), runtime
}

func TestLoader_LoadArtifact_Valid(t *testing.T) {
	loader, runtime := newLoader(t)
	dir := writeArtifact(t, t.TempDir(), "add")

	a, err := loader.LoadArtifact(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "add", a.Name())
	assert.Equal(t, "1.0.0", a.Version())
	assert.Equal(t, wasm.ABIPlain, a.ABI())
	assert.Equal(t, "add", a.Function())
	assert.Equal(t, []string{"8", "10"}, a.Args())
	assert.False(t, a.LoadedAt.IsZero())

	require.NotNil(t, a.Compiled)
	cached, ok := runtime.GetCompiledModule(Source(a).Name())
	require.True(t, ok, "runtime should be cached under its source key")
	assert.Same(t, a.Compiled, cached)
}

func TestLoader_LoadArtifact_ManifestNotFound(t *testing.T) {
	loader, _ := newLoader(t)

	_, err := loader.LoadArtifact(context.Background(), filepath.Join("testdata", "artifacts", "nonexistent"))

	var notFound *ManifestNotFoundError
	assert.True(t, errors.As(err, &notFound), "got %v", err)
}

func TestLoader_LoadArtifact_InvalidRuntime(t *testing.T) {
	loader, _ := newLoader(t)
	dir := writeArtifact(t, t.TempDir(), "broken")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "runtime.wasm"), []byte("not wasm"), 0o644))

	_, err := loader.LoadArtifact(context.Background(), dir)

	var loadErr *ArtifactLoadError
	require.True(t, errors.As(err, &loadErr), "got %v", err)
	assert.Equal(t, "broken", loadErr.ArtifactName)

	var compErr *wasm.CompilationError
	assert.True(t, errors.As(err, &compErr))
}

func TestLoader_Compile_Unregistered(t *testing.T) {
	loader, _ := newLoader(t)
	dir := writeArtifact(t, t.TempDir(), "add")

	a := New("direct", filepath.Join(dir, "runtime.wasm"), wasm.ABIPlain)
	assert.Equal(t, DefaultFunction, a.Function())
	assert.Equal(t, DefaultPointerExport, a.Manifest.Blob.PointerExport)

	require.NoError(t, loader.Compile(context.Background(), a))
	require.NotNil(t, a.Compiled)

	// Compiling again keeps the existing module.
	compiled := a.Compiled
	require.NoError(t, loader.Compile(context.Background(), a))
	assert.Same(t, compiled, a.Compiled)
}

func TestSource_KeyedByRuntimePath(t *testing.T) {
	first := writeArtifact(t, t.TempDir(), "add")
	second := writeArtifact(t, t.TempDir(), "add")

	a := New("add", filepath.Join(first, "runtime.wasm"), wasm.ABIPlain)
	b := New("add", filepath.Join(second, "runtime.wasm"), wasm.ABIPlain)
	c := New("add", filepath.Join(first, "runtime.wasm"), wasm.ABIEmscripten)

	assert.NotEqual(t, Source(a).Name(), Source(b).Name())
	assert.Equal(t, Source(a).Name(), Source(c).Name())
	assert.Equal(t, int64(len(mustRead(t, filepath.Join(first, "runtime.wasm")))), Source(a).Size())
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestLoader_DiscoverArtifacts(t *testing.T) {
	loader, _ := newLoader(t)
	base := t.TempDir()

	writeArtifact(t, base, "add")
	writeArtifact(t, base, "sub")
	require.NoError(t, os.MkdirAll(filepath.Join(base, "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "README"), []byte("ignored"), 0o644))

	artifacts, err := loader.DiscoverArtifacts(context.Background(), []string{base, filepath.Join(base, "missing")})
	require.NoError(t, err)
	assert.Len(t, artifacts, 2)
}

func TestLoader_DiscoverArtifacts_NoneFound(t *testing.T) {
	loader, _ := newLoader(t)

	_, err := loader.DiscoverArtifacts(context.Background(), []string{filepath.Join("testdata", "artifacts")})

	var noneFound *NoArtifactsFoundError
	assert.True(t, errors.As(err, &noneFound), "got %v", err)
}
