package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/woxQAQ/wasm-jit-loader/internal/jit"
)

// writeArtifact writes an add artifact named name under base and returns its
// directory.
func writeArtifact(t *testing.T, base, name string) string {
	t.Helper()

	dir := filepath.Join(base, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	runtime, err := jit.AddEmbeddingModule()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "runtime.wasm"), runtime, 0o644))

	require.NoError(t, WriteManifest(dir, &Manifest{
		Name:    name,
		Version: "1.0.0",
		Runtime: RuntimeConfig{File: "runtime.wasm"},
	}))
	return dir
}
