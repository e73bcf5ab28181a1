package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woxQAQ/wasm-jit-loader/internal/artifact"
)

func TestGenerateWritesArtifact(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, generate(dir, "mul", "mul", "mul", "f64", 2048))

	m, err := artifact.ParseManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, "mul", m.Name)
	assert.Equal(t, runtimeFile, m.Runtime.File)
	assert.Equal(t, "mul", m.Entry.Function)
	assert.Equal(t, []string{"8.5", "10.25"}, m.Entry.Args)
}

func TestGenerateRejectsUnknownInput(t *testing.T) {
	assert.Error(t, generate(t.TempDir(), "x", "f", "div", "i32", 1024))
	assert.Error(t, generate(t.TempDir(), "x", "f", "add", "v128", 1024))
}

func TestParseOffset(t *testing.T) {
	addr, err := parseOffset(math.MaxUint32)
	require.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32), addr)

	if math.MaxUint <= math.MaxUint32 {
		t.Skip("uint is 32 bits wide")
	}
	over := uint64(math.MaxUint32) + 1
	_, err = parseOffset(uint(over))
	assert.Error(t, err, "2^32 must not wrap to 0")
}
