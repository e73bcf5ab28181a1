package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/woxQAQ/wasm-jit-loader/internal/artifact"
)

func TestSplitArgs(t *testing.T) {
	assert.Nil(t, splitArgs(""))
	assert.Nil(t, splitArgs("  "))
	assert.Equal(t, []string{"8", "10"}, splitArgs("8,10"))
	assert.Equal(t, []string{"1.5", "-2"}, splitArgs(" 1.5 , -2 "))
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := newLogger(level)
		assert.NoError(t, err, level)
		assert.NotNil(t, logger)
	}

	_, err := newLogger("verbose")
	assert.Error(t, err)
}

func TestPrintArtifactsGroupsByABI(t *testing.T) {
	registry := artifact.NewRegistry(zap.NewNop())
	for _, a := range []*artifact.Artifact{
		artifact.New("sub", "sub.wasm", "plain"),
		artifact.New("emcc", "emcc.wasm", "emscripten"),
		artifact.New("add", "add.wasm", "plain"),
	} {
		require.NoError(t, registry.Register(a))
	}

	var buf bytes.Buffer
	printArtifacts(&buf, registry)

	want := "plain:\n" +
		"  add\t0.0.0\t\n" +
		"  sub\t0.0.0\t\n" +
		"emscripten:\n" +
		"  emcc\t0.0.0\t\n"
	assert.Equal(t, want, buf.String())
}
