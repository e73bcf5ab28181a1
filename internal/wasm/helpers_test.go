package wasm

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/wasm-jit-loader/internal/jit"
)

var (
	// imports env.f: () -> ()
	importEnvModule = []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
		0x02, 0x09, 0x01, 0x03, 'e', 'n', 'v', 0x01, 'f', 0x00, 0x00,
	}

	// imports env.g: global i32 (immutable)
	importGlobalModule = []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x02, 0x0a, 0x01, 0x03, 'e', 'n', 'v', 0x01, 'g', 0x03, 0x7f, 0x00,
	}

	// imports host.log_message: (i32, i32, i32) -> ()
	importHostModule = []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x07, 0x01, 0x60, 0x03, 0x7f, 0x7f, 0x7f, 0x00,
		0x02, 0x14, 0x01,
		0x04, 'h', 'o', 's', 't',
		0x0b, 'l', 'o', 'g', '_', 'm', 'e', 's', 's', 'a', 'g', 'e',
		0x00, 0x00,
	}

	// exports spin: () -> (), which never returns
	spinModule = []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
		0x03, 0x02, 0x01, 0x00,
		0x07, 0x08, 0x01, 0x04, 's', 'p', 'i', 'n', 0x00, 0x00,
		0x0a, 0x09, 0x01, 0x07, 0x00, 0x03, 0x40, 0x0c, 0x00, 0x0b, 0x0b,
	}
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	ctx := context.Background()
	rt, err := NewRuntime(ctx, zaptest.NewLogger(t), nil)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}
	t.Cleanup(func() { rt.Close(ctx) })
	return rt
}

// instantiateBytes compiles data under name and instantiates it without
// imports.
func instantiateBytes(t *testing.T, rt *Runtime, name string, data []byte) *Instance {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	if _, err := NewModuleLoader(rt, logger).LoadModuleFromMemory(ctx, name, data); err != nil {
		t.Fatalf("Failed to compile %s: %v", name, err)
	}
	inst, err := NewInstanceManager(rt, NewHostFunctions(logger), logger).Instantiate(ctx, &InstanceConfig{ModuleName: name})
	if err != nil {
		t.Fatalf("Failed to instantiate %s: %v", name, err)
	}
	return inst
}

func addModule(t *testing.T) []byte {
	t.Helper()
	bin, err := jit.AddModule()
	if err != nil {
		t.Fatalf("Failed to generate add module: %v", err)
	}
	return bin
}

func embeddingModule(t *testing.T) []byte {
	t.Helper()
	bin, err := jit.AddEmbeddingModule()
	if err != nil {
		t.Fatalf("Failed to generate embedding module: %v", err)
	}
	return bin
}
