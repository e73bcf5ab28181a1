package wasm

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestNewRuntime(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}

	if runtime == nil {
		t.Fatal("Runtime is nil")
	}

	if err := runtime.Close(context.Background()); err != nil {
		t.Errorf("Failed to close runtime: %v", err)
	}
}

func TestNewRuntimeRejectsMemoryPages(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	for _, pages := range []uint32{0, maxMemoryPages + 1} {
		if _, err := NewRuntime(ctx, logger, &RuntimeConfig{MemoryPages: pages}); err == nil {
			t.Errorf("NewRuntime with %d pages should fail", pages)
		}
	}
}

func TestRuntimeCloseIdempotent(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := runtime.Close(ctx); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := runtime.Close(ctx); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

func TestDefaultRuntimeConfig(t *testing.T) {
	config := DefaultRuntimeConfig()

	if config.MemoryPages != 256 {
		t.Errorf("Default memory pages = %d, want 256", config.MemoryPages)
	}

	if config.DebugEnabled {
		t.Error("Debug should be disabled by default")
	}

	if config.CacheDir != "" {
		t.Errorf("Default cache dir = %q, want empty", config.CacheDir)
	}
}

func TestRuntimeConfiguration(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	config := &RuntimeConfig{
		MemoryPages:  128,
		DebugEnabled: true,
	}

	runtime, err := NewRuntime(ctx, logger, config)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}
	defer runtime.Close(ctx)

	if runtime.config.MemoryPages != 128 {
		t.Errorf("Memory pages not set correctly")
	}
	if !runtime.Debug() {
		t.Error("Debug() should report the configured flag")
	}
}

func TestRuntimePersistentCache(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()
	dir := t.TempDir()

	for i := 0; i < 2; i++ {
		runtime, err := NewRuntime(ctx, logger, &RuntimeConfig{MemoryPages: 16, CacheDir: dir})
		if err != nil {
			t.Fatalf("Failed to create runtime with cache: %v", err)
		}
		inst := instantiateBytes(t, runtime, "add", addModule(t))
		res, err := inst.Call(ctx, "add", "8", "10")
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if res.String() != "18" {
			t.Errorf("add(8, 10) = %s, want 18", res)
		}
		if err := runtime.Close(ctx); err != nil {
			t.Errorf("Failed to close runtime: %v", err)
		}
	}
}

func TestRuntimeContextCancellation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	cancel()

	err = runtime.Close(ctx)
	if err != nil && err != context.Canceled {
		t.Errorf("Unexpected error when closing with cancelled context: %v", err)
	}
}

func TestRuntimeModuleCache(t *testing.T) {
	runtime := newTestRuntime(t)

	module := &CompiledModule{
		Name:       "test-module",
		Source:     "test",
		SizeBytes:  1024,
		CompiledAt: time.Now().Unix(),
	}

	runtime.StoreCompiledModule(module)

	retrieved, ok := runtime.GetCompiledModule("test-module")
	if !ok {
		t.Fatal("Failed to retrieve module from cache")
	}

	if retrieved.Name != "test-module" {
		t.Errorf("Retrieved wrong module: %s", retrieved.Name)
	}

	runtime.DeleteCompiledModule("test-module")
	if _, ok := runtime.GetCompiledModule("test-module"); ok {
		t.Error("Module should have been deleted")
	}
}

func TestRuntimeInstanceTracking(t *testing.T) {
	runtime := newTestRuntime(t)

	instanceID := "test-instance"
	instanceData := "test-data"

	runtime.StoreInstance(instanceID, instanceData)

	retrieved, ok := runtime.GetInstance(instanceID)
	if !ok {
		t.Fatal("Failed to retrieve instance from tracking")
	}

	if retrieved != instanceData {
		t.Errorf("Retrieved wrong instance data")
	}

	runtime.DeleteInstance(instanceID)

	_, ok = runtime.GetInstance(instanceID)
	if ok {
		t.Error("Instance should have been deleted")
	}
}

func TestRuntimeCloseClosesInstances(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	inst := instantiateBytes(t, runtime, "add", addModule(t))
	if err := runtime.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !inst.Module().IsClosed() {
		t.Error("Instance should be closed with its runtime")
	}
}

func TestRuntimeIsClosed(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	if runtime.IsClosed() {
		t.Error("Runtime should not be closed initially")
	}

	runtime.Close(ctx)

	if !runtime.IsClosed() {
		t.Error("Runtime should be closed after Close()")
	}
}
