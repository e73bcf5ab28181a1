// Command jitgen writes an artifact directory: an embedding runtime whose
// memory holds a generated module, plus the manifest describing it.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/woxQAQ/wasm-jit-loader/internal/artifact"
	"github.com/woxQAQ/wasm-jit-loader/internal/jit"
)

const runtimeFile = "runtime.wasm"

func main() {
	out := flag.String("out", "./artifacts/add", "Artifact directory to write")
	name := flag.String("name", "", "Artifact name (default: base name of -out)")
	function := flag.String("func", "add", "Name of the exported function")
	op := flag.String("op", "add", "Operation computed by the function (add, sub, mul)")
	typ := flag.String("type", "i32", "Parameter and result type (i32, i64, f32, f64)")
	offset := flag.Uint("offset", jit.DefaultBlobOffset, "Address of the embedded module in runtime memory")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *name == "" {
		*name = filepath.Base(*out)
	}

	addr, err := parseOffset(*offset)
	if err != nil {
		logger.Error("Invalid -offset", zap.Error(err))
		logger.Sync()
		os.Exit(2)
	}

	if err := generate(*out, *name, *function, *op, *typ, addr); err != nil {
		logger.Error("Failed to generate artifact", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("Artifact written",
		zap.String("dir", *out),
		zap.String("name", *name),
		zap.String("function", *function),
	)
}

func generate(dir, name, function, op, typ string, offset uint32) error {
	t, err := parseType(typ)
	if err != nil {
		return err
	}

	inner, err := jit.BinaryModule(function, op, t)
	if err != nil {
		return err
	}
	runtime, err := jit.EmbeddingModule(inner, &jit.EmbedOptions{Offset: offset})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, runtimeFile), runtime, 0o644); err != nil {
		return err
	}

	args := artifact.DefaultArgs
	if t == jit.TypeF32 || t == jit.TypeF64 {
		args = []string{"8.5", "10.25"}
	}

	return artifact.WriteManifest(dir, &artifact.Manifest{
		Name:        name,
		Version:     "1.0.0",
		Description: fmt.Sprintf("%s.%s exported as %s", t, op, function),
		Runtime:     artifact.RuntimeConfig{File: runtimeFile, ABI: "plain"},
		Blob: artifact.BlobConfig{
			PointerExport: jit.DefaultPointerExport,
			LengthExport:  jit.DefaultLengthExport,
		},
		Entry: artifact.EntryConfig{Function: function, Args: args},
	})
}

// parseOffset narrows a -offset value to a 32-bit linear memory address.
func parseOffset(v uint) (uint32, error) {
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("offset %d exceeds the 32-bit address space", v)
	}
	return uint32(v), nil
}

func parseType(s string) (jit.ValType, error) {
	for _, t := range []jit.ValType{jit.TypeI32, jit.TypeI64, jit.TypeF32, jit.TypeF64} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown value type %q", s)
}
