package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/woxQAQ/wasm-jit-loader/internal/artifact"
	"github.com/woxQAQ/wasm-jit-loader/internal/config"
	"github.com/woxQAQ/wasm-jit-loader/internal/runner"
	"github.com/woxQAQ/wasm-jit-loader/internal/wasm"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to configuration file")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	artifactName := flag.String("artifact", "", "Name of the artifact to run")
	runtimePath := flag.String("runtime", "", "Run this embedding runtime binary directly, without a manifest")
	abi := flag.String("abi", string(wasm.ABIPlain), "Host ABI of -runtime (plain, emscripten)")
	function := flag.String("func", "", "Exported function to call on the embedded binary")
	args := flag.String("args", "", "Comma-separated call arguments")
	list := flag.Bool("list", false, "List discovered artifacts and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadRunnerConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *artifactName != "" {
		cfg.Artifact = *artifactName
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	logger.Info("Starting jitload",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	rt, err := wasm.NewRuntime(ctx, logger, &wasm.RuntimeConfig{
		MemoryPages:  cfg.Wasm.MemoryPages,
		DebugEnabled: cfg.Wasm.Debug,
		CacheDir:     cfg.Wasm.CacheDir,
	})
	if err != nil {
		logger.Error("Failed to initialize Wasm runtime", zap.Error(err))
		return 1
	}

	r := runner.New(cfg, rt, logger)
	defer r.Shutdown(context.Background())

	entry := runner.Entry{Function: *function, Args: splitArgs(*args)}

	var result *runner.Result
	if *runtimePath != "" {
		name := strings.TrimSuffix(filepath.Base(*runtimePath), filepath.Ext(*runtimePath))
		a := artifact.New(name, *runtimePath, wasm.ABI(*abi))
		result, err = r.RunArtifact(ctx, a, entry)
	} else {
		if err := r.LoadAll(ctx); err != nil {
			logger.Error("Failed to load artifacts", zap.Error(err))
			return 1
		}
		if *list {
			printArtifacts(os.Stdout, r.Registry())
			return 0
		}
		result, err = r.Run(ctx, cfg.Artifact, entry)
	}
	if err != nil {
		logger.Error("Run failed", zap.Error(err))
		return 1
	}

	fmt.Println(result.Value())
	return 0
}

// printArtifacts lists registered artifacts grouped by ABI.
func printArtifacts(w io.Writer, registry *artifact.Registry) {
	for _, abi := range []wasm.ABI{wasm.ABIPlain, wasm.ABIEmscripten} {
		artifacts := registry.LookupByABI(abi)
		if len(artifacts) == 0 {
			continue
		}
		sort.Slice(artifacts, func(i, j int) bool {
			return artifacts[i].Name() < artifacts[j].Name()
		})
		fmt.Fprintf(w, "%s:\n", abi)
		for _, a := range artifacts {
			fmt.Fprintf(w, "  %s\t%s\t%s\n", a.Name(), a.Version(), a.Manifest.Description)
		}
	}
}

// newLogger writes to stderr only; stdout carries the call result.
func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = lvl
	return cfg.Build()
}

func splitArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
