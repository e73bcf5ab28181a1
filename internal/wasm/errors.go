package wasm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CompilationError occurs when Wasm module compilation fails
type CompilationError struct {
	ModuleName string
	Err        error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("failed to compile Wasm module '%s': %v", e.ModuleName, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// InstantiationError occurs when module instantiation fails
type InstantiationError struct {
	ModuleName string
	InstanceID string
	Err        error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("failed to instantiate module '%s' (instance: %s): %v",
		e.ModuleName, e.InstanceID, e.Err)
}

func (e *InstantiationError) Unwrap() error {
	return e.Err
}

// ErrInstanceExists is wrapped by InstantiationError when the requested
// instance ID is already active.
var ErrInstanceExists = errors.New("instance ID already in use")

// ModuleNotFoundError occurs when a module is not in cache
type ModuleNotFoundError struct {
	ModuleName string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module '%s' not found in cache", e.ModuleName)
}

// FunctionNotFoundError occurs when an exported function is missing
type FunctionNotFoundError struct {
	ModuleName   string
	FunctionName string
}

func (e *FunctionNotFoundError) Error() string {
	return fmt.Sprintf("function '%s' not found in module '%s'",
		e.FunctionName, e.ModuleName)
}

// MemoryNotFoundError occurs when a module exports no linear memory
type MemoryNotFoundError struct {
	ModuleName string
}

func (e *MemoryNotFoundError) Error() string {
	return fmt.Sprintf("module '%s' has no exported memory", e.ModuleName)
}

// MemoryAccessError occurs when memory operations fail
type MemoryAccessError struct {
	Operation string
	Address   uint32
	Length    uint32
	Err       error
}

func (e *MemoryAccessError) Error() string {
	return fmt.Sprintf("memory access failed (op=%s, addr=%d, len=%d): %v",
		e.Operation, e.Address, e.Length, e.Err)
}

func (e *MemoryAccessError) Unwrap() error {
	return e.Err
}

// ErrOutOfBounds is wrapped by MemoryAccessError when a range exceeds memory.
var ErrOutOfBounds = errors.New("range out of bounds")

// StaleViewError occurs when a byte view is read after its memory was
// resized or its owner was closed
type StaleViewError struct {
	Address uint32
	Length  uint32
	Reason  string
}

func (e *StaleViewError) Error() string {
	return fmt.Sprintf("stale memory view (addr=%d, len=%d): %s", e.Address, e.Length, e.Reason)
}

// ImportsNotAllowedError occurs when a module that must be instantiated with
// an empty import set declares imports
type ImportsNotAllowedError struct {
	ModuleName string
	Imports    []string
}

func (e *ImportsNotAllowedError) Error() string {
	return fmt.Sprintf("module '%s' declares %d import(s) but none are provided: %v",
		e.ModuleName, len(e.Imports), e.Imports)
}

// SignatureError occurs when an export exists with an unexpected type
type SignatureError struct {
	FunctionName string
	Want         string
	Got          string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("function '%s' has signature %s, want %s", e.FunctionName, e.Got, e.Want)
}

// ArgumentError occurs when call arguments do not match the function's parameters
type ArgumentError struct {
	FunctionName string
	Index        int
	Value        string
	Err          error
}

func (e *ArgumentError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("function '%s': %v", e.FunctionName, e.Err)
	}
	return fmt.Sprintf("function '%s': argument %d (%q): %v", e.FunctionName, e.Index, e.Value, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// CallError occurs when an exported function traps or exits
type CallError struct {
	ModuleName   string
	FunctionName string
	Err          error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call to '%s' in module '%s' failed: %v", e.FunctionName, e.ModuleName, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// TimeoutError occurs when Wasm execution times out
type TimeoutError struct {
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Wasm execution timed out after %v", e.Duration)
}

func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// timeoutKey carries the configured execution timeout so errors can report it.
type timeoutKey struct{}

// WithTimeout bounds ctx by d. A zero d returns ctx unchanged.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	ctx = context.WithValue(ctx, timeoutKey{}, d)
	return context.WithTimeout(ctx, d)
}

// contextError maps a finished context to TimeoutError or the raw cause.
func contextError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		d, _ := ctx.Value(timeoutKey{}).(time.Duration)
		return &TimeoutError{Duration: d}
	}
	return err
}
