package wasm

import (
	"context"
	"errors"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/tetratelabs/wazero/api"

	"github.com/woxQAQ/wasm-jit-loader/internal/jit"
)

func TestCallAdd(t *testing.T) {
	runtime := newTestRuntime(t)
	inst := instantiateBytes(t, runtime, "add", addModule(t))

	tests := []struct {
		a, b string
		want string
	}{
		{"8", "10", "18"},
		{"2", "3", "5"},
		{"-5", "3", "-2"},
		{"2147483647", "1", "-2147483648"},
		{"4294967295", "1", "0"},
		{"0x10", "0x01", "17"},
	}

	for _, tt := range tests {
		t.Run(tt.a+"+"+tt.b, func(t *testing.T) {
			res, err := inst.Call(context.Background(), "add", tt.a, tt.b)
			if err != nil {
				t.Fatalf("Call failed: %v", err)
			}
			if res.String() != tt.want {
				t.Errorf("add(%s, %s) = %s, want %s", tt.a, tt.b, res, tt.want)
			}
		})
	}
}

func TestCallTypedModules(t *testing.T) {
	runtime := newTestRuntime(t)

	tests := []struct {
		op   string
		typ  jit.ValType
		args []string
		want string
	}{
		{"add", jit.TypeI64, []string{"9223372036854775807", "1"}, "-9223372036854775808"},
		{"mul", jit.TypeI64, []string{"4294967296", "3"}, "12884901888"},
		{"sub", jit.TypeF32, []string{"1.5", "0.25"}, "1.25"},
		{"add", jit.TypeF64, []string{"0.1", "0.2"}, "0.30000000000000004"},
		{"mul", jit.TypeF64, []string{"1e308", "10"}, "Infinity"},
	}

	for i, tt := range tests {
		name := tt.typ.String() + "." + tt.op
		t.Run(name, func(t *testing.T) {
			bin, err := jit.BinaryModule("f", tt.op, tt.typ)
			if err != nil {
				t.Fatal(err)
			}
			inst := instantiateBytes(t, runtime, name+strconv.Itoa(i), bin)
			res, err := inst.Call(context.Background(), "f", tt.args...)
			if err != nil {
				t.Fatalf("Call failed: %v", err)
			}
			if res.String() != tt.want {
				t.Errorf("%s%v = %s, want %s", name, tt.args, res, tt.want)
			}
		})
	}
}

func TestCallArgumentErrors(t *testing.T) {
	runtime := newTestRuntime(t)
	inst := instantiateBytes(t, runtime, "add", addModule(t))

	_, err := inst.Call(context.Background(), "add", "1")
	if !errors.Is(err, ErrArity) {
		t.Errorf("Expected ErrArity, got %v", err)
	}

	_, err = inst.Call(context.Background(), "add", "1", "two")
	var argErr *ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("Expected ArgumentError, got %v", err)
	}
	if argErr.Index != 1 || argErr.Value != "two" {
		t.Errorf("Unexpected error fields: %+v", argErr)
	}

	_, err = inst.Call(context.Background(), "add", "1", "4294967296")
	if !errors.As(err, &argErr) {
		t.Errorf("Out of range i32 should fail, got %v", err)
	}

	_, err = inst.Call(context.Background(), "missing")
	var notFound *FunctionNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected FunctionNotFoundError, got %v", err)
	}
}

func TestCallTimeout(t *testing.T) {
	runtime := newTestRuntime(t)
	inst := instantiateBytes(t, runtime, "spin", spinModule)

	ctx, cancel := WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := inst.Call(ctx, "spin")
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("Expected TimeoutError, got %v", err)
	}
	if timeout.Duration != 50*time.Millisecond {
		t.Errorf("Duration = %v", timeout.Duration)
	}
}

func TestParseArgs(t *testing.T) {
	types := []api.ValueType{api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64}

	raw, err := ParseArgs("f", types, []string{" -1 ", "-1", "1.5", "-2.25"})
	if err != nil {
		t.Fatal(err)
	}
	if raw[0] != 0xffffffff {
		t.Errorf("i32 -1 = %#x, want 0xffffffff", raw[0])
	}
	if raw[1] != math.MaxUint64 {
		t.Errorf("i64 -1 = %#x", raw[1])
	}
	if api.DecodeF32(raw[2]) != 1.5 || api.DecodeF64(raw[3]) != -2.25 {
		t.Errorf("Floats decoded wrong: %v", raw)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		typ  api.ValueType
		raw  uint64
		want string
	}{
		{api.ValueTypeI32, 18, "18"},
		{api.ValueTypeI32, 0xffffffff, "-1"},
		{api.ValueTypeI64, math.MaxUint64, "-1"},
		{api.ValueTypeF32, api.EncodeF32(0.5), "0.5"},
		{api.ValueTypeF64, api.EncodeF64(math.NaN()), "NaN"},
		{api.ValueTypeF64, api.EncodeF64(math.Inf(-1)), "-Infinity"},
		{api.ValueTypeExternref, 0x2a, "0x2a"},
	}

	for _, tt := range tests {
		if got := FormatValue(tt.typ, tt.raw); got != tt.want {
			t.Errorf("FormatValue(%s, %#x) = %s, want %s", api.ValueTypeName(tt.typ), tt.raw, got, tt.want)
		}
	}
}

func TestSignature(t *testing.T) {
	i32 := api.ValueTypeI32
	tests := []struct {
		params, results []api.ValueType
		want            string
	}{
		{[]api.ValueType{i32, i32}, []api.ValueType{i32}, "(i32, i32) -> i32"},
		{nil, []api.ValueType{i32}, "() -> i32"},
		{nil, nil, "() -> ()"},
		{[]api.ValueType{i32}, []api.ValueType{i32, i32}, "(i32) -> (i32, i32)"},
	}

	for _, tt := range tests {
		if got := Signature(tt.params, tt.results); got != tt.want {
			t.Errorf("Signature = %s, want %s", got, tt.want)
		}
	}
}
