package wasm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// CallResult is the outcome of invoking an exported function.
type CallResult struct {
	Function    string
	Params      []api.ValueType
	ResultTypes []api.ValueType
	Raw         []uint64
}

// String formats the results, one per value, separated by spaces.
func (r *CallResult) String() string {
	parts := make([]string, len(r.Raw))
	for i, v := range r.Raw {
		parts[i] = FormatValue(r.ResultTypes[i], v)
	}
	return strings.Join(parts, " ")
}

// Call invokes the exported function name with arguments given in text form.
// Each argument is parsed according to the matching parameter type.
func (i *Instance) Call(ctx context.Context, name string, args ...string) (*CallResult, error) {
	fn, err := i.Function(name)
	if err != nil {
		return nil, err
	}

	def := fn.Definition()
	params, err := ParseArgs(name, def.ParamTypes(), args)
	if err != nil {
		return nil, err
	}

	if i.runtime != nil && i.runtime.Debug() {
		i.logger.Debug("Calling exported function",
			zap.String("instance_id", i.ID),
			zap.String("function", name),
			zap.Strings("args", args),
		)
	}

	raw, err := fn.Call(ctx, params...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, contextError(ctx, ctxErr)
		}
		return nil, &CallError{ModuleName: i.Name, FunctionName: name, Err: err}
	}

	return &CallResult{
		Function:    name,
		Params:      def.ParamTypes(),
		ResultTypes: def.ResultTypes(),
		Raw:         raw,
	}, nil
}

// ErrArity is wrapped by ArgumentError when the argument count is wrong.
var ErrArity = errors.New("wrong number of arguments")

// ParseArgs converts text arguments to the raw encoding of types.
//
// Integers accept any strconv base prefix. i32 values outside the signed
// range wrap modulo 2^32, so both -1 and 4294967295 encode as 0xffffffff.
func ParseArgs(function string, types []api.ValueType, args []string) ([]uint64, error) {
	if len(types) != len(args) {
		return nil, &ArgumentError{
			FunctionName: function,
			Index:        -1,
			Err:          fmt.Errorf("%w: got %d, want %d", ErrArity, len(args), len(types)),
		}
	}

	out := make([]uint64, len(args))
	for idx, s := range args {
		v, err := parseValue(types[idx], strings.TrimSpace(s))
		if err != nil {
			return nil, &ArgumentError{FunctionName: function, Index: idx, Value: s, Err: err}
		}
		out[idx] = v
	}
	return out, nil
}

func parseValue(t api.ValueType, s string) (uint64, error) {
	switch t {
	case api.ValueTypeI32:
		v, err := parseInt(s, 32)
		if err != nil {
			return 0, err
		}
		return api.EncodeI32(int32(v)), nil
	case api.ValueTypeI64:
		v, err := parseInt(s, 64)
		if err != nil {
			return 0, err
		}
		return api.EncodeI64(v), nil
	case api.ValueTypeF32:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return 0, err
		}
		return api.EncodeF32(float32(f)), nil
	case api.ValueTypeF64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		return api.EncodeF64(f), nil
	default:
		return 0, fmt.Errorf("unsupported parameter type %s", api.ValueTypeName(t))
	}
}

// parseInt accepts signed values and unsigned values up to 2^bits-1.
func parseInt(s string, bits int) (int64, error) {
	if v, err := strconv.ParseInt(s, 0, bits); err == nil {
		return v, nil
	}
	u, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, err
	}
	return int64(u), nil
}

// FormatValue renders a raw value of type t the way it reads in source:
// signed decimal for integers, shortest round-trip form for floats.
func FormatValue(t api.ValueType, v uint64) string {
	switch t {
	case api.ValueTypeI32:
		return strconv.FormatInt(int64(api.DecodeI32(v)), 10)
	case api.ValueTypeI64:
		return strconv.FormatInt(int64(v), 10)
	case api.ValueTypeF32:
		return formatFloat(float64(api.DecodeF32(v)), 32)
	case api.ValueTypeF64:
		return formatFloat(api.DecodeF64(v), 64)
	default:
		return "0x" + strconv.FormatUint(v, 16)
	}
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}

// Signature renders a function type as "(i32, i32) -> i32".
func Signature(params, results []api.ValueType) string {
	names := func(types []api.ValueType) string {
		parts := make([]string, len(types))
		for i, t := range types {
			parts[i] = api.ValueTypeName(t)
		}
		return strings.Join(parts, ", ")
	}
	if len(results) == 1 {
		return "(" + names(params) + ") -> " + names(results)
	}
	return "(" + names(params) + ") -> (" + names(results) + ")"
}
