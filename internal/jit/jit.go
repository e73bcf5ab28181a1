// Package jit generates WebAssembly binaries at runtime.
//
// A CodeGenerator collects function bodies, a memory, data segments and
// exports, then emits a module in the binary format. Instructions are
// type-checked against a running operand stack while the body is built, so
// a malformed body is reported by Emit instead of by the engine that later
// compiles the output.
//
//	cg := jit.New()
//	add := cg.Function([]jit.ValType{jit.TypeI32, jit.TypeI32}, []jit.ValType{jit.TypeI32}, func() {
//		cg.Local.Get(0)
//		cg.Local.Get(1)
//		cg.I32.Add()
//	})
//	cg.Export(add, "add")
//	bin, err := cg.Emit()
package jit

import (
	"fmt"
)

// ValType is a WebAssembly value type.
type ValType byte

const (
	TypeI32 ValType = 0x7f
	TypeI64 ValType = 0x7e
	TypeF32 ValType = 0x7d
	TypeF64 ValType = 0x7c
)

// String returns the text format name of the type.
func (t ValType) String() string {
	switch t {
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	default:
		return fmt.Sprintf("valtype(0x%02x)", byte(t))
	}
}

// PageSize is the size of one linear memory page.
const PageSize = 65536

// Function is a function defined in the generated module.
type Function struct {
	Params  []ValType
	Results []ValType

	locals  []ValType
	body    []byte
	typeIdx uint32
}

type importFunc struct {
	module  string
	name    string
	params  []ValType
	results []ValType
	typeIdx uint32
}

type funcType struct {
	params  []ValType
	results []ValType
}

type export struct {
	name string
	kind byte
	idx  uint32
}

type dataSegment struct {
	offset uint32
	data   []byte
}

type memoryDef struct {
	min    uint32
	max    uint32
	hasMax bool
}

// CodeGenerator builds a single WebAssembly module.
type CodeGenerator struct {
	Local LocalOps
	I32   I32Ops
	I64   I64Ops
	F32   F32Ops
	F64   F64Ops

	types     []funcType
	imports   []importFunc
	functions []*Function
	exports   []export
	memory    *memoryDef
	data      []dataSegment

	cur   *Function
	stack []ValType
	err   error

	// usesMemory is set by load and store instructions.
	usesMemory bool
}

// New creates an empty code generator.
func New() *CodeGenerator {
	cg := &CodeGenerator{}
	cg.Local = LocalOps{cg: cg}
	cg.I32 = I32Ops{cg: cg}
	cg.I64 = I64Ops{cg: cg}
	cg.F32 = F32Ops{cg: cg}
	cg.F64 = F64Ops{cg: cg}
	return cg
}

// Function defines a function and returns its index. body emits the
// instructions; when it returns, the operand stack must hold exactly the
// declared results.
func (cg *CodeGenerator) Function(params, results []ValType, body func()) uint32 {
	if cg.cur != nil {
		cg.fail(fmt.Errorf("nested function definition"))
		return 0
	}

	fn := &Function{
		Params:  append([]ValType(nil), params...),
		Results: append([]ValType(nil), results...),
		typeIdx: cg.typeIndex(params, results),
	}
	idx := uint32(len(cg.imports) + len(cg.functions))
	cg.functions = append(cg.functions, fn)

	cg.cur = fn
	cg.stack = cg.stack[:0]
	if body != nil {
		body()
	}
	cg.checkStack(results, fmt.Sprintf("function %d result", idx))
	cg.emit(opEnd)
	cg.cur = nil

	return idx
}

// ImportFunction declares a function imported from module.name and returns
// its index. Imports take the lowest indices, so all of them must be
// declared before the first Function.
func (cg *CodeGenerator) ImportFunction(module, name string, params, results []ValType) uint32 {
	if len(cg.functions) > 0 {
		cg.fail(fmt.Errorf("import %s.%s declared after a function definition", module, name))
		return 0
	}
	cg.imports = append(cg.imports, importFunc{
		module:  module,
		name:    name,
		params:  append([]ValType(nil), params...),
		results: append([]ValType(nil), results...),
		typeIdx: cg.typeIndex(params, results),
	})
	return uint32(len(cg.imports) - 1)
}

// Memory declares the module's linear memory with a minimum page count.
func (cg *CodeGenerator) Memory(min uint32) {
	cg.memory = &memoryDef{min: min}
}

// MemoryWithMax declares the module's linear memory with page bounds.
func (cg *CodeGenerator) MemoryWithMax(min, max uint32) {
	if max < min {
		cg.fail(fmt.Errorf("memory max %d below min %d", max, min))
		return
	}
	cg.memory = &memoryDef{min: min, max: max, hasMax: true}
}

// Data places bytes at offset in memory 0 when the module is instantiated.
func (cg *CodeGenerator) Data(offset uint32, data []byte) {
	cg.data = append(cg.data, dataSegment{offset: offset, data: append([]byte(nil), data...)})
}

// Export exports a function under name.
func (cg *CodeGenerator) Export(fnIdx uint32, name string) {
	if int(fnIdx) >= len(cg.imports)+len(cg.functions) {
		cg.fail(fmt.Errorf("export %q: function index %d out of range", name, fnIdx))
		return
	}
	cg.exports = append(cg.exports, export{name: name, kind: externFunc, idx: fnIdx})
}

// ExportMemory exports memory 0 under name.
func (cg *CodeGenerator) ExportMemory(name string) {
	cg.exports = append(cg.exports, export{name: name, kind: externMemory})
}

// Err returns the first error recorded while building, if any.
func (cg *CodeGenerator) Err() error {
	return cg.err
}

func (cg *CodeGenerator) typeIndex(params, results []ValType) uint32 {
	for i, t := range cg.types {
		if sameTypes(t.params, params) && sameTypes(t.results, results) {
			return uint32(i)
		}
	}
	cg.types = append(cg.types, funcType{
		params:  append([]ValType(nil), params...),
		results: append([]ValType(nil), results...),
	})
	return uint32(len(cg.types) - 1)
}

func sameTypes(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (cg *CodeGenerator) fail(err error) {
	if cg.err == nil {
		cg.err = err
	}
}

func (cg *CodeGenerator) emit(b ...byte) {
	if cg.cur == nil {
		cg.fail(fmt.Errorf("instruction 0x%02x outside function body", b[0]))
		return
	}
	cg.cur.body = append(cg.cur.body, b...)
}

func (cg *CodeGenerator) push(t ValType) {
	cg.stack = append(cg.stack, t)
}

func (cg *CodeGenerator) pop(want ValType, op string) {
	if len(cg.stack) == 0 {
		cg.fail(&TypeError{Op: op, Want: want, Empty: true})
		return
	}
	got := cg.stack[len(cg.stack)-1]
	cg.stack = cg.stack[:len(cg.stack)-1]
	if got != want {
		cg.fail(&TypeError{Op: op, Want: want, Got: got})
	}
}

func (cg *CodeGenerator) binary(t ValType, op string, code byte) {
	cg.pop(t, op)
	cg.pop(t, op)
	cg.push(t)
	cg.emit(code)
}

func (cg *CodeGenerator) checkStack(want []ValType, op string) {
	if len(cg.stack) != len(want) {
		cg.fail(fmt.Errorf("%s: stack holds %d values, want %d", op, len(cg.stack), len(want)))
		return
	}
	for i := range want {
		if cg.stack[i] != want[i] {
			cg.fail(&TypeError{Op: op, Want: want[i], Got: cg.stack[i]})
			return
		}
	}
}

// signature returns the parameter and result types of function idx.
func (cg *CodeGenerator) signature(idx uint32) (params, results []ValType, ok bool) {
	if int(idx) < len(cg.imports) {
		imp := cg.imports[idx]
		return imp.params, imp.results, true
	}
	idx -= uint32(len(cg.imports))
	if int(idx) < len(cg.functions) {
		fn := cg.functions[idx]
		return fn.Params, fn.Results, true
	}
	return nil, nil, false
}

func (cg *CodeGenerator) localType(idx uint32) (ValType, bool) {
	fn := cg.cur
	if fn == nil {
		return 0, false
	}
	if int(idx) < len(fn.Params) {
		return fn.Params[idx], true
	}
	idx -= uint32(len(fn.Params))
	if int(idx) < len(fn.locals) {
		return fn.locals[idx], true
	}
	return 0, false
}

// TypeError reports an operand of the wrong type, or a missing operand.
type TypeError struct {
	Op    string
	Want  ValType
	Got   ValType
	Empty bool
}

func (e *TypeError) Error() string {
	if e.Empty {
		return fmt.Sprintf("%s: expected %s on stack, stack is empty", e.Op, e.Want)
	}
	return fmt.Sprintf("%s: expected %s on stack, got %s", e.Op, e.Want, e.Got)
}
