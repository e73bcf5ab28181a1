package jit

import (
	"fmt"
	"math"
)

// Default export names of an embedding runtime produced by EmbeddingModule.
const (
	DefaultPointerExport = "jit_add"
	DefaultLengthExport  = "jit_add_len"
	DefaultMemoryExport  = "memory"
	DefaultBlobOffset    = 1024
)

// AddModule returns a module exporting add(i32, i32) -> i32.
func AddModule() ([]byte, error) {
	cg := New()
	params := []ValType{TypeI32, TypeI32}
	fn := cg.Function(params, []ValType{TypeI32}, func() {
		cg.Local.Get(0)
		cg.Local.Get(1)
		cg.I32.Add()
	})
	cg.Export(fn, "add")
	return cg.Emit()
}

// BinaryModule returns a module exporting name(t, t) -> t computing op,
// one of "add", "sub" or "mul".
func BinaryModule(name, op string, t ValType) ([]byte, error) {
	cg := New()

	var emitOp func()
	switch t {
	case TypeI32:
		emitOp = pick(op, cg.I32.Add, cg.I32.Sub, cg.I32.Mul)
	case TypeI64:
		emitOp = pick(op, cg.I64.Add, cg.I64.Sub, cg.I64.Mul)
	case TypeF32:
		emitOp = pick(op, cg.F32.Add, cg.F32.Sub, cg.F32.Mul)
	case TypeF64:
		emitOp = pick(op, cg.F64.Add, cg.F64.Sub, cg.F64.Mul)
	}
	if emitOp == nil {
		return nil, fmt.Errorf("unsupported binary op %s.%s", t, op)
	}

	fn := cg.Function([]ValType{t, t}, []ValType{t}, func() {
		cg.Local.Get(0)
		cg.Local.Get(1)
		emitOp()
	})
	cg.Export(fn, name)
	return cg.Emit()
}

func pick(op string, add, sub, mul func()) func() {
	switch op {
	case "add":
		return add
	case "sub":
		return sub
	case "mul":
		return mul
	}
	return nil
}

// EmbedOptions controls the layout of an embedding runtime module.
type EmbedOptions struct {
	// Offset of the blob in linear memory. Zero selects DefaultBlobOffset.
	Offset uint32
	// PointerExport names the () -> i32 export returning the blob address.
	PointerExport string
	// LengthExport names the () -> i32 export returning the blob length.
	LengthExport string
	// MemoryExport names the exported linear memory.
	MemoryExport string
	// ExtraPages adds pages beyond what the blob needs.
	ExtraPages uint32
}

func (o *EmbedOptions) withDefaults() EmbedOptions {
	out := EmbedOptions{}
	if o != nil {
		out = *o
	}
	if out.Offset == 0 {
		out.Offset = DefaultBlobOffset
	}
	if out.PointerExport == "" {
		out.PointerExport = DefaultPointerExport
	}
	if out.LengthExport == "" {
		out.LengthExport = DefaultLengthExport
	}
	if out.MemoryExport == "" {
		out.MemoryExport = DefaultMemoryExport
	}
	return out
}

// EmbeddingModule returns a module whose linear memory holds blob and which
// exports accessors for the blob's address and length.
func EmbeddingModule(blob []byte, opts *EmbedOptions) ([]byte, error) {
	o := opts.withDefaults()

	end := uint64(o.Offset) + uint64(len(blob))
	if end > math.MaxUint32 {
		return nil, fmt.Errorf("blob of %d bytes at offset %d exceeds 32-bit memory", len(blob), o.Offset)
	}
	pages := uint32((end + PageSize - 1) / PageSize)
	if pages == 0 {
		pages = 1
	}
	pages += o.ExtraPages

	cg := New()
	cg.Memory(pages)
	cg.ExportMemory(o.MemoryExport)
	cg.Data(o.Offset, blob)

	ptr := cg.Function(nil, []ValType{TypeI32}, func() {
		cg.I32.Const(int32(o.Offset))
	})
	length := cg.Function(nil, []ValType{TypeI32}, func() {
		cg.I32.Const(int32(len(blob)))
	})
	cg.Export(ptr, o.PointerExport)
	cg.Export(length, o.LengthExport)

	return cg.Emit()
}

// AddEmbeddingModule is the default artifact: an embedding runtime holding
// AddModule.
func AddEmbeddingModule() ([]byte, error) {
	add, err := AddModule()
	if err != nil {
		return nil, err
	}
	return EmbeddingModule(add, nil)
}
