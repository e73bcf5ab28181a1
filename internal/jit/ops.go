package jit

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	opEnd       byte = 0x0b
	opCall      byte = 0x10
	opDrop      byte = 0x1a
	opLocalGet  byte = 0x20
	opLocalSet  byte = 0x21
	opLocalTee  byte = 0x22
	opI32Store  byte = 0x36
	opI32Store8 byte = 0x3a
	opI32Const  byte = 0x41
	opI64Const  byte = 0x42
	opF32Const  byte = 0x43
	opF64Const  byte = 0x44
	opI32Add    byte = 0x6a
	opI32Sub    byte = 0x6b
	opI32Mul    byte = 0x6c
	opI64Add    byte = 0x7c
	opI64Sub    byte = 0x7d
	opI64Mul    byte = 0x7e
	opF32Add    byte = 0x92
	opF32Sub    byte = 0x93
	opF32Mul    byte = 0x94
	opF64Add    byte = 0xa0
	opF64Sub    byte = 0xa1
	opF64Mul    byte = 0xa2
)

// Drop discards the top of the stack.
func (cg *CodeGenerator) Drop() {
	if len(cg.stack) == 0 {
		cg.fail(fmt.Errorf("drop: stack is empty"))
		return
	}
	cg.stack = cg.stack[:len(cg.stack)-1]
	cg.emit(opDrop)
}

// Call calls function idx, popping its parameters and pushing its results.
func (cg *CodeGenerator) Call(idx uint32) {
	params, results, ok := cg.signature(idx)
	if !ok {
		cg.fail(fmt.Errorf("call: no function %d", idx))
		return
	}
	for i := len(params) - 1; i >= 0; i-- {
		cg.pop(params[i], "call")
	}
	for _, t := range results {
		cg.push(t)
	}
	cg.emit(opCall)
	cg.emit(appendU32(nil, idx)...)
}

// LocalOps emits local variable instructions.
type LocalOps struct {
	cg *CodeGenerator
}

// Declare adds a local of type t to the current function and returns its index.
func (l LocalOps) Declare(t ValType) uint32 {
	fn := l.cg.cur
	if fn == nil {
		l.cg.fail(fmt.Errorf("local declared outside function body"))
		return 0
	}
	fn.locals = append(fn.locals, t)
	return uint32(len(fn.Params) + len(fn.locals) - 1)
}

// Get pushes local idx.
func (l LocalOps) Get(idx uint32) {
	t, ok := l.cg.localType(idx)
	if !ok {
		l.cg.fail(fmt.Errorf("local.get: no local %d", idx))
		return
	}
	l.cg.push(t)
	l.cg.emit(opLocalGet)
	l.cg.emit(appendU32(nil, idx)...)
}

// Set pops into local idx.
func (l LocalOps) Set(idx uint32) {
	t, ok := l.cg.localType(idx)
	if !ok {
		l.cg.fail(fmt.Errorf("local.set: no local %d", idx))
		return
	}
	l.cg.pop(t, "local.set")
	l.cg.emit(opLocalSet)
	l.cg.emit(appendU32(nil, idx)...)
}

// Tee stores the top of the stack into local idx without popping it.
func (l LocalOps) Tee(idx uint32) {
	t, ok := l.cg.localType(idx)
	if !ok {
		l.cg.fail(fmt.Errorf("local.tee: no local %d", idx))
		return
	}
	l.cg.pop(t, "local.tee")
	l.cg.push(t)
	l.cg.emit(opLocalTee)
	l.cg.emit(appendU32(nil, idx)...)
}

// I32Ops emits i32 instructions.
type I32Ops struct {
	cg *CodeGenerator
}

func (o I32Ops) Const(v int32) {
	o.cg.push(TypeI32)
	o.cg.emit(opI32Const)
	o.cg.emit(appendS64(nil, int64(v))...)
}

// Store pops a value and an address and writes the value's 4 bytes at
// address+offset.
func (o I32Ops) Store(offset uint32) {
	o.store("i32.store", opI32Store, 2, offset)
}

// Store8 pops a value and an address and writes the value's low byte at
// address+offset.
func (o I32Ops) Store8(offset uint32) {
	o.store("i32.store8", opI32Store8, 0, offset)
}

func (o I32Ops) store(op string, code byte, align, offset uint32) {
	o.cg.pop(TypeI32, op)
	o.cg.pop(TypeI32, op)
	o.cg.usesMemory = true
	o.cg.emit(code)
	o.cg.emit(appendU32(appendU32(nil, align), offset)...)
}

func (o I32Ops) Add() { o.cg.binary(TypeI32, "i32.add", opI32Add) }
func (o I32Ops) Sub() { o.cg.binary(TypeI32, "i32.sub", opI32Sub) }
func (o I32Ops) Mul() { o.cg.binary(TypeI32, "i32.mul", opI32Mul) }

// I64Ops emits i64 instructions.
type I64Ops struct {
	cg *CodeGenerator
}

func (o I64Ops) Const(v int64) {
	o.cg.push(TypeI64)
	o.cg.emit(opI64Const)
	o.cg.emit(appendS64(nil, v)...)
}

func (o I64Ops) Add() { o.cg.binary(TypeI64, "i64.add", opI64Add) }
func (o I64Ops) Sub() { o.cg.binary(TypeI64, "i64.sub", opI64Sub) }
func (o I64Ops) Mul() { o.cg.binary(TypeI64, "i64.mul", opI64Mul) }

// F32Ops emits f32 instructions.
type F32Ops struct {
	cg *CodeGenerator
}

func (o F32Ops) Const(v float32) {
	o.cg.push(TypeF32)
	o.cg.emit(opF32Const)
	o.cg.emit(binary.LittleEndian.AppendUint32(nil, math.Float32bits(v))...)
}

func (o F32Ops) Add() { o.cg.binary(TypeF32, "f32.add", opF32Add) }
func (o F32Ops) Sub() { o.cg.binary(TypeF32, "f32.sub", opF32Sub) }
func (o F32Ops) Mul() { o.cg.binary(TypeF32, "f32.mul", opF32Mul) }

// F64Ops emits f64 instructions.
type F64Ops struct {
	cg *CodeGenerator
}

func (o F64Ops) Const(v float64) {
	o.cg.push(TypeF64)
	o.cg.emit(opF64Const)
	o.cg.emit(binary.LittleEndian.AppendUint64(nil, math.Float64bits(v))...)
}

func (o F64Ops) Add() { o.cg.binary(TypeF64, "f64.add", opF64Add) }
func (o F64Ops) Sub() { o.cg.binary(TypeF64, "f64.sub", opF64Sub) }
func (o F64Ops) Mul() { o.cg.binary(TypeF64, "f64.mul", opF64Mul) }
