package jit

import (
	"fmt"
)

var (
	magic   = []byte{0x00, 0x61, 0x73, 0x6d}
	version = []byte{0x01, 0x00, 0x00, 0x00}
)

const (
	sectionType     byte = 1
	sectionImport   byte = 2
	sectionFunction byte = 3
	sectionMemory   byte = 5
	sectionExport   byte = 7
	sectionCode     byte = 10
	sectionData     byte = 11

	funcTypeByte byte = 0x60

	externFunc   byte = 0x00
	externMemory byte = 0x02
)

// Emit encodes the module. It returns the first error recorded while the
// module was being built.
func (cg *CodeGenerator) Emit() ([]byte, error) {
	if cg.err != nil {
		return nil, cg.err
	}
	if cg.cur != nil {
		return nil, fmt.Errorf("emit inside function body")
	}
	if len(cg.data) > 0 && cg.memory == nil {
		return nil, fmt.Errorf("data segments require a memory")
	}
	if cg.usesMemory && cg.memory == nil {
		return nil, fmt.Errorf("memory instructions require a memory")
	}
	for _, e := range cg.exports {
		if e.kind == externMemory && cg.memory == nil {
			return nil, fmt.Errorf("export %q: module has no memory", e.name)
		}
	}
	if cg.memory != nil {
		for _, d := range cg.data {
			end := uint64(d.offset) + uint64(len(d.data))
			if end > uint64(cg.memory.min)*PageSize {
				return nil, fmt.Errorf("data segment [%d, %d) exceeds %d initial pages", d.offset, end, cg.memory.min)
			}
		}
	}

	out := append([]byte(nil), magic...)
	out = append(out, version...)

	if len(cg.types) > 0 {
		sec := appendU32(nil, uint32(len(cg.types)))
		for _, t := range cg.types {
			sec = append(sec, funcTypeByte)
			sec = appendValTypes(sec, t.params)
			sec = appendValTypes(sec, t.results)
		}
		out = appendSection(out, sectionType, sec)
	}

	if len(cg.imports) > 0 {
		sec := appendU32(nil, uint32(len(cg.imports)))
		for _, imp := range cg.imports {
			sec = appendName(sec, imp.module)
			sec = appendName(sec, imp.name)
			sec = append(sec, externFunc)
			sec = appendU32(sec, imp.typeIdx)
		}
		out = appendSection(out, sectionImport, sec)
	}

	if len(cg.functions) > 0 {
		sec := appendU32(nil, uint32(len(cg.functions)))
		for _, fn := range cg.functions {
			sec = appendU32(sec, fn.typeIdx)
		}
		out = appendSection(out, sectionFunction, sec)
	}

	if m := cg.memory; m != nil {
		sec := appendU32(nil, 1)
		if m.hasMax {
			sec = append(sec, 0x01)
			sec = appendU32(sec, m.min)
			sec = appendU32(sec, m.max)
		} else {
			sec = append(sec, 0x00)
			sec = appendU32(sec, m.min)
		}
		out = appendSection(out, sectionMemory, sec)
	}

	if len(cg.exports) > 0 {
		sec := appendU32(nil, uint32(len(cg.exports)))
		for _, e := range cg.exports {
			sec = appendName(sec, e.name)
			sec = append(sec, e.kind)
			sec = appendU32(sec, e.idx)
		}
		out = appendSection(out, sectionExport, sec)
	}

	if len(cg.functions) > 0 {
		sec := appendU32(nil, uint32(len(cg.functions)))
		for _, fn := range cg.functions {
			entry := appendLocals(nil, fn.locals)
			entry = append(entry, fn.body...)
			sec = appendU32(sec, uint32(len(entry)))
			sec = append(sec, entry...)
		}
		out = appendSection(out, sectionCode, sec)
	}

	if len(cg.data) > 0 {
		sec := appendU32(nil, uint32(len(cg.data)))
		for _, d := range cg.data {
			// Active segment for memory 0, offset given by a constant expression.
			sec = append(sec, 0x00, opI32Const)
			sec = appendS64(sec, int64(int32(d.offset)))
			sec = append(sec, opEnd)
			sec = appendU32(sec, uint32(len(d.data)))
			sec = append(sec, d.data...)
		}
		out = appendSection(out, sectionData, sec)
	}

	return out, nil
}

func appendSection(out []byte, id byte, payload []byte) []byte {
	out = append(out, id)
	out = appendU32(out, uint32(len(payload)))
	return append(out, payload...)
}

func appendValTypes(out []byte, types []ValType) []byte {
	out = appendU32(out, uint32(len(types)))
	for _, t := range types {
		out = append(out, byte(t))
	}
	return out
}

// appendLocals writes the local declarations run-length grouped by type.
func appendLocals(out []byte, locals []ValType) []byte {
	type group struct {
		n uint32
		t ValType
	}
	var groups []group
	for _, t := range locals {
		if len(groups) > 0 && groups[len(groups)-1].t == t {
			groups[len(groups)-1].n++
			continue
		}
		groups = append(groups, group{n: 1, t: t})
	}
	out = appendU32(out, uint32(len(groups)))
	for _, g := range groups {
		out = appendU32(out, g.n)
		out = append(out, byte(g.t))
	}
	return out
}

func appendName(out []byte, name string) []byte {
	out = appendU32(out, uint32(len(name)))
	return append(out, name...)
}

// appendU32 appends v as unsigned LEB128.
func appendU32(out []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

// appendS64 appends v as signed LEB128.
func appendS64(out []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
