package wasm

import (
	"github.com/tetratelabs/wazero/api"
)

// Memory provides bounds-checked access to a module's linear memory.
//
// Wasm modules have their own isolated memory space that is separate from Go's memory.
// Reads through api.Memory return slices that alias that space, so they are
// only valid until the memory grows or the module is closed. Memory hands
// those slices out as Views, which check both conditions before every use.
type Memory struct {
	mem   api.Memory
	owner api.Module
}

// NewMemory creates a memory helper over the module's memory.
// It returns nil if the module defines or imports no memory.
func NewMemory(module api.Module) *Memory {
	mem := module.Memory()
	if mem == nil {
		return nil
	}
	return &Memory{mem: mem, owner: module}
}

// Size returns the current memory size in bytes.
func (m *Memory) Size() uint32 {
	return m.mem.Size()
}

// ReadBytes copies length bytes out of Wasm memory.
func (m *Memory) ReadBytes(ptr uint32, length uint32) ([]byte, bool) {
	buf, ok := m.mem.Read(ptr, length)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), buf...), true
}

// View returns a borrowed view of [ptr, ptr+length) without copying.
func (m *Memory) View(ptr uint32, length uint32) (*View, error) {
	buf, ok := m.mem.Read(ptr, length)
	if !ok {
		return nil, &MemoryAccessError{
			Operation: "view",
			Address:   ptr,
			Length:    length,
			Err:       ErrOutOfBounds,
		}
	}
	return &View{
		mem:    m.mem,
		owner:  m.owner,
		ptr:    ptr,
		length: length,
		size:   m.mem.Size(),
		data:   buf,
	}, nil
}

// View is a non-owning window over a range of linear memory.
//
// The slice it wraps aliases the module's memory. It is invalidated when the
// memory grows (wazero may reallocate the backing array) or when the owning
// module is closed; Bytes reports either case as a StaleViewError instead of
// returning bytes that no longer belong to the module.
type View struct {
	mem    api.Memory
	owner  api.Module
	ptr    uint32
	length uint32
	size   uint32
	data   []byte
}

// Bytes returns the borrowed bytes. Callers must not retain or modify them.
func (v *View) Bytes() ([]byte, error) {
	if v.owner != nil && v.owner.IsClosed() {
		return nil, &StaleViewError{Address: v.ptr, Length: v.length, Reason: "owning module closed"}
	}
	if size := v.mem.Size(); size != v.size {
		return nil, &StaleViewError{Address: v.ptr, Length: v.length, Reason: "memory resized"}
	}
	return v.data, nil
}

// Pointer returns the start address of the view.
func (v *View) Pointer() uint32 {
	return v.ptr
}

// Len returns the length of the view in bytes.
func (v *View) Len() uint32 {
	return v.length
}
