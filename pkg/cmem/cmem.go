//go:build cgo

// Package cmem allocates mesh buffers on the C heap so that their addresses
// can be handed to a foreign host and retained after the call returns,
// which the cgo pointer rules forbid for Go memory.
//
// Every allocation made here is counted; Live reports the number still
// outstanding, which tests use to prove that each buffer is freed once.
package cmem

/*
#include <stdlib.h>
#include <string.h>
*/
import "C"

import (
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/chazu/foxtrot/pkg/mesh"
)

// Compile-time interface check.
var _ mesh.Allocator = Allocator{}

var live atomic.Int64

// Live returns the number of cmem allocations not yet freed.
func Live() int64 {
	return live.Load()
}

// Malloc returns size bytes of uninitialized C memory, or nil for size 0.
// It panics when the C allocator is exhausted.
func Malloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}
	ptr := C.malloc(C.size_t(size))
	if ptr == nil {
		panic("cmem: out of memory")
	}
	live.Add(1)
	return ptr
}

// Free releases memory obtained from this package. Free(nil) is a no-op.
func Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	C.free(ptr)
	live.Add(-1)
}

// Allocator implements mesh.Allocator on the C heap.
type Allocator struct{}

func (Allocator) Float32s(n int) []float32 {
	if n < 0 || n > math.MaxInt/4 {
		panic("cmem: invalid buffer length")
	}
	ptr := Malloc(uintptr(n) * 4)
	if ptr == nil {
		return nil
	}
	return unsafe.Slice((*float32)(ptr), n)
}

func (Allocator) Uint32s(n int) []uint32 {
	if n < 0 || n > math.MaxInt/4 {
		panic("cmem: invalid buffer length")
	}
	ptr := Malloc(uintptr(n) * 4)
	if ptr == nil {
		return nil
	}
	return unsafe.Slice((*uint32)(ptr), n)
}

func (Allocator) Free(f *mesh.Flat) {
	if f == nil {
		return
	}
	Free(unsafe.Pointer(unsafe.SliceData(f.Vertices)))
	Free(unsafe.Pointer(unsafe.SliceData(f.Normals)))
	Free(unsafe.Pointer(unsafe.SliceData(f.Indices)))
	*f = mesh.Flat{}
}

// CString copies s into a NUL-terminated C string. Release it with Free.
func CString(s string) unsafe.Pointer {
	return CBytes([]byte(s))
}

// CBytes copies b into C memory followed by a NUL byte, without checking b
// for interior NULs or encoding. Release it with Free.
func CBytes(b []byte) unsafe.Pointer {
	ptr := Malloc(uintptr(len(b)) + 1)
	buf := unsafe.Slice((*byte)(ptr), len(b)+1)
	copy(buf, b)
	buf[len(b)] = 0
	return ptr
}

// GoBytes copies the NUL-terminated C string at ptr into Go memory.
func GoBytes(ptr unsafe.Pointer) []byte {
	n := C.strlen((*C.char)(ptr))
	return C.GoBytes(ptr, C.int(n))
}
