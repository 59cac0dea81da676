//go:build !cgo

// Package cmem allocates mesh buffers for the foreign host. When cgo is
// disabled this stub is compiled instead: memory comes from the Go heap and
// is pinned by a registry until freed, so the package stays usable from pure
// Go hosts and tests. No C code can exist in such a build.
package cmem

import (
	"math"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/chazu/foxtrot/pkg/mesh"
)

// Compile-time interface check.
var _ mesh.Allocator = Allocator{}

var (
	live   atomic.Int64
	mu     sync.Mutex
	pinned = map[unsafe.Pointer][]byte{}
)

// Live returns the number of cmem allocations not yet freed.
func Live() int64 {
	return live.Load()
}

// Malloc returns size bytes of zeroed memory, or nil for size 0.
func Malloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}
	buf := make([]byte, size)
	ptr := unsafe.Pointer(unsafe.SliceData(buf))
	mu.Lock()
	pinned[ptr] = buf
	mu.Unlock()
	live.Add(1)
	return ptr
}

// Free releases memory obtained from this package. Free(nil) is a no-op.
func Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	mu.Lock()
	delete(pinned, ptr)
	mu.Unlock()
	live.Add(-1)
}

// Allocator implements mesh.Allocator.
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

// CString copies s into a NUL-terminated buffer. Release it with Free.
func CString(s string) unsafe.Pointer {
	return CBytes([]byte(s))
}

// CBytes copies b followed by a NUL byte. Release it with Free.
func CBytes(b []byte) unsafe.Pointer {
	ptr := Malloc(uintptr(len(b)) + 1)
	buf := unsafe.Slice((*byte)(ptr), len(b)+1)
	copy(buf, b)
	buf[len(b)] = 0
	return ptr
}

// GoBytes copies the NUL-terminated string at ptr.
func GoBytes(ptr unsafe.Pointer) []byte {
	var out []byte
	for p := (*byte)(ptr); *p != 0; p = (*byte)(unsafe.Add(unsafe.Pointer(p), 1)) {
		out = append(out, *p)
	}
	return out
}
