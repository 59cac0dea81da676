// Package ffi implements the C boundary of the library: loading a STEP file
// into a MeshSlice descriptor and releasing it again.
//
// The exported C symbols in the root package are thin wrappers around Load,
// Free and Release. Buffers referenced by a MeshSlice live on the C heap
// (package cmem), so the host may keep them after the call returns.
//
// Ownership: a successful Load moves the three buffers to the host. The host
// must hand the descriptor back exactly once, to Free or Release. Free takes
// the descriptor by value and cannot detect a second call with a copy of the
// same descriptor; doing so frees the buffers twice. Release zeroes the
// descriptor it is given, so releasing it again through the same pointer is
// a no-op.
package ffi

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"unicode/utf8"
	"unsafe"

	"github.com/chazu/foxtrot/pkg/cmem"
	"github.com/chazu/foxtrot/pkg/ctxlog"
	"github.com/chazu/foxtrot/pkg/loader"
	"github.com/chazu/foxtrot/pkg/mesh"
)

// MeshSlice mirrors the C struct of the same name:
//
//	typedef struct MeshSlice {
//	  const float *verts;
//	  const float *normals;
//	  const uint32_t *tris;
//	  uintptr_t vert_count;
//	  uintptr_t tri_count;
//	} MeshSlice;
//
// It does not own memory. Empty buffers are nil.
type MeshSlice struct {
	Verts     *float32
	Normals   *float32
	Tris      *uint32
	VertCount uintptr
	TriCount  uintptr
}

// VertexData returns the 3*VertCount position components.
func (s MeshSlice) VertexData() []float32 {
	return view(s.Verts, s.VertCount)
}

// NormalData returns the 3*VertCount normal components.
func (s MeshSlice) NormalData() []float32 {
	return view(s.Normals, s.VertCount)
}

// IndexData returns the 3*TriCount triangle indices.
func (s MeshSlice) IndexData() []uint32 {
	return view(s.Tris, s.TriCount)
}

// Flat returns a view of the buffers s references.
func (s MeshSlice) Flat() *mesh.Flat {
	return &mesh.Flat{
		Vertices: s.VertexData(),
		Normals:  s.NormalData(),
		Indices:  s.IndexData(),
	}
}

func view[T any](p *T, count uintptr) []T {
	if p == nil || count == 0 {
		return nil
	}
	if count > math.MaxInt/3 {
		panic("ffi: descriptor count out of range")
	}
	return unsafe.Slice(p, 3*int(count))
}

func describe(f *mesh.Flat) MeshSlice {
	return MeshSlice{
		Verts:     unsafe.SliceData(f.Vertices),
		Normals:   unsafe.SliceData(f.Normals),
		Tris:      unsafe.SliceData(f.Indices),
		VertCount: uintptr(f.VertexCount()),
		TriCount:  uintptr(f.TriangleCount()),
	}
}

// Load reads the STEP file named by the NUL-terminated UTF-8 string at path
// and, on success, writes a descriptor of its mesh to out and reports true.
// On any failure, including a panic anywhere in the pipeline, it reports
// false and leaves *out untouched. Load never panics.
func Load(path unsafe.Pointer, out *MeshSlice) bool {
	return load(context.Background(), loader.New(cmem.Allocator{}), path, out)
}

func load(ctx context.Context, p *loader.Pipeline, path unsafe.Pointer, out *MeshSlice) (ok bool) {
	log := ctxlog.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("ffi: %w: %v", loader.ErrInternal, r)
			log.Error("load aborted", "kind", loader.Kind(err), "err", err, "stack", string(debug.Stack()))
			ok = false
		}
	}()

	if path == nil || out == nil {
		log.Debug("load rejected", "err", "nil argument")
		return false
	}
	raw := cmem.GoBytes(path)
	if !utf8.Valid(raw) {
		err := fmt.Errorf("ffi: %w: path is not valid UTF-8", loader.ErrEncoding)
		log.Debug("load rejected", "kind", loader.Kind(err), "err", err)
		return false
	}

	flat, err := p.Load(ctx, string(raw))
	if err != nil {
		log.Debug("load failed", "kind", loader.Kind(err), "err", err)
		return false
	}
	published := false
	defer func() {
		if !published {
			p.Alloc.Free(flat)
		}
	}()

	*out = describe(flat)
	published = true
	return true
}

// Free releases the buffers of a descriptor produced by Load. The
// descriptor must not be freed or released again. The counts are not
// consulted, so Free cannot panic on a damaged descriptor.
func Free(s MeshSlice) {
	cmem.Free(unsafe.Pointer(s.Verts))
	cmem.Free(unsafe.Pointer(s.Normals))
	cmem.Free(unsafe.Pointer(s.Tris))
}

// Release frees the buffers *s references and zeroes *s. A nil s, or a
// descriptor already released through Release, is a no-op.
func Release(s *MeshSlice) {
	if s == nil {
		return
	}
	Free(*s)
	*s = MeshSlice{}
}
