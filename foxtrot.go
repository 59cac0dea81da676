// Command foxtrot builds the shared library a foreign host links against to
// load STEP files as triangle meshes:
//
//	go build -buildmode=c-shared -o libfoxtrot.so .
//
// The generated header declares the symbols below; the MeshSlice layout is
// fixed by the preamble and checked against pkg/ffi at compile time. See
// examples/host.c for a host.
package main

/*
#include <stdbool.h>
#include <stdint.h>

typedef struct MeshSlice {
  const float *verts;
  const float *normals;
  const uint32_t *tris;
  uintptr_t vert_count;
  uintptr_t tri_count;
} MeshSlice;
*/
import "C"

import (
	"unsafe"

	"github.com/chazu/foxtrot/pkg/ffi"
)

// The Go mirror must match the C struct field for field; a mismatch makes
// one of these constants overflow.
const (
	_ = -uint(unsafe.Sizeof(C.MeshSlice{}) ^ unsafe.Sizeof(ffi.MeshSlice{}))

	_ = -uint(unsafe.Offsetof(C.MeshSlice{}.normals) ^ unsafe.Offsetof(ffi.MeshSlice{}.Normals))
	_ = -uint(unsafe.Offsetof(C.MeshSlice{}.tris) ^ unsafe.Offsetof(ffi.MeshSlice{}.Tris))
	_ = -uint(unsafe.Offsetof(C.MeshSlice{}.vert_count) ^ unsafe.Offsetof(ffi.MeshSlice{}.VertCount))
	_ = -uint(unsafe.Offsetof(C.MeshSlice{}.tri_count) ^ unsafe.Offsetof(ffi.MeshSlice{}.TriCount))
)

// foxtrot_load_step loads the STEP file at path. On success it fills
// *out_mesh and returns true; the caller then owns the buffers and must
// return them with foxtrot_free_mesh or foxtrot_release_mesh exactly once.
// On failure it returns false and does not touch *out_mesh.
//
//export foxtrot_load_step
func foxtrot_load_step(path *C.char, out_mesh *C.MeshSlice) C.bool {
	return C.bool(ffi.Load(unsafe.Pointer(path), (*ffi.MeshSlice)(unsafe.Pointer(out_mesh))))
}

// foxtrot_free_mesh frees the buffers of a mesh from foxtrot_load_step.
// Freeing the same mesh twice is undefined behavior.
//
//export foxtrot_free_mesh
func foxtrot_free_mesh(slice C.MeshSlice) {
	ffi.Free(*(*ffi.MeshSlice)(unsafe.Pointer(&slice)))
}

// foxtrot_release_mesh frees the buffers of *slice and zeroes it, so a
// repeated call on the same descriptor does nothing. NULL is ignored.
//
//export foxtrot_release_mesh
func foxtrot_release_mesh(slice *C.MeshSlice) {
	ffi.Release((*ffi.MeshSlice)(unsafe.Pointer(slice)))
}

func main() {}
