package mesh

import (
	"fmt"
	"math"
)

// Allocator supplies the memory the flat buffers live in. Buffers obtained
// from an Allocator must be returned to the same Allocator.
type Allocator interface {
	// Float32s returns a buffer of exactly n elements; nil when n is 0.
	Float32s(n int) []float32
	// Uint32s returns a buffer of exactly n elements; nil when n is 0.
	Uint32s(n int) []uint32
	// Free releases every non-nil buffer of f and clears its fields.
	Free(f *Flat)
}

// Heap allocates on the Go heap. Free only drops the references.
type Heap struct{}

func (Heap) Float32s(n int) []float32 {
	if n == 0 {
		return nil
	}
	return make([]float32, n)
}

func (Heap) Uint32s(n int) []uint32 {
	if n == 0 {
		return nil
	}
	return make([]uint32, n)
}

func (Heap) Free(f *Flat) {
	if f != nil {
		*f = Flat{}
	}
}

// Check reports whether every triangle indexes an existing vertex and the
// vertex count is addressable by a uint32 index.
func Check(m *Mesh) error {
	if uint64(len(m.Verts)) > math.MaxUint32 {
		return fmt.Errorf("mesh: %d vertices exceed the uint32 index range", len(m.Verts))
	}
	n := uint32(len(m.Verts))
	for i, t := range m.Triangles {
		for _, v := range t.Verts {
			if v >= n {
				return fmt.Errorf("mesh: triangle %d references vertex %d of %d", i, v, n)
			}
		}
	}
	return nil
}

// Flatten writes m into three buffers obtained from a. For each vertex the
// position and normal components are emitted in (x, y, z) order, and each
// triangle contributes its indices in winding order; record order is kept.
//
// Coordinates are narrowed from float64 to float32 without range checks.
// This step is lossy: precision is dropped and values beyond float32 range
// come out as whatever the platform conversion yields (±Inf on IEEE 754
// hardware). The host does not need double precision.
//
// On error or panic every buffer already obtained from a is freed before
// Flatten returns or unwinds.
func Flatten(m *Mesh, a Allocator) (*Flat, error) {
	if err := Check(m); err != nil {
		return nil, err
	}
	nv, nt := len(m.Verts), len(m.Triangles)

	f := &Flat{}
	done := false
	defer func() {
		if !done {
			a.Free(f)
		}
	}()

	f.Vertices = a.Float32s(3 * nv)
	f.Normals = a.Float32s(3 * nv)
	f.Indices = a.Uint32s(3 * nt)
	if len(f.Vertices) != 3*nv || len(f.Normals) != 3*nv || len(f.Indices) != 3*nt {
		return nil, fmt.Errorf("mesh: allocator returned short buffers")
	}

	for i, v := range m.Verts {
		f.Vertices[i*3+0] = float32(v.Pos.X)
		f.Vertices[i*3+1] = float32(v.Pos.Y)
		f.Vertices[i*3+2] = float32(v.Pos.Z)

		f.Normals[i*3+0] = float32(v.Norm.X)
		f.Normals[i*3+1] = float32(v.Norm.Y)
		f.Normals[i*3+2] = float32(v.Norm.Z)
	}
	for i, t := range m.Triangles {
		copy(f.Indices[i*3:i*3+3], t.Verts[:])
	}

	done = true
	return f, nil
}
