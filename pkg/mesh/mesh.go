// Package mesh defines the triangulated mesh produced by the triangulation
// engine and the flat, C-compatible buffers it is converted into before it
// crosses the library boundary.
package mesh

import v3 "github.com/deadsy/sdfx/vec/v3"

// Vertex is a double precision position with its unit normal.
type Vertex struct {
	Pos  v3.Vec
	Norm v3.Vec
}

// Triangle holds three indices into Mesh.Verts in winding order.
type Triangle struct {
	Verts [3]uint32
}

// Mesh is the native triangulation output: ordered vertex and triangle
// records.
type Mesh struct {
	Verts     []Vertex
	Triangles []Triangle
}

// Flat is a triangle mesh laid out for transfer.
// All arrays are flat: Vertices has 3 floats per vertex (x,y,z),
// Normals has 3 floats per vertex, Indices has 3 uint32s per triangle.
type Flat struct {
	Vertices []float32 // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 // [nx0,ny0,nz0, ...]
	Indices  []uint32  // [i0,i1,i2, ...] triangles
}

// VertexCount returns the number of vertices.
func (f *Flat) VertexCount() int {
	return len(f.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (f *Flat) TriangleCount() int {
	return len(f.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (f *Flat) IsEmpty() bool {
	return len(f.Vertices) == 0
}
