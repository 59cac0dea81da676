// Package triangulate converts the planar faces of a parsed STEP file into a
// triangle mesh.
//
// Faces are decoded from ADVANCED_FACE, FACE_SURFACE and FACE instances.
// Faces on a PLANE (or, for FACE, the plane of their outer loop) are
// projected into 2D, their holes bridged into the outer boundary, and the
// resulting polygon ear-clipped. Faces on any other surface are skipped and
// counted. Output is deterministic: faces are visited in ascending instance
// id and each contributes its own vertices, all sharing the face normal.
package triangulate

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/foxtrot/pkg/mesh"
	"github.com/chazu/foxtrot/pkg/step"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrNothingMeshed is returned when a file has faces but none of them could
// be triangulated.
var ErrNothingMeshed = errors.New("triangulate: no face could be meshed")

// faceTypes are the face entities visited, in lookup order for complex
// instances.
var faceTypes = []string{"ADVANCED_FACE", "FACE_SURFACE", "FACE"}

// Stats summarizes one triangulation run.
type Stats struct {
	Faces     int `yaml:"faces"`
	Meshed    int `yaml:"meshed"`
	Skipped   int `yaml:"skipped"`
	Failed    int `yaml:"failed"`
	Triangles int `yaml:"triangles"`

	// Unsupported counts skipped faces by surface type.
	Unsupported map[string]int `yaml:"unsupported,omitempty"`
}

// FaceError records why a single face could not be meshed.
type FaceError struct {
	Face step.ID
	Err  error
}

func (e *FaceError) Error() string {
	return fmt.Sprintf("face #%d: %v", e.Face, e.Err)
}

func (e *FaceError) Unwrap() error { return e.Err }

// errSkip marks a face on a surface the triangulator does not mesh.
type errSkip struct{ surface string }

func (e errSkip) Error() string { return "unsupported surface " + e.surface }

// Triangulate meshes every supported face of f. A face that fails is
// counted and left out; the error is non-nil only when f has faces and
// none was meshed, in which case it wraps ErrNothingMeshed and the first
// *FaceError.
func Triangulate(f *step.File) (*mesh.Mesh, Stats, error) {
	r := resolver{f: f}
	m := &mesh.Mesh{}
	var st Stats
	var first error

	for _, e := range f.Entities() {
		rec, ok := faceRecord(e)
		if !ok {
			continue
		}
		st.Faces++
		verts, tris, err := r.face(rec)
		var skip errSkip
		switch {
		case errors.As(err, &skip):
			st.Skipped++
			if st.Unsupported == nil {
				st.Unsupported = map[string]int{}
			}
			st.Unsupported[skip.surface]++
			continue
		case err == nil && uint64(len(m.Verts))+uint64(len(verts)) > math.MaxUint32:
			err = errors.New("mesh exceeds 32-bit vertex indices")
		}
		if err != nil {
			st.Failed++
			if first == nil {
				first = &FaceError{Face: e.ID, Err: err}
			}
			continue
		}

		base := uint32(len(m.Verts))
		m.Verts = append(m.Verts, verts...)
		for _, t := range tris {
			m.Triangles = append(m.Triangles, mesh.Triangle{Verts: [3]uint32{
				base + uint32(t[0]), base + uint32(t[1]), base + uint32(t[2]),
			}})
		}
		st.Meshed++
		st.Triangles += len(tris)
	}

	if st.Faces > 0 && st.Meshed == 0 {
		err := fmt.Errorf("%w (%d faces, %d skipped, %d failed)", ErrNothingMeshed, st.Faces, st.Skipped, st.Failed)
		if first != nil {
			err = fmt.Errorf("%w: %w", err, first)
		}
		return nil, st, err
	}
	return m, st, nil
}

func faceRecord(e *step.Entity) (step.Record, bool) {
	for _, t := range faceTypes {
		if rec, ok := e.Record(t); ok {
			return rec, true
		}
	}
	return step.Record{}, false
}

// face meshes a single face record, returning its vertices and triangles
// indexing them.
func (r resolver) face(rec step.Record) ([]mesh.Vertex, [][3]int, error) {
	boundList, err := listArg(rec, 1)
	if err != nil {
		return nil, nil, err
	}

	var normal, u v3.Vec
	switch rec.Type {
	case "FACE":
		// No surface: the face lies in the plane of its loops.
		bs, err := r.bounds(boundList)
		if err != nil {
			return nil, nil, err
		}
		n := newell(bs[outerIndex(bs, nil)].points)
		if n.Length() < 1e-12 {
			return nil, nil, errors.New("face loops span no plane")
		}
		normal = n.Normalize()
		u = perpendicular(normal)
		return triangulateBounds(bs, normal, u)
	default:
		geom, err := arg(rec, 2)
		if err != nil {
			return nil, nil, err
		}
		sameSense, err := boolArg(rec, 3)
		if err != nil {
			return nil, nil, err
		}
		fr, err := r.plane(geom)
		if err != nil {
			return nil, nil, err
		}
		normal, u = fr.z, fr.x
		if !sameSense {
			normal = normal.Neg()
		}
	}

	bs, err := r.bounds(boundList)
	if err != nil {
		return nil, nil, err
	}
	return triangulateBounds(bs, normal, u)
}

// plane resolves an unbounded PLANE; any other surface yields errSkip.
func (r resolver) plane(v step.Value) (frame, error) {
	if v.Kind != step.KindRef {
		return frame{}, fmt.Errorf("face geometry is %s, want reference", v.Kind)
	}
	e := r.f.Get(v.Ref)
	if e == nil {
		return frame{}, fmt.Errorf("dangling reference #%d", v.Ref)
	}
	rec, ok := e.Record("PLANE")
	if !ok {
		return frame{}, errSkip{surface: e.TypeName()}
	}
	pos, err := arg(rec, 1)
	if err != nil {
		return frame{}, err
	}
	return r.placement(pos)
}

// triangulateBounds projects bounds onto the plane with the given unit normal
// and in-plane unit axis u, then ear-clips them.
func triangulateBounds(bs []bound, normal, u v3.Vec) ([]mesh.Vertex, [][3]int, error) {
	w := normal.Cross(u)

	var verts []mesh.Vertex
	loops := make([][]point2, len(bs))
	for i, b := range bs {
		loop := make([]point2, len(b.points))
		for j, p := range b.points {
			loop[j] = point2{x: p.Dot(u), y: p.Dot(w), src: len(verts)}
			verts = append(verts, mesh.Vertex{Pos: p, Norm: normal})
		}
		loops[i] = loop
	}

	outer := outerIndex(bs, loops)
	holes := make([][]point2, 0, len(loops)-1)
	for i, l := range loops {
		if i != outer {
			holes = append(holes, l)
		}
	}
	tris, err := earcut(loops[outer], holes)
	if err != nil {
		return nil, nil, err
	}
	if len(tris) == 0 {
		return nil, nil, errDegenerateLoop
	}
	return verts, tris, nil
}

// outerIndex picks the face outer bound: the first FACE_OUTER_BOUND,
// otherwise the loop enclosing the largest area. Without projected loops
// the 3D vector area is used.
func outerIndex(bs []bound, loops [][]point2) int {
	for i, b := range bs {
		if b.outer {
			return i
		}
	}
	best, bestArea := 0, -1.0
	for i, b := range bs {
		var a float64
		if loops != nil {
			a = math.Abs(signedArea(loops[i]))
		} else {
			a = newell(b.points).Length()
		}
		if a > bestArea {
			best, bestArea = i, a
		}
	}
	return best
}

// newell returns the Newell normal of a closed loop, whose length is twice
// the enclosed area.
func newell(pts []v3.Vec) v3.Vec {
	var n v3.Vec
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		n.X += (p.Y - q.Y) * (p.Z + q.Z)
		n.Y += (p.Z - q.Z) * (p.X + q.X)
		n.Z += (p.X - q.X) * (p.Y + q.Y)
	}
	return n
}
