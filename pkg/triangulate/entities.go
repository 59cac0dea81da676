package triangulate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/foxtrot/pkg/step"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// resolver follows references through the entity graph and decodes the
// geometric entities the triangulator understands.
type resolver struct {
	f *step.File
}

// record resolves a reference to the first matching record type.
func (r resolver) record(v step.Value, types ...string) (step.Record, error) {
	if v.Kind != step.KindRef {
		return step.Record{}, fmt.Errorf("want reference to %s, got %s", strings.Join(types, " or "), v.Kind)
	}
	e := r.f.Get(v.Ref)
	if e == nil {
		return step.Record{}, fmt.Errorf("dangling reference #%d", v.Ref)
	}
	for _, t := range types {
		if rec, ok := e.Record(t); ok {
			return rec, nil
		}
	}
	return step.Record{}, fmt.Errorf("#%d is %s, want %s", v.Ref, e.TypeName(), strings.Join(types, " or "))
}

func arg(rec step.Record, i int) (step.Value, error) {
	if i >= len(rec.Params) {
		return step.Value{}, fmt.Errorf("%s: missing parameter %d", rec.Type, i)
	}
	return rec.Params[i], nil
}

func boolArg(rec step.Record, i int) (bool, error) {
	v, err := arg(rec, i)
	if err != nil {
		return false, err
	}
	b, ok := v.Bool()
	if !ok {
		return false, fmt.Errorf("%s: parameter %d is %s, want .T. or .F.", rec.Type, i, v.Kind)
	}
	return b, nil
}

func floatArg(rec step.Record, i int) (float64, error) {
	v, err := arg(rec, i)
	if err != nil {
		return 0, err
	}
	f, ok := v.Float()
	if !ok {
		return 0, fmt.Errorf("%s: parameter %d is %s, want number", rec.Type, i, v.Kind)
	}
	return f, nil
}

func listArg(rec step.Record, i int) ([]step.Value, error) {
	v, err := arg(rec, i)
	if err != nil {
		return nil, err
	}
	if v.Kind != step.KindList {
		return nil, fmt.Errorf("%s: parameter %d is %s, want list", rec.Type, i, v.Kind)
	}
	return v.List, nil
}

// triple reads a list of one to three coordinates; missing ones are zero.
func triple(rec step.Record, i int) (v3.Vec, error) {
	items, err := listArg(rec, i)
	if err != nil {
		return v3.Vec{}, err
	}
	if len(items) == 0 || len(items) > 3 {
		return v3.Vec{}, fmt.Errorf("%s: %d coordinates, want 1 to 3", rec.Type, len(items))
	}
	var c [3]float64
	for j, item := range items {
		f, ok := item.Float()
		if !ok {
			return v3.Vec{}, fmt.Errorf("%s: coordinate %d is %s", rec.Type, j, item.Kind)
		}
		c[j] = f
	}
	return v3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
}

func (r resolver) point(v step.Value) (v3.Vec, error) {
	rec, err := r.record(v, "CARTESIAN_POINT")
	if err != nil {
		return v3.Vec{}, err
	}
	return triple(rec, 1)
}

var errZeroDirection = errors.New("zero length direction")

func (r resolver) direction(v step.Value) (v3.Vec, error) {
	rec, err := r.record(v, "DIRECTION")
	if err != nil {
		return v3.Vec{}, err
	}
	d, err := triple(rec, 1)
	if err != nil {
		return v3.Vec{}, err
	}
	if d.Length() == 0 {
		return v3.Vec{}, errZeroDirection
	}
	return d.Normalize(), nil
}

func (r resolver) vertex(v step.Value) (v3.Vec, error) {
	rec, err := r.record(v, "VERTEX_POINT")
	if err != nil {
		return v3.Vec{}, err
	}
	p, err := arg(rec, 1)
	if err != nil {
		return v3.Vec{}, err
	}
	return r.point(p)
}

// frame is a right-handed orthonormal placement: x and y span the plane
// whose normal is z.
type frame struct {
	origin  v3.Vec
	x, y, z v3.Vec
}

// placement decodes AXIS2_PLACEMENT_3D, defaulting the axis to +Z and
// deriving a reference direction when it is unset or parallel to the axis.
func (r resolver) placement(v step.Value) (frame, error) {
	rec, err := r.record(v, "AXIS2_PLACEMENT_3D")
	if err != nil {
		return frame{}, err
	}
	loc, err := arg(rec, 1)
	if err != nil {
		return frame{}, err
	}
	origin, err := r.point(loc)
	if err != nil {
		return frame{}, err
	}
	z := v3.Vec{X: 0, Y: 0, Z: 1}
	if a, err := arg(rec, 2); err == nil && a.Kind == step.KindRef {
		if z, err = r.direction(a); err != nil {
			return frame{}, err
		}
	}
	var ref v3.Vec
	if d, err := arg(rec, 3); err == nil && d.Kind == step.KindRef {
		if ref, err = r.direction(d); err != nil {
			return frame{}, err
		}
	}
	return newFrame(origin, z, ref), nil
}

// newFrame builds a frame with normal z, using ref projected onto the plane as
// the x axis when it is usable.
func newFrame(origin, z, ref v3.Vec) frame {
	z = z.Normalize()
	x := ref.Sub(z.MulScalar(ref.Dot(z)))
	if x.Length() < 1e-9 {
		x = perpendicular(z)
	}
	x = x.Normalize()
	return frame{origin: origin, x: x, y: z.Cross(x), z: z}
}

// perpendicular returns some unit vector orthogonal to n.
func perpendicular(n v3.Vec) v3.Vec {
	axis := v3.Vec{X: 1, Y: 0, Z: 0}
	if abs(n.X) > 0.9 {
		axis = v3.Vec{X: 0, Y: 1, Z: 0}
	}
	return n.Cross(axis).Normalize()
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
