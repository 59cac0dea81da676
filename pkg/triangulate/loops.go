package triangulate

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/foxtrot/pkg/step"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// CircleSegments is the number of chords used for a full circle; arcs get
// a proportional share, at least one.
const CircleSegments = 32

var errDegenerateLoop = errors.New("loop has fewer than three distinct points")

// bound is one face boundary as a closed point sequence (the closing point
// is not repeated).
type bound struct {
	points []v3.Vec
	outer  bool
}

// bounds decodes the boundary list of a face.
func (r resolver) bounds(list []step.Value) ([]bound, error) {
	var out []bound
	for _, v := range list {
		rec, err := r.record(v, "FACE_OUTER_BOUND", "FACE_BOUND")
		if err != nil {
			return nil, err
		}
		loopRef, err := arg(rec, 1)
		if err != nil {
			return nil, err
		}
		orientation, err := boolArg(rec, 2)
		if err != nil {
			return nil, err
		}
		pts, err := r.loop(loopRef)
		if err != nil {
			return nil, err
		}
		if pts == nil {
			continue // VERTEX_LOOP: a degenerate bound such as a cone apex
		}
		if !orientation {
			reverse(pts)
		}
		pts = dedupe(pts)
		if len(pts) < 3 {
			return nil, errDegenerateLoop
		}
		out = append(out, bound{points: pts, outer: rec.Type == "FACE_OUTER_BOUND"})
	}
	if len(out) == 0 {
		return nil, errors.New("face has no usable bounds")
	}
	return out, nil
}

// loop returns the points of an EDGE_LOOP or POLY_LOOP in traversal order,
// or nil for a VERTEX_LOOP.
func (r resolver) loop(v step.Value) ([]v3.Vec, error) {
	rec, err := r.record(v, "EDGE_LOOP", "POLY_LOOP", "VERTEX_LOOP")
	if err != nil {
		return nil, err
	}
	switch rec.Type {
	case "VERTEX_LOOP":
		return nil, nil
	case "POLY_LOOP":
		items, err := listArg(rec, 1)
		if err != nil {
			return nil, err
		}
		pts := make([]v3.Vec, 0, len(items))
		for _, item := range items {
			p, err := r.point(item)
			if err != nil {
				return nil, err
			}
			pts = append(pts, p)
		}
		return pts, nil
	}

	edges, err := listArg(rec, 1)
	if err != nil {
		return nil, err
	}
	var pts []v3.Vec
	for _, e := range edges {
		seg, err := r.orientedEdge(e)
		if err != nil {
			return nil, err
		}
		// Each edge contributes everything but its end point, which
		// is the start of the next edge.
		pts = append(pts, seg[:len(seg)-1]...)
	}
	return pts, nil
}

// orientedEdge samples an ORIENTED_EDGE from its start to its end vertex in
// loop traversal direction. The result has at least two points.
func (r resolver) orientedEdge(v step.Value) ([]v3.Vec, error) {
	oe, err := r.record(v, "ORIENTED_EDGE")
	if err != nil {
		return nil, err
	}
	elem, err := arg(oe, 3)
	if err != nil {
		return nil, err
	}
	orientation, err := boolArg(oe, 4)
	if err != nil {
		return nil, err
	}
	ec, err := r.record(elem, "EDGE_CURVE")
	if err != nil {
		return nil, err
	}
	startRef, err := arg(ec, 1)
	if err != nil {
		return nil, err
	}
	endRef, err := arg(ec, 2)
	if err != nil {
		return nil, err
	}
	start, err := r.vertex(startRef)
	if err != nil {
		return nil, err
	}
	end, err := r.vertex(endRef)
	if err != nil {
		return nil, err
	}
	curve, err := arg(ec, 3)
	if err != nil {
		return nil, err
	}
	sameSense, err := boolArg(ec, 4)
	if err != nil {
		return nil, err
	}
	closed := startRef.Kind == step.KindRef && endRef.Kind == step.KindRef && startRef.Ref == endRef.Ref

	seg, err := r.curve(curve, start, end, sameSense, closed)
	if err != nil {
		return nil, err
	}
	if !orientation {
		reverse(seg)
	}
	return seg, nil
}

// curve samples the edge geometry from start to end. Curves other than
// circles and polylines are replaced by the chord between the vertices.
func (r resolver) curve(v step.Value, start, end v3.Vec, sameSense, closed bool) ([]v3.Vec, error) {
	if v.Kind != step.KindRef {
		return nil, fmt.Errorf("edge geometry is %s, want reference", v.Kind)
	}
	e := r.f.Get(v.Ref)
	if e == nil {
		return nil, fmt.Errorf("dangling reference #%d", v.Ref)
	}
	if rec, ok := e.Record("CIRCLE"); ok {
		return r.circle(rec, start, end, sameSense, closed)
	}
	if rec, ok := e.Record("POLYLINE"); ok {
		items, err := listArg(rec, 1)
		if err != nil {
			return nil, err
		}
		if len(items) < 2 {
			return nil, errors.New("POLYLINE: fewer than two points")
		}
		pts := make([]v3.Vec, 0, len(items))
		for _, item := range items {
			p, err := r.point(item)
			if err != nil {
				return nil, err
			}
			pts = append(pts, p)
		}
		if !sameSense {
			reverse(pts)
		}
		pts[0], pts[len(pts)-1] = start, end
		return pts, nil
	}
	if closed {
		return nil, fmt.Errorf("closed edge on %s cannot be approximated by a chord", e.TypeName())
	}
	return []v3.Vec{start, end}, nil
}

// circle samples CIRCLE(name, position, radius) counterclockwise about the
// placement axis when sameSense holds, clockwise otherwise.
func (r resolver) circle(rec step.Record, start, end v3.Vec, sameSense, closed bool) ([]v3.Vec, error) {
	pos, err := arg(rec, 1)
	if err != nil {
		return nil, err
	}
	fr, err := r.placement(pos)
	if err != nil {
		return nil, err
	}
	radius, err := floatArg(rec, 2)
	if err != nil {
		return nil, err
	}
	if !(radius > 0) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("CIRCLE: invalid radius %g", radius)
	}

	angle := func(p v3.Vec) float64 {
		d := p.Sub(fr.origin)
		return math.Atan2(d.Dot(fr.y), d.Dot(fr.x))
	}
	a0, a1 := angle(start), angle(end)
	var sweep float64
	switch {
	case closed:
		sweep = 2 * math.Pi
	case sameSense:
		sweep = positiveAngle(a1 - a0)
	default:
		sweep = positiveAngle(a0 - a1)
	}
	if !sameSense {
		sweep = -sweep
	}

	n := int(math.Ceil(math.Abs(sweep) / (2 * math.Pi) * CircleSegments))
	if n < 1 {
		n = 1
	}
	pts := make([]v3.Vec, 0, n+1)
	pts = append(pts, start)
	for k := 1; k < n; k++ {
		a := a0 + sweep*float64(k)/float64(n)
		p := fr.origin.
			Add(fr.x.MulScalar(radius * math.Cos(a))).
			Add(fr.y.MulScalar(radius * math.Sin(a)))
		pts = append(pts, p)
	}
	pts = append(pts, end)
	return pts, nil
}

// positiveAngle maps a to (0, 2π].
func positiveAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a
}

func reverse(pts []v3.Vec) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}

// dedupe drops consecutive repeated points, including a closing point equal
// to the first.
func dedupe(pts []v3.Vec) []v3.Vec {
	const eps = 1e-12
	out := pts[:0]
	for _, p := range pts {
		if len(out) > 0 && p.Sub(out[len(out)-1]).Length() <= eps {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[len(out)-1].Sub(out[0]).Length() <= eps {
		out = out[:len(out)-1]
	}
	return out
}
