package triangulate

import (
	"errors"
	"math"
	"sort"
)

// point2 is a loop vertex projected into the face plane. src is the index of
// the face vertex it came from; hole bridging duplicates points but never
// their src.
type point2 struct {
	x, y float64
	src  int
}

var errNoEar = errors.New("no ear found, polygon is self-intersecting")

// orient is twice the signed area of abc, positive when abc turns left.
func orient(a, b, c point2) float64 {
	return (b.x-a.x)*(c.y-a.y) - (b.y-a.y)*(c.x-a.x)
}

func signedArea(pts []point2) float64 {
	var s float64
	for i := range pts {
		p, q := pts[i], pts[(i+1)%len(pts)]
		s += p.x*q.y - q.x*p.y
	}
	return s / 2
}

func samePos(a, b point2) bool { return a.x == b.x && a.y == b.y }

func reverse2(pts []point2) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}

// earcut triangulates a polygon with holes. The outer loop is wound
// counterclockwise and holes clockwise before they are bridged into it, so
// every triangle returned is counterclockwise in the plane.
func earcut(outer []point2, holes [][]point2) ([][3]int, error) {
	if len(outer) < 3 {
		return nil, errDegenerateLoop
	}
	poly := append([]point2(nil), outer...)
	if signedArea(poly) < 0 {
		reverse2(poly)
	}

	// The squared extent scales the collinearity tolerance.
	minX, minY, maxX, maxY := math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)
	for _, p := range poly {
		minX, maxX = math.Min(minX, p.x), math.Max(maxX, p.x)
		minY, maxY = math.Min(minY, p.y), math.Max(maxY, p.y)
	}
	extent := math.Max(maxX-minX, maxY-minY)
	if !(extent > 0) || math.IsInf(extent, 0) {
		return nil, errDegenerateLoop
	}
	eps := extent * extent * 1e-12

	hs := make([][]point2, 0, len(holes))
	for _, h := range holes {
		if len(h) < 3 {
			continue
		}
		h = append([]point2(nil), h...)
		if signedArea(h) > 0 {
			reverse2(h)
		}
		hs = append(hs, h)
	}
	sort.SliceStable(hs, func(i, j int) bool {
		return hs[i][rightmost(hs[i])].x > hs[j][rightmost(hs[j])].x
	})
	for i, h := range hs {
		var err error
		poly, err = bridge(poly, h, hs[i+1:])
		if err != nil {
			return nil, err
		}
	}
	return clip(poly, eps)
}

// rightmost returns the index of the vertex with the largest x, lowest y on
// ties.
func rightmost(pts []point2) int {
	best := 0
	for i, p := range pts {
		q := pts[best]
		if p.x > q.x || (p.x == q.x && p.y < q.y) {
			best = i
		}
	}
	return best
}

// bridge splices hole into poly through a pair of coincident cut edges
// joining the hole's rightmost vertex to the nearest visible poly vertex.
func bridge(poly, hole []point2, rest [][]point2) ([]point2, error) {
	m := rightmost(hole)
	hm := hole[m]
	best, bestDist := -1, math.Inf(1)
	for i, p := range poly {
		d := (p.x-hm.x)*(p.x-hm.x) + (p.y-hm.y)*(p.y-hm.y)
		if d >= bestDist || !inCone(poly, i, hm) {
			continue
		}
		if !visible(p, hm, poly) || !visible(p, hm, hole) {
			continue
		}
		blocked := false
		for _, r := range rest {
			if !visible(p, hm, r) {
				blocked = true
				break
			}
		}
		if !blocked {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return nil, errors.New("hole cannot be bridged to the outer loop")
	}

	out := make([]point2, 0, len(poly)+len(hole)+2)
	out = append(out, poly[:best+1]...)
	for k := 0; k <= len(hole); k++ {
		out = append(out, hole[(m+k)%len(hole)])
	}
	out = append(out, poly[best])
	out = append(out, poly[best+1:]...)
	return out, nil
}

// inCone reports whether q lies strictly inside the interior angle of the
// counterclockwise polygon at vertex i.
func inCone(poly []point2, i int, q point2) bool {
	n := len(poly)
	a, b, c := poly[(i+n-1)%n], poly[i], poly[(i+1)%n]
	if orient(a, b, c) >= 0 {
		return orient(a, b, q) > 0 && orient(b, c, q) > 0
	}
	return orient(a, b, q) > 0 || orient(b, c, q) > 0
}

// visible reports whether segment pq crosses no edge of loop and passes
// through none of its vertices. Edges and vertices at p or q are ignored.
func visible(p, q point2, loop []point2) bool {
	for i := range loop {
		a, b := loop[i], loop[(i+1)%len(loop)]
		if !samePos(a, p) && !samePos(a, q) && onSegment(p, q, a) {
			return false
		}
		if samePos(a, p) || samePos(a, q) || samePos(b, p) || samePos(b, q) {
			continue
		}
		if crosses(p, q, a, b) {
			return false
		}
	}
	return true
}

// crosses reports a proper intersection of segments pq and ab.
func crosses(p, q, a, b point2) bool {
	o1, o2 := orient(p, q, a), orient(p, q, b)
	o3, o4 := orient(a, b, p), orient(a, b, q)
	return ((o1 > 0 && o2 < 0) || (o1 < 0 && o2 > 0)) &&
		((o3 > 0 && o4 < 0) || (o3 < 0 && o4 > 0))
}

// onSegment reports whether c lies on the closed segment ab.
func onSegment(a, b, c point2) bool {
	if orient(a, b, c) != 0 {
		return false
	}
	return math.Min(a.x, b.x) <= c.x && c.x <= math.Max(a.x, b.x) &&
		math.Min(a.y, b.y) <= c.y && c.y <= math.Max(a.y, b.y)
}

// insideOrOn reports whether p lies in the closed triangle abc, which is
// counterclockwise.
func insideOrOn(a, b, c, p point2) bool {
	return orient(a, b, p) >= 0 && orient(b, c, p) >= 0 && orient(c, a, p) >= 0
}

// clip ear-clips a simple counterclockwise polygon, possibly with
// coincident bridge vertices. Collinear vertices that never form an ear are
// dropped; when no ear and no such vertex remains the polygon is rejected.
func clip(poly []point2, eps float64) ([][3]int, error) {
	idx := make([]int, len(poly))
	for i := range idx {
		idx[i] = i
	}
	tris := make([][3]int, 0, len(poly)-2)
	cursor := 0
	for len(idx) > 3 {
		n := len(idx)
		clipped := false
		for k := 0; k < n; k++ {
			i := (cursor + k) % n
			a, b, c := poly[idx[(i+n-1)%n]], poly[idx[i]], poly[idx[(i+1)%n]]
			if orient(a, b, c) <= eps || blocked(poly, idx, a, b, c) {
				continue
			}
			tris = append(tris, [3]int{a.src, b.src, c.src})
			idx = append(idx[:i], idx[i+1:]...)
			cursor = i % len(idx)
			clipped = true
			break
		}
		if clipped {
			continue
		}
		dropped := false
		for i := 0; i < n; i++ {
			a, b, c := poly[idx[(i+n-1)%n]], poly[idx[i]], poly[idx[(i+1)%n]]
			if math.Abs(orient(a, b, c)) <= eps {
				idx = append(idx[:i], idx[i+1:]...)
				cursor = i % len(idx)
				dropped = true
				break
			}
		}
		if !dropped {
			return nil, errNoEar
		}
	}
	if len(idx) == 3 {
		a, b, c := poly[idx[0]], poly[idx[1]], poly[idx[2]]
		if orient(a, b, c) > eps {
			tris = append(tris, [3]int{a.src, b.src, c.src})
		}
	}
	return tris, nil
}

// blocked reports whether a remaining vertex other than the ear's own
// corners lies in the ear abc.
func blocked(poly []point2, idx []int, a, b, c point2) bool {
	for _, j := range idx {
		p := poly[j]
		if samePos(p, a) || samePos(p, b) || samePos(p, c) {
			continue
		}
		if insideOrOn(a, b, c, p) {
			return true
		}
	}
	return false
}
