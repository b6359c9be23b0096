package geometry

import "math"

// Distance returns the Euclidean distance between a and b, or 0 if either
// point is not finite.
func Distance(a, b Vec3) float64 {
	if !a.IsFinite() || !b.IsFinite() {
		return 0
	}
	return a.Sub(b).Norm()
}

// SafeSqrt returns sqrt(x), or 0 for negative or non-finite x.
func SafeSqrt(x float64) float64 {
	if !isFinite(x) || x < 0 {
		return 0
	}
	return math.Sqrt(x)
}

// SafeArccos returns arccos(c) in radians with c clamped to [-1, 1]. NaN
// input yields pi/2.
func SafeArccos(c float64) float64 {
	if math.IsNaN(c) {
		c = 0
	}
	return math.Acos(math.Max(-1, math.Min(1, c)))
}

// SafeAngleDegrees returns the angle a-vertex-b in degrees. Degenerate
// input (zero-length arms, non-finite points) yields 0.
func SafeAngleDegrees(a, vertex, b Vec3) float64 {
	u := a.Sub(vertex)
	w := b.Sub(vertex)
	nu, nw := u.Norm(), w.Norm()
	if nu == 0 || nw == 0 {
		return 0
	}
	return SafeArccos(u.Dot(w)/(nu*nw)) * 180 / math.Pi
}

// SafeNormalize returns v scaled to unit length, or the zero vector when the
// norm is zero or not finite.
func SafeNormalize(v Vec3) Vec3 {
	n := v.Norm()
	if n == 0 {
		return Vec3{}
	}
	return v.Scale(1 / n)
}

// BoundingBox returns the per-axis minimum and maximum of points. Empty
// input, or input containing a non-finite point, yields two zero vectors.
func BoundingBox(points []Vec3) (lo, hi Vec3) {
	if len(points) == 0 {
		return Vec3{}, Vec3{}
	}
	lo, hi = points[0], points[0]
	for _, p := range points {
		if !p.IsFinite() {
			return Vec3{}, Vec3{}
		}
		lo = Vec3{math.Min(lo.X, p.X), math.Min(lo.Y, p.Y), math.Min(lo.Z, p.Z)}
		hi = Vec3{math.Max(hi.X, p.X), math.Max(hi.Y, p.Y), math.Max(hi.Z, p.Z)}
	}
	return lo, hi
}

// MaxExtent returns the largest per-axis extent of the bounding box.
func MaxExtent(points []Vec3) float64 {
	lo, hi := BoundingBox(points)
	d := hi.Sub(lo)
	return math.Max(d.X, math.Max(d.Y, d.Z))
}

// Centroid returns the geometric centre of points, or the zero vector for
// empty or non-finite input.
func Centroid(points []Vec3) Vec3 {
	if len(points) == 0 {
		return Vec3{}
	}
	var sum Vec3
	for _, p := range points {
		if !p.IsFinite() {
			return Vec3{}
		}
		sum = sum.Add(p)
	}
	c := sum.Scale(1 / float64(len(points)))
	if !c.IsFinite() {
		return Vec3{}
	}
	return c
}

// SafeMean returns the mean of the finite values, 0 if there are none.
func SafeMean(values []float64) float64 {
	var sum float64
	n := 0
	for _, v := range values {
		if isFinite(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	m := sum / float64(n)
	if !isFinite(m) {
		return 0
	}
	return m
}

// SafeStd returns the population standard deviation of the finite values,
// 0 when fewer than two remain.
func SafeStd(values []float64) float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if isFinite(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) < 2 {
		return 0
	}
	m := SafeMean(clean)
	var ss float64
	for _, v := range clean {
		ss += (v - m) * (v - m)
	}
	return SafeSqrt(ss / float64(len(clean)))
}

// SafeDivide returns a/b, or fallback when b is zero or the quotient is not
// finite.
func SafeDivide(a, b, fallback float64) float64 {
	if b == 0 {
		return fallback
	}
	q := a / b
	if !isFinite(q) {
		return fallback
	}
	return q
}
