package utils

import (
	"errors"
	"fmt"
	"math"
)

// Matrix2 is a row-major 2x2 matrix.
type Matrix2 [2][2]float64

func (m Matrix2) Det() float64 {
	return m[0][0]*m[1][1] - m[0][1]*m[1][0]
}

func (m Matrix2) T() Matrix2 {
	return Matrix2{
		{m[0][0], m[1][0]},
		{m[0][1], m[1][1]},
	}
}

func (m Matrix2) Mul(o Matrix2) Matrix2 {
	var out Matrix2
	for i := range 2 {
		for j := range 2 {
			out[i][j] = m[i][0]*o[0][j] + m[i][1]*o[1][j]
		}
	}
	return out
}

func (m Matrix2) MulVec(x, y float64) (float64, float64) {
	return m[0][0]*x + m[0][1]*y, m[1][0]*x + m[1][1]*y
}

func (m Matrix2) IsFinite() bool {
	for i := range 2 {
		for j := range 2 {
			if math.IsNaN(m[i][j]) || math.IsInf(m[i][j], 0) {
				return false
			}
		}
	}
	return true
}

// Diag2 builds diag(a, b).
func Diag2(a, b float64) Matrix2 {
	return Matrix2{{a, 0}, {0, b}}
}

// SVD2 is the decomposition A = U * diag(S) * V^T with S[0] >= S[1] >= 0.
type SVD2 struct {
	U Matrix2
	S [2]float64
	V Matrix2
}

// svdZeroTolerance decides when a singular value is too small to divide by.
const svdZeroTolerance = 1e-12

// SVD2x2 decomposes a 2x2 matrix in closed form.
//
// The singular values and V come from the eigen-decomposition of A^T*A = [[p, q], [q, r]]:
//
//	lambda(1,2) = (p+r)/2 +- sqrt(((p-r)/2)^2 + q^2),  s(i) = sqrt(lambda(i))
//	theta = atan2(2q, p-r) / 2,  V = [[cos theta, -sin theta], [sin theta, cos theta]]
//
// U is then U = A*V*S^-1. When s(1) vanishes, the second column of U is the first one
// rotated by 90 degrees, with its sign taken from A*v(1) so that A = U*S*V^T still holds.
// When both vanish U is the identity.
func SVD2x2(a Matrix2) (SVD2, error) {
	if !a.IsFinite() {
		return SVD2{}, errors.New("svd: matrix has non-finite entries")
	}

	p := a[0][0]*a[0][0] + a[1][0]*a[1][0]
	q := a[0][0]*a[0][1] + a[1][0]*a[1][1]
	r := a[0][1]*a[0][1] + a[1][1]*a[1][1]

	mean := (p + r) / 2
	radius := math.Hypot((p-r)/2, q)
	s0 := math.Sqrt(math.Max(mean+radius, 0))
	s1 := math.Sqrt(math.Max(mean-radius, 0))

	theta := math.Atan2(2*q, p-r) / 2
	c, s := math.Cos(theta), math.Sin(theta)
	v := Matrix2{{c, -s}, {s, c}}

	var u Matrix2
	switch {
	case s0 <= svdZeroTolerance:
		u = Diag2(1, 1)
	default:
		u0x, u0y := a.MulVec(v[0][0], v[1][0])
		u0x, u0y = u0x/s0, u0y/s0
		n := math.Hypot(u0x, u0y)
		u0x, u0y = u0x/n, u0y/n

		u1x, u1y := -u0y, u0x
		ax, ay := a.MulVec(v[0][1], v[1][1])
		if s1 > svdZeroTolerance && ax*u1x+ay*u1y < 0 {
			u1x, u1y = -u1x, -u1y
		}
		u = Matrix2{{u0x, u1x}, {u0y, u1y}}
	}

	out := SVD2{U: u, S: [2]float64{s0, s1}, V: v}
	if !out.U.IsFinite() || !out.V.IsFinite() || math.IsNaN(s0) || math.IsNaN(s1) {
		return SVD2{}, fmt.Errorf("svd: decomposition produced non-finite values for %v", a)
	}
	return out, nil
}

// Rank counts singular values above tol.
func (d SVD2) Rank(tol float64) int {
	rank := 0
	for _, s := range d.S {
		if s > tol {
			rank++
		}
	}
	return rank
}

// L2Normalize scales v to unit length in place. A zero vector is an error.
func L2Normalize(v []float32) error {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return fmt.Errorf("zero vector encountered")
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return nil
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	} else if v > hi {
		return hi
	}
	return v
}
