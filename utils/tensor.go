package utils

import "math"

// Fixed-size tensor algebra for per-cell gradient work. Vectors are [3],
// full tensors are row-major [9], symmetric tensors are stored as the six
// independent entries [xx, yy, zz, xy, yz, xz] (matching the face-normal
// accumulation order used throughout the gradient kernels).

type Vec3 = [3]float64
type Mat3 = [3][3]float64
type Sym3 = [6]float64

func Dot3(a, b Vec3) (d float64) {
	d = a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
	return
}

func Norm3(a Vec3) float64 {
	return math.Sqrt(Dot3(a, a))
}

func Sub3(a, b Vec3) (c Vec3) {
	c[0], c[1], c[2] = a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return
}

func Scale3(s float64, a Vec3) (c Vec3) {
	c[0], c[1], c[2] = s*a[0], s*a[1], s*a[2]
	return
}

// MatVec3 applies a full 3x3 tensor to a vector.
func MatVec3(m Mat3, v Vec3) (r Vec3) {
	for i := 0; i < 3; i++ {
		r[i] = m[i][0]*v[0] + m[i][1]*v[1] + m[i][2]*v[2]
	}
	return
}

// SymVec3 applies a symmetric tensor (6-entry storage) to a vector.
func SymVec3(s Sym3, v Vec3) (r Vec3) {
	r[0] = s[0]*v[0] + s[3]*v[1] + s[5]*v[2]
	r[1] = s[3]*v[0] + s[1]*v[1] + s[4]*v[2]
	r[2] = s[5]*v[0] + s[4]*v[1] + s[2]*v[2]
	return
}

// SymDet returns the determinant of a symmetric tensor.
func SymDet(s Sym3) (det float64) {
	det = s[0]*(s[1]*s[2]-s[4]*s[4]) -
		s[3]*(s[3]*s[2]-s[4]*s[5]) +
		s[5]*(s[3]*s[4]-s[1]*s[5])
	return
}

// SymInvert inverts a symmetric tensor in place via the adjugate (Cramer).
// Returns false when the tensor is numerically singular, e.g. a degenerate
// 2D-like neighbor stencil; callers must augment or fall back rather than
// divide by zero.
func SymInvert(s *Sym3) (ok bool) {
	var (
		det = SymDet(*s)
		a   = *s
	)
	if math.Abs(det) < 1e-300 {
		return false
	}
	oneOverDet := 1. / det
	s[0] = (a[1]*a[2] - a[4]*a[4]) * oneOverDet
	s[1] = (a[0]*a[2] - a[5]*a[5]) * oneOverDet
	s[2] = (a[0]*a[1] - a[3]*a[3]) * oneOverDet
	s[3] = (a[4]*a[5] - a[3]*a[2]) * oneOverDet
	s[4] = (a[3]*a[5] - a[0]*a[4]) * oneOverDet
	s[5] = (a[3]*a[4] - a[1]*a[5]) * oneOverDet
	return true
}

// MatInvert3 inverts a full 3x3 tensor in place via Cramer's rule.
func MatInvert3(m *Mat3) (ok bool) {
	var (
		a   = *m
		cof Mat3
	)
	cof[0][0] = a[1][1]*a[2][2] - a[1][2]*a[2][1]
	cof[0][1] = a[0][2]*a[2][1] - a[0][1]*a[2][2]
	cof[0][2] = a[0][1]*a[1][2] - a[0][2]*a[1][1]
	cof[1][0] = a[1][2]*a[2][0] - a[1][0]*a[2][2]
	cof[1][1] = a[0][0]*a[2][2] - a[0][2]*a[2][0]
	cof[1][2] = a[0][2]*a[1][0] - a[0][0]*a[1][2]
	cof[2][0] = a[1][0]*a[2][1] - a[1][1]*a[2][0]
	cof[2][1] = a[0][1]*a[2][0] - a[0][0]*a[2][1]
	cof[2][2] = a[0][0]*a[1][1] - a[0][1]*a[1][0]
	det := a[0][0]*cof[0][0] + a[0][1]*cof[1][0] + a[0][2]*cof[2][0]
	if math.Abs(det) < 1e-300 {
		return false
	}
	oneOverDet := 1. / det
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = cof[i][j] * oneOverDet
		}
	}
	return true
}

// RotateVec3 rotates v by the rotation matrix r.
func RotateVec3(r Mat3, v Vec3) Vec3 {
	return MatVec3(r, v)
}

// RotateMat3 applies the similarity transform r * m * r^T, the frame change
// for a rank-2 tensor under rotational periodicity.
func RotateMat3(r, m Mat3) (out Mat3) {
	var tmp Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				tmp[i][j] += r[i][k] * m[k][j]
			}
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += tmp[i][k] * r[j][k]
			}
		}
	}
	return
}

// SymToMat expands 6-entry symmetric storage to a full tensor.
func SymToMat(s Sym3) (m Mat3) {
	m[0][0], m[1][1], m[2][2] = s[0], s[1], s[2]
	m[0][1], m[1][0] = s[3], s[3]
	m[1][2], m[2][1] = s[4], s[4]
	m[0][2], m[2][0] = s[5], s[5]
	return
}

// MatToSym compresses a full tensor to symmetric storage, averaging the
// off-diagonal pairs.
func MatToSym(m Mat3) (s Sym3) {
	s[0], s[1], s[2] = m[0][0], m[1][1], m[2][2]
	s[3] = 0.5 * (m[0][1] + m[1][0])
	s[4] = 0.5 * (m[1][2] + m[2][1])
	s[5] = 0.5 * (m[0][2] + m[2][0])
	return
}
