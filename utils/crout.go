package utils

import "math"

// Crout LDL^T factorization of a symmetric matrix in packed lower-triangular
// storage (entry (i,j), j <= i, lives at i*(i+1)/2 + j). Used for the
// boundary-coupled gradient systems (9x9 for vectors, 18x18 for symmetric
// tensors), which are small enough that a direct dense solve beats anything
// iterative. No pivoting: the systems are assembled to be symmetric positive
// definite by construction (LSQ normal equations plus BC Jacobian blocks).

// CroutFactor factorizes a in place: strictly-lower entries become L,
// diagonal entries become D. n is the system dimension. Returns false when
// a pivot vanishes, leaving a unusable; callers keep their fallback
// solution in that case.
func CroutFactor(a []float64, n int) (ok bool) {
	for i := 0; i < n; i++ {
		rowI := i * (i + 1) / 2
		for j := 0; j < i; j++ {
			rowJ := j * (j + 1) / 2
			s := a[rowI+j]
			for k := 0; k < j; k++ {
				s -= a[rowI+k] * a[rowJ+k] * a[k*(k+1)/2+k]
			}
			a[rowI+j] = s / a[rowJ+j]
		}
		s := a[rowI+i]
		for k := 0; k < i; k++ {
			lik := a[rowI+k]
			s -= lik * lik * a[k*(k+1)/2+k]
		}
		if math.Abs(s) < 1e-300 {
			return false
		}
		a[rowI+i] = s
	}
	return true
}

// CroutSolve runs the forward and backward substitution for a system
// factorized by CroutFactor, writing the solution into x.
func CroutSolve(ld, b, x []float64, n int) {
	// forward: L z = b (unit diagonal)
	for i := 0; i < n; i++ {
		rowI := i * (i + 1) / 2
		s := b[i]
		for k := 0; k < i; k++ {
			s -= ld[rowI+k] * x[k]
		}
		x[i] = s
	}
	// diagonal: D y = z
	for i := 0; i < n; i++ {
		x[i] /= ld[i*(i+1)/2+i]
	}
	// backward: L^T w = y
	for i := n - 1; i >= 0; i-- {
		s := x[i]
		for k := i + 1; k < n; k++ {
			s -= ld[k*(k+1)/2+i] * x[k]
		}
		x[i] = s
	}
}
