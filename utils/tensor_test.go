package utils

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestSymInvert(t *testing.T) {
	// storage order [xx yy zz xy yz xz]
	s := Sym3{4, 5, 6, 1, 0.5, 0.25}
	inv := s
	assert.True(t, SymInvert(&inv))
	// s * inv applied to basis vectors recovers the basis
	for d := 0; d < 3; d++ {
		var e Vec3
		e[d] = 1
		r := SymVec3(s, SymVec3(inv, e))
		for dd := 0; dd < 3; dd++ {
			assert.InDelta(t, e[dd], r[dd], 1.e-12)
		}
	}
	// singular matrix is rejected
	sing := Sym3{1, 1, 0, 1, 0, 0}
	assert.False(t, SymInvert(&sing))
}

func TestMatInvert3(t *testing.T) {
	m := Mat3{{2, 1, 0}, {0.5, 3, 1}, {0, 1, 4}}
	inv := m
	assert.True(t, MatInvert3(&inv))
	for d := 0; d < 3; d++ {
		var e Vec3
		e[d] = 1
		r := MatVec3(m, MatVec3(inv, e))
		for dd := 0; dd < 3; dd++ {
			assert.InDelta(t, e[dd], r[dd], 1.e-12)
		}
	}
}

func TestRotateMat3(t *testing.T) {
	var (
		th = 0.3
		c  = math.Cos(th)
		s  = math.Sin(th)
		// rotation about z
		r = Mat3{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
		g = Mat3{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
		v = Vec3{0.2, -0.7, 1.1}
	)
	// rotating the operator commutes with rotating its argument:
	// (R G R^T)(R v) == R (G v)
	lhs := MatVec3(RotateMat3(r, g), RotateVec3(r, v))
	rhs := RotateVec3(r, MatVec3(g, v))
	for d := 0; d < 3; d++ {
		assert.InDelta(t, rhs[d], lhs[d], 1.e-12)
	}
}

func TestSymMatRoundTrip(t *testing.T) {
	s := Sym3{1, 2, 3, 4, 5, 6}
	back := MatToSym(SymToMat(s))
	for n := 0; n < 6; n++ {
		assert.Equal(t, s[n], back[n])
	}
}

func TestCrout(t *testing.T) {
	var (
		n   = 9
		rnd = rand.New(rand.NewSource(42))
		a   = make([][]float64, n)
	)
	// SPD system A = B B^T + I
	b := make([][]float64, n)
	for i := range b {
		b[i] = make([]float64, n)
		for j := range b[i] {
			b[i][j] = rnd.Float64() - 0.5
		}
	}
	for i := range a {
		a[i] = make([]float64, n)
		for j := range a[i] {
			for k := 0; k < n; k++ {
				a[i][j] += b[i][k] * b[j][k]
			}
		}
		a[i][i] += 1
	}
	var (
		packed = make([]float64, n*(n+1)/2)
		x      = make([]float64, n)
		rhs    = make([]float64, n)
		sol    = make([]float64, n)
	)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			packed[i*(i+1)/2+j] = a[i][j]
		}
		x[i] = float64(i) - 3.5
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			rhs[i] += a[i][j] * x[j]
		}
	}
	assert.True(t, CroutFactor(packed, n))
	CroutSolve(packed, rhs, sol, n)
	for i := 0; i < n; i++ {
		assert.InDelta(t, x[i], sol[i], 1.e-10)
	}
	// cross check against a dense Cholesky solve of the same system
	flat := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			flat[i*n+j] = a[i][j]
		}
	}
	var (
		A    = mat.NewSymDense(n, flat)
		chol mat.Cholesky
		ref  mat.VecDense
	)
	assert.True(t, chol.Factorize(A))
	assert.Nil(t, chol.SolveVecTo(&ref, mat.NewVecDense(n, rhs)))
	for i := 0; i < n; i++ {
		assert.InDelta(t, ref.AtVec(i), sol[i], 1.e-10)
	}
}

func TestCroutSingular(t *testing.T) {
	// rank-deficient: row 2 duplicates row 1
	sing := []float64{1, 2, 4, 2, 4, 4}
	assert.False(t, CroutFactor(sing, 3))
	// all-zero system fails on the first pivot
	zero := make([]float64, 6)
	assert.False(t, CroutFactor(zero, 3))
}

func TestAtomicAddFloat64(t *testing.T) {
	var (
		sum float64
		wg  sync.WaitGroup
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			for i := 0; i < 1000; i++ {
				AtomicAddFloat64(&sum, 0.5)
			}
			wg.Done()
		}()
	}
	wg.Wait()
	assert.Equal(t, 4000., sum)
}
