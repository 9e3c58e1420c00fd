package gradient

import (
	"bytes"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/notargets/fvgrad/halo"
	"github.com/notargets/fvgrad/mesh"
	"github.com/notargets/fvgrad/utils"
	"github.com/stretchr/testify/assert"
)

func affine(x utils.Vec3) float64 { return 2.*x[0] + 3.*x[1] - x[2] + 5. }

var affineGrad = utils.Vec3{2, 3, -1}

func scalarField(m *mesh.Mesh, f func(utils.Vec3) float64) (v []float64) {
	v = make([]float64, m.NCellsExt)
	for c := range v {
		v[c] = f(m.CellCen[c])
	}
	return
}

// dirichletScalar builds Robin pairs pinning the boundary value to f at the
// face centroid (a = f, b = 0).
func dirichletScalar(m *mesh.Mesh, f func(utils.Vec3) float64) (bc BCScalar) {
	nbf := len(m.BFaceCell)
	bc = BCScalar{A: make([]float64, nbf), B: make([]float64, nbf)}
	for n := range m.BFaceCell {
		bc.A[n] = f(m.BFaceCog[n])
	}
	return
}

// skewWeights pushes the face weights off the midpoint while keeping the
// true face centroids, so the dofij correction is exercised without breaking
// the Green-Gauss consistency identity.
func skewWeights(b *mesh.Box, seed int64, amp float64) {
	var (
		m   = b.Mesh
		rng = rand.New(rand.NewSource(seed))
	)
	for f, fc := range m.IFaceCells {
		w := 0.5 + amp*(rng.Float64()-0.5)
		m.Weight[f] = w
		for d := 0; d < 3; d++ {
			m.Dofij[f][d] = m.IFaceCog[f][d] -
				(w*m.CellCen[fc[0]][d] + (1.-w)*m.CellCen[fc[1]][d])
		}
	}
	m.BumpGeneration()
}

func assertScalarGrad(t *testing.T, m *mesh.Mesh, grad [][3]float64, want utils.Vec3, tol float64) {
	t.Helper()
	for c := 0; c < m.NCells; c++ {
		for d := 0; d < 3; d++ {
			assert.InDelta(t, want[d], grad[c][d], tol)
		}
	}
}

func TestScalarAffineExact(t *testing.T) {
	var (
		b    = mesh.NewBoxMesh(6, 5, 4, 1.2, 1., 0.8)
		m    = b.Mesh
		ctx  = NewContext(m)
		v    = scalarField(m, affine)
		bc   = dirichletScalar(m, affine)
		grad = make([][3]float64, m.NCellsExt)
	)
	for _, mt := range []Method{GreenGaussIter, LSQ, LSQExt, GreenLSQ} {
		opt := &Options{Method: mt, Inc: 1, NSweeps: 30, Epsilon: 1.e-12}
		assert.NoError(t, ctx.GradientScalar("p", opt, bc, v, nil, nil, grad))
		assertScalarGrad(t, m, grad, affineGrad, 1.e-10)
	}
}

func TestScalarSkewedWeights(t *testing.T) {
	var (
		b = mesh.NewBoxMesh(6, 6, 6, 1., 1., 1.)
	)
	skewWeights(b, 11, 0.4)
	var (
		m    = b.Mesh
		ctx  = NewContext(m)
		v    = scalarField(m, affine)
		bc   = dirichletScalar(m, affine)
		grad = make([][3]float64, m.NCellsExt)
		opt  = &Options{Method: GreenGaussIter, Inc: 1, NSweeps: 100, Epsilon: 1.e-13}
	)
	assert.NoError(t, ctx.GradientScalar("p", opt, bc, v, nil, nil, grad))
	assertScalarGrad(t, m, grad, affineGrad, 1.e-9)
	// the skew makes the one-pass estimate inexact, so sweeps were needed
	assert.True(t, ctx.Perf.Stats("p", GreenGaussIter).Sweeps > 1)
}

func TestScalarPerturbedMesh(t *testing.T) {
	var (
		b = mesh.NewBoxMesh(6, 6, 6, 1., 1., 1.)
	)
	b.Perturb(7, 0.1)
	var (
		m    = b.Mesh
		ctx  = NewContext(m)
		v    = scalarField(m, affine)
		bc   = dirichletScalar(m, affine)
		grad = make([][3]float64, m.NCellsExt)
	)
	// least squares stays exact for affine fields on distorted interpolation
	// geometry; the boundary term folds diipb back onto the centroid
	for _, mt := range []Method{LSQ, LSQExt} {
		opt := &Options{Method: mt, Inc: 1}
		assert.NoError(t, ctx.GradientScalar("p", opt, bc, v, nil, nil, grad))
		assertScalarGrad(t, m, grad, affineGrad, 1.e-9)
	}
}

func TestConstantField(t *testing.T) {
	var (
		b    = mesh.NewBoxMesh(4, 4, 4, 1., 1., 1.)
		m    = b.Mesh
		ctx  = NewContext(m)
		v    = scalarField(m, func(utils.Vec3) float64 { return 7.5 })
		grad = make([][3]float64, m.NCellsExt)
	)
	// nil BC pairs default to homogeneous Neumann
	for _, mt := range []Method{GreenGaussIter, LSQ, LSQExt, GreenLSQ} {
		opt := &Options{Method: mt, Inc: 1, NSweeps: 10, Epsilon: 1.e-12}
		assert.NoError(t, ctx.GradientScalar("p", opt, BCScalar{}, v, nil, nil, grad))
		assertScalarGrad(t, m, grad, utils.Vec3{}, 1.e-12)
	}
}

func TestWeightedMatchesUnweightedForUniformWeights(t *testing.T) {
	var (
		b     = mesh.NewBoxMesh(5, 4, 4, 1., 1., 1.)
		m     = b.Mesh
		ctx   = NewContext(m)
		v     = scalarField(m, affine)
		bc    = dirichletScalar(m, affine)
		cw    = make([]float64, m.NCellsExt)
		grad0 = make([][3]float64, m.NCellsExt)
		grad1 = make([][3]float64, m.NCellsExt)
	)
	for c := range cw {
		cw[c] = 4.2
	}
	opt := &Options{Method: LSQ, Inc: 1, WStride: 1}
	assert.NoError(t, ctx.GradientScalar("p", opt, bc, v, nil, nil, grad0))
	assert.NoError(t, ctx.GradientScalar("p", opt, bc, v, cw, nil, grad1))
	for c := 0; c < m.NCells; c++ {
		for d := 0; d < 3; d++ {
			assert.InDelta(t, grad0[c][d], grad1[c][d], 1.e-13)
		}
	}
}

func TestAnisotropicWeighting(t *testing.T) {
	var (
		b    = mesh.NewBoxMesh(5, 4, 4, 1., 1., 1.)
		m    = b.Mesh
		ctx  = NewContext(m)
		v    = scalarField(m, affine)
		bc   = dirichletScalar(m, affine)
		cw   = make([]float64, 6*m.NCellsExt)
		grad = make([][3]float64, m.NCellsExt)
	)
	// uniform diagonal tensor: the stretched vectors keep the system
	// consistent, so affine fields are still reproduced exactly
	for c := 0; c < m.NCellsExt; c++ {
		cw[6*c+0] = 2.
		cw[6*c+1] = 1.
		cw[6*c+2] = 0.5
	}
	opt := &Options{Method: LSQ, Inc: 1, WStride: 6}
	assert.NoError(t, ctx.GradientScalar("p", opt, bc, v, cw, nil, grad))
	assertScalarGrad(t, m, grad, affineGrad, 1.e-9)
}

func TestHydrostaticBalance(t *testing.T) {
	var (
		b    = mesh.NewBoxMesh(5, 5, 5, 1., 1., 1.)
		m    = b.Mesh
		ctx  = NewContext(m)
		g0   = utils.Vec3{0, 0, -9.81}
		v    = scalarField(m, func(x utils.Vec3) float64 { return utils.Dot3(g0, x) })
		bc   = dirichletScalar(m, func(x utils.Vec3) float64 { return utils.Dot3(g0, x) })
		fExt = make([][3]float64, m.NCellsExt)
		grad = make([][3]float64, m.NCellsExt)
	)
	for c := range fExt {
		fExt[c] = g0
	}
	opt := &Options{Method: LSQ, Inc: 1, HydPressure: true}
	assert.NoError(t, ctx.GradientScalar("p", opt, bc, v, nil, fExt, grad))
	// a field in exact balance reproduces the force with zero residual
	assertScalarGrad(t, m, grad, g0, 1.e-10)
}

func TestVectorAffine(t *testing.T) {
	var (
		b = mesh.NewBoxMesh(5, 4, 4, 1., 1., 1.)
		m = b.Mesh
		a = [3][3]float64{{1, 2, 3}, {0, -1, 4}, {2, 0.5, -2}}
		o = [3]float64{1, -2, 0.5}
	)
	var (
		ctx  = NewContext(m)
		nbf  = len(m.BFaceCell)
		v    = make([][3]float64, m.NCellsExt)
		bc   = BCVector{A: make([][3]float64, nbf), B: make([][3][3]float64, nbf)}
		grad = make([][3][3]float64, m.NCellsExt)
	)
	field := func(x utils.Vec3) (val [3]float64) {
		for i := 0; i < 3; i++ {
			val[i] = o[i] + utils.Dot3(a[i], x)
		}
		return
	}
	for c := range v {
		v[c] = field(m.CellCen[c])
	}
	for n := range m.BFaceCell {
		bc.A[n] = field(m.BFaceCog[n])
	}
	for _, mt := range []Method{GreenGaussIter, LSQ, LSQExt, GreenLSQ} {
		opt := &Options{Method: mt, Inc: 1, NSweeps: 30, Epsilon: 1.e-12}
		assert.NoError(t, ctx.GradientVector("U", opt, bc, v, nil, grad))
		for c := 0; c < m.NCells; c++ {
			for i := 0; i < 3; i++ {
				for d := 0; d < 3; d++ {
					assert.InDelta(t, a[i][d], grad[c][i][d], 1.e-9)
				}
			}
		}
	}
}

func TestVectorCoupledBC(t *testing.T) {
	// slope matrix mixing components: v_bnd = B v_int with B rotating the
	// first two components into each other; constant fields satisfying
	// B v = v must come out gradient-free
	var (
		b   = mesh.NewBoxMesh(4, 4, 4, 1., 1., 1.)
		m   = b.Mesh
		ctx = NewContext(m)
		nbf = len(m.BFaceCell)
		v   = make([][3]float64, m.NCellsExt)
		bc  = BCVector{A: make([][3]float64, nbf), B: make([][3][3]float64, nbf)}
	)
	for c := range v {
		v[c] = [3]float64{1, 1, 2}
	}
	for n := range bc.B {
		bc.B[n] = [3][3]float64{{0, 1, 0}, {1, 0, 0}, {0, 0, 1}}
	}
	grad := make([][3][3]float64, m.NCellsExt)
	for _, mt := range []Method{GreenGaussIter, LSQ} {
		opt := &Options{Method: mt, Inc: 1, NSweeps: 20, Epsilon: 1.e-12}
		assert.NoError(t, ctx.GradientVector("U", opt, bc, v, nil, grad))
		for c := 0; c < m.NCells; c++ {
			for i := 0; i < 3; i++ {
				for d := 0; d < 3; d++ {
					assert.InDelta(t, 0., grad[c][i][d], 1.e-10)
				}
			}
		}
	}
}

func TestTensorAffine(t *testing.T) {
	var (
		b = mesh.NewBoxMesh(4, 4, 4, 1., 1., 1.)
		m = b.Mesh
		g [6][3]float64
		o [6]float64
	)
	for i := 0; i < 6; i++ {
		o[i] = float64(i) * 0.3
		for d := 0; d < 3; d++ {
			g[i][d] = float64(i+1) - 1.5*float64(d)
		}
	}
	var (
		ctx  = NewContext(m)
		nbf  = len(m.BFaceCell)
		v    = make([][6]float64, m.NCellsExt)
		bc   = BCTensor{A: make([][6]float64, nbf), B: make([][6][6]float64, nbf)}
		grad = make([][6][3]float64, m.NCellsExt)
	)
	field := func(x utils.Vec3) (val [6]float64) {
		for i := 0; i < 6; i++ {
			val[i] = o[i] + utils.Dot3(g[i], x)
		}
		return
	}
	for c := range v {
		v[c] = field(m.CellCen[c])
	}
	for n := range m.BFaceCell {
		bc.A[n] = field(m.BFaceCog[n])
	}
	for _, mt := range []Method{GreenGaussIter, LSQ, GreenLSQ} {
		opt := &Options{Method: mt, Inc: 1, NSweeps: 30, Epsilon: 1.e-12}
		assert.NoError(t, ctx.GradientTensor("R", opt, bc, v, grad))
		for c := 0; c < m.NCells; c++ {
			for i := 0; i < 6; i++ {
				for d := 0; d < 3; d++ {
					assert.InDelta(t, g[i][d], grad[c][i][d], 1.e-9)
				}
			}
		}
	}
}

func TestClipping(t *testing.T) {
	var (
		b    = mesh.NewBoxMesh(6, 6, 6, 1., 1., 1.)
		m    = b.Mesh
		ctx  = NewContext(m)
		v    = scalarField(m, affine)
		bc   = dirichletScalar(m, affine)
		grad = make([][3]float64, m.NCellsExt)
	)
	v[0] += 50. // spike
	opt := &Options{Method: LSQ, Inc: 1, ClipMode: ClipCell, ClipCoeff: 1.}
	assert.NoError(t, ctx.GradientScalar("p", opt, bc, v, nil, nil, grad))
	// post-condition: no cell predicts more variation toward a neighbor
	// than the largest value jump it sees
	var (
		denum = make([]float64, m.NCells)
		denom = make([]float64, m.NCells)
	)
	for _, side := range []int{0, 1} {
		for _, fc := range m.IFaceCells {
			c, nb := fc[side], fc[1-side]
			dc := utils.Sub3(m.CellCen[nb], m.CellCen[c])
			p := math.Abs(utils.Dot3(grad[c], dc))
			dv := math.Abs(v[nb] - v[c])
			if p > denum[c] {
				denum[c] = p
			}
			if dv > denom[c] {
				denom[c] = dv
			}
		}
	}
	for c := 0; c < m.NCells; c++ {
		assert.True(t, denum[c] <= denom[c]+1.e-9)
	}
}

func TestClippingFaceMode(t *testing.T) {
	var (
		b    = mesh.NewBoxMesh(6, 6, 6, 1., 1., 1.)
		m    = b.Mesh
		ctx  = NewContext(m)
		v    = scalarField(m, affine)
		bc   = dirichletScalar(m, affine)
		grad = make([][3]float64, m.NCellsExt)
	)
	v[43] += 50. // spike
	opt := &Options{Method: LSQ, Inc: 1, ClipMode: ClipFace, ClipCoeff: 1.}
	assert.NoError(t, ctx.GradientScalar("p", opt, bc, v, nil, nil, grad))
	// post-condition: the face-midpoint prediction across any neighbor pair
	// stays within the largest value jump either cell sees
	dmax := make([]float64, m.NCells)
	for _, side := range []int{0, 1} {
		for _, fc := range m.IFaceCells {
			c, nb := fc[side], fc[1-side]
			if dv := math.Abs(v[nb] - v[c]); dv > dmax[c] {
				dmax[c] = dv
			}
		}
	}
	for _, fc := range m.IFaceCells {
		var (
			dc = utils.Sub3(m.CellCen[fc[1]], m.CellCen[fc[0]])
			p  float64
		)
		for d := 0; d < 3; d++ {
			p += 0.5 * (grad[fc[0]][d] + grad[fc[1]][d]) * dc[d]
		}
		bound := math.Max(dmax[fc[0]], dmax[fc[1]])
		assert.True(t, math.Abs(p) <= bound+1.e-9)
	}
}

func TestUnitBoxDirichletFace(t *testing.T) {
	var (
		b    = mesh.NewBoxMesh(10, 10, 10, 1., 1., 1.)
		m    = b.Mesh
		ctx  = NewContext(m)
		v    = scalarField(m, func(x utils.Vec3) float64 { return x[0] })
		nbf  = len(m.BFaceCell)
		bc   = BCScalar{A: make([]float64, nbf), B: make([]float64, nbf)}
		grad = make([][3]float64, m.NCellsExt)
		want = utils.Vec3{1, 0, 0}
	)
	// homogeneous Neumann everywhere except the x = 1 side, held at 1
	for f := range m.BFaceCell {
		if b.BFacePatch[f] == mesh.PatchXMax {
			bc.A[f] = 1.
		} else {
			bc.B[f] = 1.
		}
	}
	interior := make([]bool, m.NCells)
	for c := range interior {
		interior[c] = true
	}
	for _, c := range m.BFaceCell {
		interior[c] = false
	}
	for _, opt := range []*Options{
		{Method: GreenGaussIter, Inc: 1, NSweeps: 20, Epsilon: 1.e-8},
		{Method: LSQ, Inc: 1},
	} {
		assert.NoError(t, ctx.GradientScalar("p", opt, bc, v, nil, nil, grad))
		errs := make([]float64, m.NCells)
		for c := 0; c < m.NCells; c++ {
			if !interior[c] {
				continue
			}
			errs[c] = utils.Norm3(utils.Sub3(grad[c], want))
			for d := 0; d < 3; d++ {
				assert.InDelta(t, want[d], grad[c][d], 1.e-10)
			}
		}
		assert.Less(t, utils.L2NormWeighted(errs, m.CellVol, m.NCells), 1.e-10)
	}
}

type stubCoupling struct{}

func (stubCoupling) CouplingID() int        { return 1 }
func (stubCoupling) IsCoupledFace(int) bool { return false }
func (stubCoupling) CouplingDistance(int) (utils.Vec3, bool) {
	return utils.Vec3{}, false
}
func (stubCoupling) CouplingDelta(int, float64) (float64, bool) {
	return 0, false
}

func TestConfigErrors(t *testing.T) {
	var (
		b    = mesh.NewBoxMesh(3, 3, 3, 1., 1., 1.)
		m    = b.Mesh
		ctx  = NewContext(m)
		v    = scalarField(m, affine)
		vv   = make([][3]float64, m.NCellsExt)
		grad = make([][3]float64, m.NCellsExt)
		gv   = make([][3][3]float64, m.NCellsExt)
		fExt = make([][3]float64, m.NCellsExt)
	)
	for _, opt := range []*Options{
		{Method: GreenGaussIter, HydPressure: true},
		{Method: LSQ, HydPressure: true, WStride: 6},
		{Method: LSQ, WStride: 2},
		{Method: LSQ, ClipMode: ClipCell},
		{Method: GreenGaussIter, NSweeps: -1},
	} {
		err := ctx.GradientScalar("p", opt, BCScalar{}, v, nil, fExt, grad)
		assert.Error(t, err)
		var ce *ConfigError
		assert.ErrorAs(t, err, &ce)
	}
	// hydrostatic without a force field
	err := ctx.GradientScalar("p", &Options{Method: LSQ, HydPressure: true},
		BCScalar{}, v, nil, nil, grad)
	assert.Error(t, err)
	// scalar-only variants on a vector field
	for _, opt := range []*Options{
		{Method: LSQ, WStride: 6},
		{Method: LSQ, HydPressure: true},
		{Method: LSQ, Coupling: stubCoupling{}},
	} {
		err := ctx.GradientVector("U", opt, BCVector{}, vv, nil, gv)
		assert.Error(t, err)
		var ce *ConfigError
		assert.ErrorAs(t, err, &ce)
	}
	// coupling on a tensor field
	var (
		v6 = make([][6]float64, m.NCellsExt)
		g6 = make([][6][3]float64, m.NCellsExt)
	)
	err = ctx.GradientTensor("R", &Options{Method: LSQ, Coupling: stubCoupling{}},
		BCTensor{}, v6, g6)
	assert.Error(t, err)
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestCoefficientCacheReuse(t *testing.T) {
	var (
		b     = mesh.NewBoxMesh(5, 5, 5, 1., 1., 1.)
		m     = b.Mesh
		ctx   = NewContext(m)
		v     = scalarField(m, affine)
		bc    = dirichletScalar(m, affine)
		grad0 = make([][3]float64, m.NCellsExt)
		grad1 = make([][3]float64, m.NCellsExt)
		opt   = &Options{Method: LSQ, Inc: 1}
	)
	assert.NoError(t, ctx.GradientScalar("p", opt, bc, v, nil, nil, grad0))
	n := len(ctx.C.entries)
	assert.NoError(t, ctx.GradientScalar("p", opt, bc, v, nil, nil, grad1))
	assert.Equal(t, n, len(ctx.C.entries))
	// reuse is bit-identical
	for c := 0; c < m.NCells; c++ {
		assert.Equal(t, grad0[c], grad1[c])
	}
	// a geometry update invalidates the cached matrices; results stay exact
	// on the new geometry
	b.Perturb(3, 0.1)
	ctx.InvalidateGeometry()
	v = scalarField(m, affine)
	bc = dirichletScalar(m, affine)
	assert.NoError(t, ctx.GradientScalar("p", opt, bc, v, nil, nil, grad1))
	assertScalarGrad(t, m, grad1, affineGrad, 1.e-9)
}

func TestMultiRankMatchesSerial(t *testing.T) {
	var (
		b      = mesh.NewBoxMesh(6, 4, 4, 1., 1., 1.)
		m      = b.Mesh
		nparts = 2
		field  = func(x utils.Vec3) float64 { return x[0]*x[0] + x[1] - 0.3*x[2]*x[1] }
	)
	part := mesh.PartitionCellsSlab(m, nparts)
	local, err := mesh.Split(m, part, nparts)
	assert.NoError(t, err)
	for _, mt := range []Method{LSQ, GreenGaussIter} {
		opt := &Options{Method: mt, Inc: 1, NSweeps: 50, Epsilon: 1.e-12}
		var (
			serial   = NewContext(m)
			v        = scalarField(m, field)
			bc       = dirichletScalar(m, field)
			gradRef  = make([][3]float64, m.NCellsExt)
			gathered = make([][3]float64, m.NCells)
			ex       = halo.NewExchanger(nparts)
			wg       sync.WaitGroup
		)
		assert.NoError(t, serial.GradientScalar("p", opt, bc, v, nil, nil, gradRef))
		for r := 0; r < nparts; r++ {
			wg.Add(1)
			go func(r int) {
				defer wg.Done()
				var (
					lm   = local[r]
					ctx  = NewRankContext(lm, ex.Rank(r, lm))
					lv   = make([]float64, lm.NCellsExt)
					lbc  = dirichletScalar(lm, field)
					lgrd = make([][3]float64, lm.NCellsExt)
				)
				for c := 0; c < lm.NCells; c++ {
					lv[c] = field(lm.CellCen[c])
				}
				assert.NoError(t, ctx.GradientScalar("p", opt, lbc, lv, nil, nil, lgrd))
				for c := 0; c < lm.NCells; c++ {
					gathered[lm.GlobalCell[c]] = lgrd[c]
				}
			}(r)
		}
		wg.Wait()
		for c := 0; c < m.NCells; c++ {
			for d := 0; d < 3; d++ {
				assert.InDelta(t, gradRef[c][d], gathered[c][d], 1.e-11)
			}
		}
	}
}

func TestPeriodicGradient(t *testing.T) {
	b := mesh.NewBoxMesh(6, 4, 4, 2., 1., 1.)
	b.MakePeriodicX()
	var (
		m     = b.Mesh
		ctx   = NewContext(m)
		field = func(x utils.Vec3) float64 { return 3.*x[1] + 1. }
		v     = make([]float64, m.NCellsExt)
		bc    = dirichletScalar(m, field)
		grad  = make([][3]float64, m.NCellsExt)
	)
	// owned values only; ghosts arrive through the periodic exchange
	for c := 0; c < m.NCells; c++ {
		v[c] = field(m.CellCen[c])
	}
	for _, mt := range []Method{GreenGaussIter, LSQ} {
		opt := &Options{Method: mt, Inc: 1, NSweeps: 20, Epsilon: 1.e-12}
		assert.NoError(t, ctx.GradientScalar("p", opt, bc, v, nil, nil, grad))
		assertScalarGrad(t, m, grad, utils.Vec3{0, 3, 0}, 1.e-10)
	}
}

func TestDisabledCells(t *testing.T) {
	var (
		b = mesh.NewBoxMesh(4, 3, 3, 1., 1., 1.)
		m = b.Mesh
	)
	m.Disabled[5] = true
	var (
		ctx  = NewContext(m)
		v    = scalarField(m, affine)
		bc   = dirichletScalar(m, affine)
		grad = make([][3]float64, m.NCellsExt)
	)
	for _, mt := range []Method{GreenGaussIter, LSQ} {
		opt := &Options{Method: mt, Inc: 1, NSweeps: 10, Epsilon: 1.e-12}
		assert.NoError(t, ctx.GradientScalar("p", opt, bc, v, nil, nil, grad))
		assert.Equal(t, [3]float64{}, grad[5])
	}
}

func TestPerfRegistry(t *testing.T) {
	var (
		b    = mesh.NewBoxMesh(3, 3, 3, 1., 1., 1.)
		m    = b.Mesh
		ctx  = NewContext(m)
		v    = scalarField(m, affine)
		bc   = dirichletScalar(m, affine)
		grad = make([][3]float64, m.NCellsExt)
		opt  = &Options{Method: LSQ, Inc: 1}
	)
	assert.NoError(t, ctx.GradientScalar("p", opt, bc, v, nil, nil, grad))
	assert.NoError(t, ctx.GradientScalar("p", opt, bc, v, nil, nil, grad))
	s := ctx.Perf.Stats("p", LSQ)
	assert.Equal(t, 2, s.Calls)
	var buf bytes.Buffer
	ctx.Perf.DumpStats(&buf)
	assert.Contains(t, buf.String(), "p [Least-Squares]")
}

func TestMethodParsing(t *testing.T) {
	assert.Equal(t, LSQ, NewMethod("lsq"))
	assert.Equal(t, GreenGaussIter, NewMethod("ITER"))
	assert.Equal(t, "Least-Squares", LSQ.Print())
	assert.Panics(t, func() { NewMethod("nope") })
	assert.Equal(t, ClipFace, NewClipMode("face"))
	assert.Panics(t, func() { NewClipMode("nope") })
}

func TestAtomicAssemblyMatchesGrouped(t *testing.T) {
	var (
		b     = mesh.NewBoxMesh(5, 5, 5, 1., 1., 1.)
		m     = b.Mesh
		v     = scalarField(m, affine)
		bc    = dirichletScalar(m, affine)
		opt   = &Options{Method: GreenGaussIter, Inc: 1, NSweeps: 20, Epsilon: 1.e-12}
		grad0 = make([][3]float64, m.NCellsExt)
		grad1 = make([][3]float64, m.NCellsExt)
	)
	ctx := NewContext(m)
	assert.NoError(t, ctx.GradientScalar("p", opt, bc, v, nil, nil, grad0))
	ctx = NewContext(m)
	ctx.Assembly = AssemblyAtomic
	assert.NoError(t, ctx.GradientScalar("p", opt, bc, v, nil, nil, grad1))
	for c := 0; c < m.NCells; c++ {
		for d := 0; d < 3; d++ {
			assert.InDelta(t, grad0[c][d], grad1[c][d], 1.e-12)
		}
	}
}
