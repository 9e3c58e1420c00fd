package halo

import (
	"sync"
	"testing"

	"github.com/notargets/fvgrad/mesh"
	"github.com/notargets/fvgrad/utils"
	"github.com/stretchr/testify/assert"
)

func TestExchangerScalar(t *testing.T) {
	var (
		b      = mesh.NewBoxMesh(6, 3, 3, 1., 1., 1.)
		nparts = 3
	)
	part := mesh.PartitionCellsSlab(b.Mesh, nparts)
	local, err := mesh.Split(b.Mesh, part, nparts)
	assert.NoError(t, err)
	var (
		ex = NewExchanger(nparts)
		wg sync.WaitGroup
	)
	for r := 0; r < nparts; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			var (
				lm   = local[r]
				sn   = ex.Rank(r, lm)
				vals = make([]float64, lm.NCellsExt)
			)
			for c := 0; c < lm.NCells; c++ {
				vals[c] = float64(lm.GlobalCell[c])
			}
			sn.SyncScalar(vals)
			// ghosts carry their owner's value
			for c := lm.NCells; c < lm.NCellsExt; c++ {
				assert.Equal(t, float64(lm.GlobalCell[c]), vals[c])
			}
			// reductions are identical on every rank
			sum := sn.ReduceSum(float64(r + 1))
			assert.Equal(t, 6., sum)
			assert.Equal(t, 1., sn.ReduceMin(float64(r+1)))
			assert.Equal(t, 3., sn.ReduceMax(float64(r+1)))
			assert.Equal(t, nparts*lm.NCells, sn.ReduceSumInt(lm.NCells))
		}(r)
	}
	wg.Wait()
}

func TestSerialPeriodicTranslation(t *testing.T) {
	b := mesh.NewBoxMesh(4, 2, 2, 2., 1., 1.)
	b.MakePeriodicX()
	var (
		m    = b.Mesh
		sn   = NewSerial(m)
		vals = make([]float64, m.NCellsExt)
	)
	// value = y coordinate: invariant under the x translation
	for c := 0; c < m.NCells; c++ {
		vals[c] = m.CellCen[c][1]
	}
	sn.SyncScalar(vals)
	for n, cell := range m.Halo.RecvCells[0] {
		src := m.Halo.SendCells[0][n]
		assert.InDelta(t, m.CellCen[src][1], vals[cell], 1.e-14)
	}
}

func TestRotateSym(t *testing.T) {
	var (
		tr = mesh.NewRotationZ(0.4, utils.Vec3{})
		s  = utils.Sym3{1, 2, 3, 0.5, -0.25, 0.75}
	)
	got := utils.SymToMat(rotSym(tr, s))
	want := utils.RotateMat3(tr.Rot, utils.SymToMat(s))
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, want[i][j], got[i][j], 1.e-12)
		}
	}
}

func TestRotateSymGrad(t *testing.T) {
	var (
		tr  = mesh.NewRotationZ(-0.7, utils.Vec3{})
		dir = utils.Vec3{0.3, -1.1, 0.6}
		g   [6][3]float64
	)
	for i := 0; i < 6; i++ {
		for d := 0; d < 3; d++ {
			g[i][d] = float64(i) - 0.7*float64(d) + 0.1*float64(i*d)
		}
	}
	// the directional derivative of the rotated field along the rotated
	// direction equals the rotated directional derivative
	deriv := func(g [6][3]float64, d utils.Vec3) (s utils.Sym3) {
		for i := 0; i < 6; i++ {
			s[i] = utils.Dot3(g[i], d)
		}
		return
	}
	got := deriv(rotSymGrad(tr, g), rotVec(tr, dir))
	want := rotSym(tr, deriv(g, dir))
	for i := 0; i < 6; i++ {
		assert.InDelta(t, want[i], got[i], 1.e-12)
	}
}
