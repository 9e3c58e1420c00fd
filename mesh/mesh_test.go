package mesh

import (
	"math"
	"testing"

	"github.com/notargets/fvgrad/utils"
	"github.com/stretchr/testify/assert"
)

func TestBoxMeshGeometry(t *testing.T) {
	var (
		b = NewBoxMesh(4, 3, 2, 2., 1.5, 1.)
		m = b.Mesh
	)
	assert.NoError(t, m.Check())
	assert.Equal(t, 24, m.NCells)
	{ // total volume
		var vol float64
		for c := 0; c < m.NCells; c++ {
			vol += m.CellVol[c]
		}
		assert.InDelta(t, 3., vol, 1.e-12)
	}
	{ // every cell is a closed polyhedron: surface vectors cancel
		closure := make([]utils.Vec3, m.NCells)
		for f, fc := range m.IFaceCells {
			for d := 0; d < 3; d++ {
				closure[fc[0]][d] += m.IFaceNormal[f][d]
				closure[fc[1]][d] -= m.IFaceNormal[f][d]
			}
		}
		for f, cell := range m.BFaceCell {
			for d := 0; d < 3; d++ {
				closure[cell][d] += m.BFaceNormal[f][d]
			}
		}
		for c := 0; c < m.NCells; c++ {
			for d := 0; d < 3; d++ {
				assert.InDelta(t, 0., closure[c][d], 1.e-12)
			}
		}
	}
	{ // boundary metrics
		for f := range m.BFaceCell {
			assert.True(t, m.BDist[f] > 0)
			assert.InDelta(t, m.BFaceSurf[f], utils.Norm3(m.BFaceNormal[f]), 1.e-12)
		}
	}
}

func TestFaceGroups(t *testing.T) {
	var (
		b = NewBoxMesh(5, 4, 3, 1., 1., 1.)
		m = b.Mesh
	)
	m.BuildFaceGroups()
	{ // interior groups: disjoint cells within a group, all faces covered once
		seen := make([]bool, len(m.IFaceCells))
		for _, grp := range m.FaceGroups {
			cells := make(map[int]bool)
			for _, f := range grp {
				assert.False(t, seen[f])
				seen[f] = true
				fc := m.IFaceCells[f]
				assert.False(t, cells[fc[0]])
				assert.False(t, cells[fc[1]])
				cells[fc[0]] = true
				cells[fc[1]] = true
			}
		}
		for f := range seen {
			assert.True(t, seen[f])
		}
	}
	{ // boundary groups
		seen := make([]bool, len(m.BFaceCell))
		for _, grp := range m.BFaceGroups {
			cells := make(map[int]bool)
			for _, f := range grp {
				assert.False(t, seen[f])
				seen[f] = true
				assert.False(t, cells[m.BFaceCell[f]])
				cells[m.BFaceCell[f]] = true
			}
		}
		for f := range seen {
			assert.True(t, seen[f])
		}
	}
}

func TestPerturb(t *testing.T) {
	var (
		b   = NewBoxMesh(4, 4, 4, 1., 1., 1.)
		m   = b.Mesh
		gen = m.Generation
	)
	b.Perturb(1, 0.2)
	assert.NoError(t, m.Check())
	assert.True(t, m.Generation > gen)
	// dofij stays consistent with the face-weight interpolation point
	for f, fc := range m.IFaceCells {
		w := m.Weight[f]
		for d := 0; d < 3; d++ {
			ip := w*m.CellCen[fc[0]][d] + (1.-w)*m.CellCen[fc[1]][d]
			assert.InDelta(t, m.IFaceCog[f][d]-ip, m.Dofij[f][d], 1.e-12)
		}
	}
}

func TestExtendedNeighborhood(t *testing.T) {
	var (
		b = NewBoxMesh(3, 3, 3, 1., 1., 1.)
		m = b.Mesh
	)
	m.BuildExtendedNeighborhood()
	// center cell: 12 face-diagonal second-ring neighbors, the straight
	// two-step ones fall outside a 3x3x3 grid
	center := b.cellID(1, 1, 1)
	ring := m.CellCellLst[m.CellCellIdx[center]:m.CellCellIdx[center+1]]
	assert.Equal(t, 12, len(ring))
	direct := make(map[int]bool)
	for _, fc := range m.IFaceCells {
		if fc[0] == center {
			direct[fc[1]] = true
		}
		if fc[1] == center {
			direct[fc[0]] = true
		}
	}
	for _, nb := range ring {
		assert.NotEqual(t, center, nb)
		assert.False(t, direct[nb])
	}
}

func TestSplitSlab(t *testing.T) {
	var (
		b      = NewBoxMesh(4, 3, 3, 1., 1., 1.)
		m      = b.Mesh
		nparts = 2
	)
	part := PartitionCellsSlab(m, nparts)
	local, err := Split(m, part, nparts)
	assert.NoError(t, err)
	assert.Equal(t, nparts, len(local))
	var (
		totalCells  int
		totalBFaces int
	)
	for r, lm := range local {
		assert.NoError(t, lm.Check())
		totalCells += lm.NCells
		totalBFaces += len(lm.BFaceCell)
		// owned cells carry ascending global ids
		for c := 1; c < lm.NCells; c++ {
			assert.True(t, lm.GlobalCell[c] > lm.GlobalCell[c-1])
		}
		// send mirrors the peer's receive
		for p := 0; p < nparts; p++ {
			if p == r {
				continue
			}
			assert.Equal(t, len(lm.Halo.SendCells[p]), len(local[p].Halo.RecvCells[r]))
		}
	}
	assert.Equal(t, m.NCells, totalCells)
	assert.Equal(t, len(m.BFaceCell), totalBFaces)
	// ghost values correspond across the send/recv pairing
	for r, lm := range local {
		for p := 0; p < nparts; p++ {
			for n, g := range lm.Halo.RecvCells[p] {
				src := local[p].Halo.SendCells[r][n]
				assert.Equal(t, local[p].GlobalCell[src], lm.GlobalCell[g])
			}
		}
	}
}

func TestPeriodicBox(t *testing.T) {
	var (
		b = NewBoxMesh(4, 2, 2, 2., 1., 1.)
		m = b.Mesh
	)
	b.MakePeriodicX()
	assert.NoError(t, m.Check())
	assert.Equal(t, 2*2*2, m.NGhosts())
	assert.NotNil(t, m.Halo)
	// translation-only transforms with |tx| == Lx and no rotation
	for _, tr := range m.Halo.Transforms {
		assert.True(t, tr.Identity)
		assert.InDelta(t, 2., math.Abs(tr.Trans[0]), 1.e-12)
		assert.InDelta(t, 0., tr.Trans[1], 1.e-12)
		assert.InDelta(t, 0., tr.Trans[2], 1.e-12)
	}
}
