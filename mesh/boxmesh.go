package mesh

import (
	"math"
	"math/rand"

	"github.com/notargets/fvgrad/utils"
)

// Patch indices for the six sides of a box mesh.
const (
	PatchXMin = iota
	PatchXMax
	PatchYMin
	PatchYMax
	PatchZMin
	PatchZMax
)

// Box is a Cartesian hexahedral mesh over [0,Lx]x[0,Ly]x[0,Lz] used by the
// tests and the bench tool. BFacePatch maps each boundary face to one of the
// six Patch* sides.
type Box struct {
	*Mesh
	Nx, Ny, Nz int
	Lx, Ly, Lz float64
	BFacePatch []int
}

func (b *Box) cellID(i, j, k int) int {
	return i + b.Nx*(j+b.Ny*k)
}

// NewBoxMesh builds an orthogonal Nx x Ny x Nz box mesh over the unit cube
// scaled to (Lx,Ly,Lz). All weights are exact midpoints and every dofij is
// zero, so the iterative gradient converges in a single sweep and the mesh
// is a clean oracle for the exactness tests.
func NewBoxMesh(nx, ny, nz int, lx, ly, lz float64) (b *Box) {
	var (
		hx, hy, hz = lx / float64(nx), ly / float64(ny), lz / float64(nz)
		nCells     = nx * ny * nz
		vol        = hx * hy * hz
	)
	b = &Box{
		Mesh: &Mesh{
			NCells:    nCells,
			NCellsExt: nCells,
		},
		Nx: nx, Ny: ny, Nz: nz,
		Lx: lx, Ly: ly, Lz: lz,
	}
	m := b.Mesh
	m.CellCen = make([]utils.Vec3, nCells)
	m.CellVol = make([]float64, nCells)
	m.Disabled = make([]bool, nCells)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				c := b.cellID(i, j, k)
				m.CellCen[c] = utils.Vec3{
					(float64(i) + 0.5) * hx,
					(float64(j) + 0.5) * hy,
					(float64(k) + 0.5) * hz,
				}
				m.CellVol[c] = vol
			}
		}
	}
	addIFace := func(ci, cj int, normal, cog utils.Vec3) {
		m.IFaceCells = append(m.IFaceCells, [2]int{ci, cj})
		m.IFaceNormal = append(m.IFaceNormal, normal)
		m.IFaceCog = append(m.IFaceCog, cog)
		m.Weight = append(m.Weight, 0.5)
		m.Dofij = append(m.Dofij, utils.Vec3{})
	}
	addBFace := func(c int, patch int, normal, cog utils.Vec3, surf, dist float64) {
		m.BFaceCell = append(m.BFaceCell, c)
		m.BFaceNormal = append(m.BFaceNormal, normal)
		m.BFaceCog = append(m.BFaceCog, cog)
		m.BFaceSurf = append(m.BFaceSurf, surf)
		m.BDist = append(m.BDist, dist)
		m.DiipB = append(m.DiipB, utils.Vec3{})
		b.BFacePatch = append(b.BFacePatch, patch)
	}
	var (
		sx, sy, sz = hy * hz, hx * hz, hx * hy
	)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				c := b.cellID(i, j, k)
				cen := m.CellCen[c]
				// x direction
				if i+1 < nx {
					addIFace(c, b.cellID(i+1, j, k),
						utils.Vec3{sx, 0, 0},
						utils.Vec3{cen[0] + 0.5*hx, cen[1], cen[2]})
				} else {
					addBFace(c, PatchXMax, utils.Vec3{sx, 0, 0},
						utils.Vec3{lx, cen[1], cen[2]}, sx, 0.5*hx)
				}
				if i == 0 {
					addBFace(c, PatchXMin, utils.Vec3{-sx, 0, 0},
						utils.Vec3{0, cen[1], cen[2]}, sx, 0.5*hx)
				}
				// y direction
				if j+1 < ny {
					addIFace(c, b.cellID(i, j+1, k),
						utils.Vec3{0, sy, 0},
						utils.Vec3{cen[0], cen[1] + 0.5*hy, cen[2]})
				} else {
					addBFace(c, PatchYMax, utils.Vec3{0, sy, 0},
						utils.Vec3{cen[0], ly, cen[2]}, sy, 0.5*hy)
				}
				if j == 0 {
					addBFace(c, PatchYMin, utils.Vec3{0, -sy, 0},
						utils.Vec3{cen[0], 0, cen[2]}, sy, 0.5*hy)
				}
				// z direction
				if k+1 < nz {
					addIFace(c, b.cellID(i, j, k+1),
						utils.Vec3{0, 0, sz},
						utils.Vec3{cen[0], cen[1], cen[2] + 0.5*hz})
				} else {
					addBFace(c, PatchZMax, utils.Vec3{0, 0, sz},
						utils.Vec3{cen[0], cen[1], lz}, sz, 0.5*hz)
				}
				if k == 0 {
					addBFace(c, PatchZMin, utils.Vec3{0, 0, -sz},
						utils.Vec3{cen[0], cen[1], 0}, sz, 0.5*hz)
				}
			}
		}
	}
	m.BuildFaceGroups()
	return
}

// Perturb skews the face interpolation geometry without moving cells: the
// weights wander off the midpoint and the face centroids slide tangentially,
// so dofij becomes nonzero and the non-orthogonality correction path is
// exercised. Face normals are untouched, preserving the closed-cell
// divergence identity.
func (b *Box) Perturb(seed int64, amp float64) {
	var (
		m   = b.Mesh
		rng = rand.New(rand.NewSource(seed))
	)
	for f := range m.IFaceCells {
		i, j := m.IFaceCells[f][0], m.IFaceCells[f][1]
		w := 0.5 + amp*(rng.Float64()-0.5)
		m.Weight[f] = w
		// slide the centroid within the face plane
		n := m.IFaceNormal[f]
		t1, t2 := tangents(n)
		d1 := amp * (rng.Float64() - 0.5)
		d2 := amp * (rng.Float64() - 0.5)
		cog := m.IFaceCog[f]
		for d := 0; d < 3; d++ {
			cog[d] += d1*t1[d] + d2*t2[d]
		}
		m.IFaceCog[f] = cog
		mid := utils.Vec3{}
		for d := 0; d < 3; d++ {
			mid[d] = w*m.CellCen[i][d] + (1-w)*m.CellCen[j][d]
		}
		m.Dofij[f] = utils.Sub3(cog, mid)
	}
	for f := range m.BFaceCell {
		c := m.BFaceCell[f]
		n := m.BFaceNormal[f]
		t1, t2 := tangents(n)
		d1 := amp * (rng.Float64() - 0.5)
		d2 := amp * (rng.Float64() - 0.5)
		cog := m.BFaceCog[f]
		for d := 0; d < 3; d++ {
			cog[d] += d1*t1[d] + d2*t2[d]
		}
		m.BFaceCog[f] = cog
		// projection of the cell center on the face plane, then offset
		nn := utils.Scale3(1./utils.Norm3(n), n)
		proj := utils.Vec3{}
		for d := 0; d < 3; d++ {
			proj[d] = m.CellCen[c][d] + m.BDist[f]*nn[d]
		}
		m.DiipB[f] = utils.Sub3(cog, proj)
	}
	m.BumpGeneration()
}

func tangents(n utils.Vec3) (t1, t2 utils.Vec3) {
	nn := utils.Scale3(1./utils.Norm3(n), n)
	if math.Abs(nn[0]) < 0.9 {
		t1 = utils.Vec3{1, 0, 0}
	} else {
		t1 = utils.Vec3{0, 1, 0}
	}
	// Gram-Schmidt
	p := utils.Dot3(t1, nn)
	for d := 0; d < 3; d++ {
		t1[d] -= p * nn[d]
	}
	t1 = utils.Scale3(1./utils.Norm3(t1), t1)
	t2 = utils.Vec3{
		nn[1]*t1[2] - nn[2]*t1[1],
		nn[2]*t1[0] - nn[0]*t1[2],
		nn[0]*t1[1] - nn[1]*t1[0],
	}
	return
}

// MakePeriodicX converts the two x patches into a periodic pair: the
// boundary faces on x-min and x-max are replaced with interior faces against
// translated ghost images of the wrap-around cells. The mesh gains
// 2*Ny*Nz ghost cells and a single-rank halo with a translation transform.
func (b *Box) MakePeriodicX() {
	var (
		m      = b.Mesh
		nGhost = 2 * b.Ny * b.Nz
	)
	ghostOf := make(map[int]int) // cell id + side key -> ghost id
	// strip x-min/x-max boundary faces, keep the rest
	var (
		keepB []int
	)
	for f, p := range b.BFacePatch {
		if p != PatchXMin && p != PatchXMax {
			keepB = append(keepB, f)
		}
	}
	halo := &Halo{
		NRanks:     1,
		Rank:       0,
		SendCells:  make([][]int, 1),
		RecvCells:  make([][]int, 1),
		Transforms: []Transform{
			{Trans: utils.Vec3{b.Lx, 0, 0}, Identity: true},
			{Trans: utils.Vec3{-b.Lx, 0, 0}, Identity: true},
		},
	}
	ghostID := m.NCells
	addGhost := func(src int, transform int) int {
		key := src*2 + transform
		if g, ok := ghostOf[key]; ok {
			return g
		}
		g := ghostID
		ghostID++
		ghostOf[key] = g
		cen := m.CellCen[src]
		for d := 0; d < 3; d++ {
			cen[d] += halo.Transforms[transform].Trans[d]
		}
		m.CellCen = append(m.CellCen, cen)
		m.CellVol = append(m.CellVol, m.CellVol[src])
		halo.SendCells[0] = append(halo.SendCells[0], src)
		halo.RecvCells[0] = append(halo.RecvCells[0], g)
		halo.GhostTransform = append(halo.GhostTransform, transform)
		return g
	}
	var (
		sx = (b.Ly / float64(b.Ny)) * (b.Lz / float64(b.Nz))
	)
	for k := 0; k < b.Nz; k++ {
		for j := 0; j < b.Ny; j++ {
			cLo := b.cellID(0, j, k)
			cHi := b.cellID(b.Nx-1, j, k)
			// face owned by the high side, ghost is the low cell shifted +Lx
			g := addGhost(cLo, 0)
			m.IFaceCells = append(m.IFaceCells, [2]int{cHi, g})
			m.IFaceNormal = append(m.IFaceNormal, utils.Vec3{sx, 0, 0})
			m.IFaceCog = append(m.IFaceCog, utils.Vec3{b.Lx, m.CellCen[cHi][1], m.CellCen[cHi][2]})
			m.Weight = append(m.Weight, 0.5)
			m.Dofij = append(m.Dofij, utils.Vec3{})
			// face owned by the low side, ghost is the high cell shifted -Lx
			g = addGhost(cHi, 1)
			m.IFaceCells = append(m.IFaceCells, [2]int{g, cLo})
			m.IFaceNormal = append(m.IFaceNormal, utils.Vec3{sx, 0, 0})
			m.IFaceCog = append(m.IFaceCog, utils.Vec3{0, m.CellCen[cLo][1], m.CellCen[cLo][2]})
			m.Weight = append(m.Weight, 0.5)
			m.Dofij = append(m.Dofij, utils.Vec3{})
		}
	}
	// compact the surviving boundary faces
	var (
		bc  []int
		bn  []utils.Vec3
		bg  []utils.Vec3
		bs  []float64
		bd  []float64
		bi  []utils.Vec3
		bp  []int
	)
	for _, f := range keepB {
		bc = append(bc, m.BFaceCell[f])
		bn = append(bn, m.BFaceNormal[f])
		bg = append(bg, m.BFaceCog[f])
		bs = append(bs, m.BFaceSurf[f])
		bd = append(bd, m.BDist[f])
		bi = append(bi, m.DiipB[f])
		bp = append(bp, b.BFacePatch[f])
	}
	m.BFaceCell, m.BFaceNormal, m.BFaceCog = bc, bn, bg
	m.BFaceSurf, m.BDist, m.DiipB = bs, bd, bi
	b.BFacePatch = bp

	m.NCellsExt = m.NCells + nGhost
	m.Disabled = append(m.Disabled, make([]bool, nGhost)...)
	m.Halo = halo
	m.BuildFaceGroups()
	m.BumpGeneration()
}
