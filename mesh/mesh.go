package mesh

import (
	"fmt"
	"math"

	"github.com/notargets/fvgrad/utils"
)

// Mesh is the read-only unstructured finite-volume mesh contract consumed by
// the gradient kernels. Cells [0,NCells) are owned; ghost/halo images occupy
// [NCells,NCellsExt). Interior faces carry the pair of adjacent cells with
// the area normal pointing from CellI toward CellJ; boundary faces carry the
// single interior cell with the normal pointing out of the domain.
type Mesh struct {
	NCells    int
	NCellsExt int

	// Interior faces
	IFaceCells  [][2]int     // adjacent cells, normal points [0] -> [1]
	IFaceNormal []utils.Vec3 // area-weighted normal
	IFaceCog    []utils.Vec3 // face centroid
	Weight      []float64    // interpolation factor toward side [0]
	Dofij       []utils.Vec3 // non-orthogonality offset, zero on orthogonal meshes

	// Boundary faces
	BFaceCell   []int
	BFaceNormal []utils.Vec3 // area-weighted outward normal
	BFaceSurf   []float64
	BFaceCog    []utils.Vec3
	BDist       []float64    // orthogonal distance cell center to face plane
	DiipB       []utils.Vec3 // offset from the center's face projection to the face centroid

	// Cells
	CellCen  []utils.Vec3
	CellVol  []float64
	Disabled []bool // solid/porous-blocked cells, gradient forced to zero

	// FaceGroups holds a coloring of the interior faces: within one group no
	// two faces share a cell, so a group may be scattered in parallel with
	// only a barrier between groups. BFaceGroups is the same for boundary
	// faces (a cell may own several).
	FaceGroups  [][]int
	BFaceGroups [][]int

	// CellCellIdx/CellCellLst is the CSR second-ring neighborhood used by
	// the extended least-squares stencil; built on demand.
	CellCellIdx []int
	CellCellLst []int

	// Halo describes the ghost cells, nil for a serial mesh without
	// periodicity.
	Halo *Halo

	// GlobalCell maps local (owned and ghost) cells of a partitioned mesh
	// back to global ids; nil for an unpartitioned mesh.
	GlobalCell []int

	// Generation counts geometry rebuilds (mesh motion, ALE). Consumers key
	// cached geometric coefficients to it.
	Generation int
}

// Halo describes where each ghost cell's authoritative value lives and which
// periodic transform, if any, applies on arrival.
type Halo struct {
	NRanks int
	Rank   int

	// Send side: for each peer rank, the owned cells to ship.
	SendCells [][]int

	// Receive side: for each peer rank, the ghost slots to fill, in the
	// same order the peer ships them.
	RecvCells [][]int

	// GhostTransform[g] indexes Transforms for ghost cell NCells+g, or -1.
	GhostTransform []int
	Transforms     []Transform
}

// Transform is a periodic transform: x -> Rot*x + Trans. Values of vector
// and tensor fields must be rotated by Rot when copied into the ghost slot;
// scalars only translate.
type Transform struct {
	Rot      utils.Mat3
	Trans    utils.Vec3
	Identity bool // pure translation, rotation may be skipped
}

// NewRotationZ builds a rotational-periodicity transform: rotation by theta
// about the z axis followed by the given translation.
func NewRotationZ(theta float64, trans utils.Vec3) Transform {
	c, s := math.Cos(theta), math.Sin(theta)
	return Transform{
		Rot:   utils.Mat3{{c, -s, 0}, {s, c, 0}, {0, 0, 1}},
		Trans: trans,
	}
}

// NGhosts returns the ghost count.
func (m *Mesh) NGhosts() int { return m.NCellsExt - m.NCells }

// Check validates the array contracts the gradient kernels rely on.
func (m *Mesh) Check() error {
	if m.NCellsExt < m.NCells {
		return fmt.Errorf("mesh: NCellsExt %d < NCells %d", m.NCellsExt, m.NCells)
	}
	if len(m.CellCen) != m.NCellsExt || len(m.CellVol) != m.NCellsExt {
		return fmt.Errorf("mesh: cell arrays must cover ghosts: have %d centers, %d volumes, want %d",
			len(m.CellCen), len(m.CellVol), m.NCellsExt)
	}
	nif := len(m.IFaceCells)
	if len(m.IFaceNormal) != nif || len(m.Weight) != nif || len(m.Dofij) != nif {
		return fmt.Errorf("mesh: inconsistent interior face arrays")
	}
	for f, c := range m.IFaceCells {
		if c[0] < 0 || c[0] >= m.NCellsExt || c[1] < 0 || c[1] >= m.NCellsExt {
			return fmt.Errorf("mesh: interior face %d references cell out of range", f)
		}
	}
	nbf := len(m.BFaceCell)
	if len(m.BFaceNormal) != nbf || len(m.BDist) != nbf || len(m.DiipB) != nbf ||
		len(m.BFaceSurf) != nbf || len(m.BFaceCog) != nbf {
		return fmt.Errorf("mesh: inconsistent boundary face arrays")
	}
	for f, c := range m.BFaceCell {
		if c < 0 || c >= m.NCells {
			return fmt.Errorf("mesh: boundary face %d references cell %d outside owned range", f, c)
		}
	}
	return nil
}

// BumpGeneration marks the geometry as recomputed, invalidating any cached
// geometric coefficients keyed to the previous generation.
func (m *Mesh) BumpGeneration() {
	m.Generation++
}

// BuildFaceGroups colors the interior faces greedily so that no two faces in
// a group touch the same cell. Must be rebuilt after any connectivity
// change.
func (m *Mesh) BuildFaceGroups() {
	var (
		nif       = len(m.IFaceCells)
		faceColor = make([]int, nif)
		nColors   int
	)
	// cellColors[c] is a bitmask of colors already touching cell c; fall
	// back to a map once a cell exceeds 64 faces (does not happen on
	// reasonable meshes, but the mesh contract does not forbid it).
	cellColors := make([]uint64, m.NCellsExt)
	overflow := map[int]map[int]bool{}
	for f := 0; f < nif; f++ {
		i, j := m.IFaceCells[f][0], m.IFaceCells[f][1]
		used := cellColors[i] | cellColors[j]
		color := 0
		for color < 64 && used&(1<<uint(color)) != 0 {
			color++
		}
		if color == 64 {
			for {
				if !overflow[i][color] && !overflow[j][color] {
					break
				}
				color++
			}
		}
		faceColor[f] = color
		if color < 64 {
			cellColors[i] |= 1 << uint(color)
			cellColors[j] |= 1 << uint(color)
		} else {
			for _, c := range [2]int{i, j} {
				if overflow[c] == nil {
					overflow[c] = map[int]bool{}
				}
				overflow[c][color] = true
			}
		}
		if color+1 > nColors {
			nColors = color + 1
		}
	}
	m.FaceGroups = make([][]int, nColors)
	for f := 0; f < nif; f++ {
		c := faceColor[f]
		m.FaceGroups[c] = append(m.FaceGroups[c], f)
	}

	// boundary faces: color by owning cell only
	var (
		nbf     = len(m.BFaceCell)
		bColor  = make([]int, nbf)
		bUsed   = make([]int, m.NCells) // faces seen so far per cell
		nBCol   int
	)
	for f := 0; f < nbf; f++ {
		c := m.BFaceCell[f]
		bColor[f] = bUsed[c]
		bUsed[c]++
		if bColor[f]+1 > nBCol {
			nBCol = bColor[f] + 1
		}
	}
	m.BFaceGroups = make([][]int, nBCol)
	for f := 0; f < nbf; f++ {
		m.BFaceGroups[bColor[f]] = append(m.BFaceGroups[bColor[f]], f)
	}
}
