package gradient

import (
	"fmt"

	"github.com/notargets/fvgrad/utils"
)

// Family keys one geometric-coefficient layout in the cache.
type Family uint

const (
	FamilyIter       Family = iota // 3x3 inverse for the iterative method
	FamilyLSQ                      // symmetric LSQ matrix, scalar BC folded into boundary rows
	FamilyLSQNeutral               // symmetric LSQ matrix with neutral (b=1) boundary term
)

type cacheKey struct {
	fam        Family
	extended   bool
	couplingID int
}

// Cache holds the per-cell geometric coefficient matrices for each
// reconstruction family, keyed additionally by coupling entity. Entries are
// built lazily and keyed to the mesh geometry generation; Invalidate (or a
// generation bump) forces a rebuild on next use. Not safe for concurrent
// mutation: populate from a single goroutine per rank.
type Cache struct {
	entries map[cacheKey]*cacheEntry
}

type cacheEntry struct {
	gen int

	// iterative family
	cocgIt []utils.Mat3 // inverted

	// least-squares families
	cocg     []utils.Sym3 // inverted, all cells
	cocgb    []utils.Sym3 // interior-only partial sums, boundary cells only
	bCells   []int        // cells owning at least one (uncoupled) boundary face
	bCellIdx []int        // cell -> position in bCells, -1 otherwise
	bFacesOf [][]int      // per bCells entry, its boundary faces

	prevName   string
	boundaryOK bool // boundary rows match prevName/inc state
	degenerate int  // cells whose matrix inversion needed the identity fallback
	warned     bool
}

func NewCache() *Cache {
	return &Cache{entries: map[cacheKey]*cacheEntry{}}
}

// Invalidate drops every entry; the next call rebuilds from current
// geometry.
func (c *Cache) Invalidate() {
	c.entries = map[cacheKey]*cacheEntry{}
}

func couplingID(cpl InternalCoupling) int {
	if cpl == nil {
		return -1
	}
	return cpl.CouplingID()
}

// iterCocg returns the inverted iterative-family matrices, building them on
// first use or after a geometry change.
func (ctx *Context) iterCocg() []utils.Mat3 {
	var (
		m   = ctx.M
		key = cacheKey{fam: FamilyIter}
		e   = ctx.C.entries[key]
	)
	if e != nil && e.gen == m.Generation {
		return e.cocgIt
	}
	e = &cacheEntry{gen: m.Generation}
	cocg := make([]utils.Mat3, m.NCellsExt)
	for c := range cocg {
		cocg[c][0][0], cocg[c][1][1], cocg[c][2][2] = 1, 1, 1
	}
	ctx.iFaceScatter(func(f int, add addFunc) {
		var (
			fc    = m.IFaceCells[f]
			n     = m.IFaceNormal[f]
			dofij = m.Dofij[f]
		)
		for _, side := range [2]int{0, 1} {
			cell := fc[side]
			sgn := 1.
			if side == 1 {
				sgn = -1. // outward normal flips on the far side
			}
			dvol := 0.5 / m.CellVol[cell]
			for l := 0; l < 3; l++ {
				for mm := 0; mm < 3; mm++ {
					add(&cocg[cell][l][mm], -sgn*dvol*n[l]*dofij[mm])
				}
			}
		}
	})
	for c := 0; c < m.NCells; c++ {
		if !utils.MatInvert3(&cocg[c]) {
			cocg[c] = utils.Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
			e.degenerate++
		}
	}
	e.cocgIt = cocg
	ctx.C.entries[key] = e
	ctx.warnDegenerate("iterative", e)
	return e.cocgIt
}

// lsqCocg returns the inverted least-squares matrices for the given family,
// reusing the saved boundary partial when only the BC coefficients could
// have changed. Recomputation of the boundary rows is triggered by a
// variable-name change, by inc != 0, or by a geometry generation change
// (which rebuilds everything).
func (ctx *Context) lsqCocg(fam Family, extended bool, name string, inc int,
	bcB []float64, cpl InternalCoupling) *cacheEntry {
	var (
		m   = ctx.M
		key = cacheKey{fam: fam, extended: extended, couplingID: couplingID(cpl)}
		e   = ctx.C.entries[key]
	)
	if e == nil || e.gen != m.Generation {
		e = ctx.buildLsqInterior(extended, cpl)
		ctx.C.entries[key] = e
	} else if fam == FamilyLSQNeutral && e.boundaryOK {
		return e
	} else if e.boundaryOK && e.prevName == name && inc == 0 {
		return e
	}
	ctx.applyLsqBoundary(e, fam, bcB)
	e.prevName = name
	e.boundaryOK = true
	ctx.warnDegenerate("least-squares", e)
	return e
}

// buildLsqInterior accumulates the BC-independent part: interior neighbor
// direction outer products, optional second-ring contributions, and
// interior-equivalent contributions of coupled boundary faces. Interior
// cells are inverted immediately; boundary cells keep the raw partial in
// cocgb for cheap BC re-derivation.
func (ctx *Context) buildLsqInterior(extended bool, cpl InternalCoupling) (e *cacheEntry) {
	var (
		m = ctx.M
	)
	e = &cacheEntry{gen: m.Generation}
	raw := make([]utils.Sym3, m.NCellsExt)
	ctx.iFaceScatter(func(f int, add addFunc) {
		var (
			fc = m.IFaceCells[f]
			dc = utils.Sub3(m.CellCen[fc[1]], m.CellCen[fc[0]])
		)
		ddc := 1. / utils.Dot3(dc, dc)
		for _, cell := range fc {
			add(&raw[cell][0], dc[0]*dc[0]*ddc)
			add(&raw[cell][1], dc[1]*dc[1]*ddc)
			add(&raw[cell][2], dc[2]*dc[2]*ddc)
			add(&raw[cell][3], dc[0]*dc[1]*ddc)
			add(&raw[cell][4], dc[1]*dc[2]*ddc)
			add(&raw[cell][5], dc[0]*dc[2]*ddc)
		}
	})
	if extended {
		if m.CellCellIdx == nil {
			m.BuildExtendedNeighborhood()
		}
		ctx.cellLoop(func(c int) {
			for i := m.CellCellIdx[c]; i < m.CellCellIdx[c+1]; i++ {
				n := m.CellCellLst[i]
				dc := utils.Sub3(m.CellCen[n], m.CellCen[c])
				ddc := 1. / utils.Dot3(dc, dc)
				raw[c][0] += dc[0] * dc[0] * ddc
				raw[c][1] += dc[1] * dc[1] * ddc
				raw[c][2] += dc[2] * dc[2] * ddc
				raw[c][3] += dc[0] * dc[1] * ddc
				raw[c][4] += dc[1] * dc[2] * ddc
				raw[c][5] += dc[0] * dc[2] * ddc
			}
		})
	}
	// coupled boundary faces contribute like interior neighbors
	hasUncoupledBFace := make([]bool, m.NCells)
	for f, cell := range m.BFaceCell {
		if cpl != nil && cpl.IsCoupledFace(f) {
			dc, ok := cpl.CouplingDistance(f)
			if ok {
				ddc := 1. / utils.Dot3(dc, dc)
				raw[cell][0] += dc[0] * dc[0] * ddc
				raw[cell][1] += dc[1] * dc[1] * ddc
				raw[cell][2] += dc[2] * dc[2] * ddc
				raw[cell][3] += dc[0] * dc[1] * ddc
				raw[cell][4] += dc[1] * dc[2] * ddc
				raw[cell][5] += dc[0] * dc[2] * ddc
			}
			continue
		}
		hasUncoupledBFace[cell] = true
	}
	// split cells into interior (invert now) and boundary (save partial)
	e.bCellIdx = make([]int, m.NCells)
	for c := range e.bCellIdx {
		e.bCellIdx[c] = -1
	}
	for c := 0; c < m.NCells; c++ {
		if hasUncoupledBFace[c] {
			e.bCellIdx[c] = len(e.bCells)
			e.bCells = append(e.bCells, c)
			e.cocgb = append(e.cocgb, raw[c])
		}
	}
	e.bFacesOf = make([][]int, len(e.bCells))
	for f, cell := range m.BFaceCell {
		if cpl != nil && cpl.IsCoupledFace(f) {
			continue
		}
		i := e.bCellIdx[cell]
		e.bFacesOf[i] = append(e.bFacesOf[i], f)
	}
	e.cocg = raw
	for c := 0; c < m.NCells; c++ {
		if e.bCellIdx[c] >= 0 {
			continue
		}
		if !utils.SymInvert(&e.cocg[c]) {
			e.cocg[c] = utils.Sym3{1, 1, 1, 0, 0, 0}
			e.degenerate++
		}
	}
	return
}

// applyLsqBoundary recomputes only the boundary-cell rows from the saved
// partial, folds in the boundary term, and re-inverts them. For the neutral
// family the term uses b=1; otherwise the scalar BC slope coefficients.
func (ctx *Context) applyLsqBoundary(e *cacheEntry, fam Family, bcB []float64) {
	for i, cell := range e.bCells {
		s := e.cocgb[i]
		for _, f := range e.bFacesOf[i] {
			dsij := ctx.lsqBoundaryDir(f, fam, bcB)
			s[0] += dsij[0] * dsij[0]
			s[1] += dsij[1] * dsij[1]
			s[2] += dsij[2] * dsij[2]
			s[3] += dsij[0] * dsij[1]
			s[4] += dsij[1] * dsij[2]
			s[5] += dsij[0] * dsij[2]
		}
		if !utils.SymInvert(&s) {
			s = utils.Sym3{1, 1, 1, 0, 0, 0}
			e.degenerate++
		}
		e.cocg[cell] = s
	}
}

// lsqBoundaryDir is the direction vector a boundary face adds to the LSQ
// system: the unit outward normal plus, when the BC slope b differs from 1,
// the tangential offset correction (1-b)/b_dist * diipb.
func (ctx *Context) lsqBoundaryDir(f int, fam Family, bcB []float64) (dsij utils.Vec3) {
	var (
		m     = ctx.M
		udbfs = 1. / m.BFaceSurf[f]
	)
	dsij = utils.Scale3(udbfs, m.BFaceNormal[f])
	if fam == FamilyLSQNeutral || bcB == nil {
		return
	}
	umcbdd := (1. - bcB[f]) / m.BDist[f]
	for d := 0; d < 3; d++ {
		dsij[d] += umcbdd * m.DiipB[f][d]
	}
	return
}

func (ctx *Context) warnDegenerate(what string, e *cacheEntry) {
	if e.degenerate > 0 && !e.warned {
		// degenerate stencils self-heal via the identity fallback; surface
		// them once per build so mesh quality problems are visible
		fmt.Printf("gradient: %d cells with near-singular %s coefficient matrix, identity fallback used\n",
			e.degenerate, what)
		e.warned = true
	}
}
