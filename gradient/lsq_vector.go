package gradient

import (
	"github.com/notargets/fvgrad/utils"
)

// symIdx maps a full 3x3 index pair onto the packed symmetric storage
// order [xx yy zz xy yz xz].
var symIdx = [3][3]int{{0, 3, 5}, {3, 1, 4}, {5, 4, 2}}

// lsqVectorGradient solves the three per-component least-squares systems
// off the geometry-neutral cached cocg, then revisits boundary cells with
// the fully coupled 9x9 normal equations so that slope-matrix BCs mixing
// components are honored exactly.
func (ctx *Context) lsqVectorGradient(name string, opt *Options, bc BCVector,
	v [][3]float64, cWeight []float64, grad [][3][3]float64) {
	var (
		m        = ctx.M
		inc      = float64(opt.Inc)
		extended = opt.Method == LSQExt
		e        = ctx.lsqCocg(FamilyLSQNeutral, extended, name, opt.Inc, nil, nil)
		rhs      = make([][3][3]float64, m.NCellsExt)
	)
	ctx.iFaceScatter(func(f int, add addFunc) {
		var (
			fc = m.IFaceCells[f]
			dc = utils.Sub3(m.CellCen[fc[1]], m.CellCen[fc[0]])
		)
		ddc := 1. / utils.Dot3(dc, dc)
		fi, fj := 1., 1.
		if cWeight != nil {
			w := m.Weight[f]
			den := w*cWeight[fc[0]] + (1.-w)*cWeight[fc[1]]
			if den != 0 {
				fi = cWeight[fc[1]] / den
				fj = cWeight[fc[0]] / den
			}
		}
		for i := 0; i < 3; i++ {
			pfac := (v[fc[1]][i] - v[fc[0]][i]) * ddc
			for d := 0; d < 3; d++ {
				add(&rhs[fc[0]][i][d], fi*pfac*dc[d])
				add(&rhs[fc[1]][i][d], fj*pfac*dc[d])
			}
		}
	})
	if extended {
		ctx.cellLoop(func(c int) {
			for n := m.CellCellIdx[c]; n < m.CellCellIdx[c+1]; n++ {
				nb := m.CellCellLst[n]
				dc := utils.Sub3(m.CellCen[nb], m.CellCen[c])
				ddc := 1. / utils.Dot3(dc, dc)
				for i := 0; i < 3; i++ {
					pfac := (v[nb][i] - v[c][i]) * ddc
					for d := 0; d < 3; d++ {
						rhs[c][i][d] += pfac * dc[d]
					}
				}
			}
		})
	}
	// snapshot the interior-only right-hand sides of boundary cells before
	// the neutral boundary scatter contaminates them; the coupled solve
	// below re-derives the boundary rows itself
	rhsInt := make([][3][3]float64, len(e.bCells))
	for i, cell := range e.bCells {
		rhsInt[i] = rhs[cell]
	}
	ctx.bFaceScatter(func(f int, add addFunc) {
		var (
			cell = m.BFaceCell[f]
			nhat = utils.Scale3(1./m.BFaceSurf[f], m.BFaceNormal[f])
			a, b = bc.ab(f)
		)
		for i := 0; i < 3; i++ {
			pfac := inc * a[i]
			for k := 0; k < 3; k++ {
				pfac += b[i][k] * v[cell][k]
			}
			pfac = (pfac - v[cell][i]) / m.BDist[f]
			for d := 0; d < 3; d++ {
				add(&rhs[cell][i][d], pfac*nhat[d])
			}
		}
	})
	ctx.cellLoop(func(c int) {
		if m.Disabled[c] {
			grad[c] = [3][3]float64{}
			return
		}
		for i := 0; i < 3; i++ {
			grad[c][i] = utils.SymVec3(e.cocg[c], rhs[c][i])
		}
	})
	ctx.lsqVectorBoundary(e, bc, inc, v, rhsInt, grad)
}

// lsqVectorBoundary assembles and solves, per boundary cell, the coupled
// normal equations over all nine gradient entries. Unknown ordering is
// row-major: entry (component i, direction d) sits at 3*i+d. Interior face
// information enters as the saved per-component partial matrix (block
// diagonal) and right-hand sides; each boundary face adds three rows
//
//	c_ik = delta_ik*nhat + (delta_ik - B_ik)*diipb/b_dist
//
// with targets R_i = (inc*a_i + sum_k (B_ik - delta_ik) v_k)/b_dist.
func (ctx *Context) lsqVectorBoundary(e *cacheEntry, bc BCVector, inc float64,
	v [][3]float64, rhsInt [][3][3]float64, grad [][3][3]float64) {
	var (
		m  = ctx.M
		pm = utils.NewPartitionMap(ctx.threads(len(e.bCells)), len(e.bCells))
	)
	utils.RunParallel(pm, func(np, bMin, bMax int) {
		var (
			sys [45]float64 // packed lower 9x9
			rh  [9]float64
			sol [9]float64
		)
		for bi := bMin; bi < bMax; bi++ {
			cell := e.bCells[bi]
			if m.Disabled[cell] {
				continue
			}
			for n := range sys {
				sys[n] = 0
			}
			for i := 0; i < 3; i++ {
				for d := 0; d < 3; d++ {
					u := 3*i + d
					rh[u] = rhsInt[bi][i][d]
					for dd := 0; dd <= d; dd++ {
						sys[u*(u+1)/2+3*i+dd] = e.cocgb[bi][symIdx[d][dd]]
					}
				}
			}
			for _, f := range e.bFacesOf[bi] {
				var (
					nhat = utils.Scale3(1./m.BFaceSurf[f], m.BFaceNormal[f])
					db   = 1. / m.BDist[f]
					a, b = bc.ab(f)
					rv   [3]float64
				)
				for i := 0; i < 3; i++ {
					rv[i] = inc * a[i]
					for k := 0; k < 3; k++ {
						kd := 0.
						if i == k {
							kd = 1.
						}
						rv[i] += (b[i][k] - kd) * v[cell][k]
					}
					rv[i] *= db
				}
				var rows [3][9]float64
				for i := 0; i < 3; i++ {
					for k := 0; k < 3; k++ {
						kd := 0.
						if i == k {
							kd = 1.
						}
						for d := 0; d < 3; d++ {
							c := (kd-b[i][k]) * db * m.DiipB[f][d]
							if i == k {
								c += nhat[d]
							}
							rows[i][3*k+d] = c
						}
					}
				}
				for i := 0; i < 3; i++ {
					for u := 0; u < 9; u++ {
						rh[u] += rv[i] * rows[i][u]
						for w := 0; w <= u; w++ {
							sys[u*(u+1)/2+w] += rows[i][u] * rows[i][w]
						}
					}
				}
			}
			ld := sys[:]
			// a degenerate system keeps the uncoupled per-component solution
			if utils.CroutFactor(ld, 9) {
				utils.CroutSolve(ld, rh[:], sol[:], 9)
				for i := 0; i < 3; i++ {
					for d := 0; d < 3; d++ {
						grad[cell][i][d] = sol[3*i+d]
					}
				}
			}
		}
	})
}
