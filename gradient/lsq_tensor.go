package gradient

import (
	"github.com/notargets/fvgrad/utils"
)

// lsqTensorGradient runs the six per-component least-squares solves for a
// symmetric tensor field, then replaces boundary-cell results with the
// coupled 18x18 normal-equation solve. Structure mirrors the vector case
// with the component count doubled.
func (ctx *Context) lsqTensorGradient(name string, opt *Options, bc BCTensor,
	v [][6]float64, grad [][6][3]float64) {
	var (
		m        = ctx.M
		inc      = float64(opt.Inc)
		extended = opt.Method == LSQExt
		e        = ctx.lsqCocg(FamilyLSQNeutral, extended, name, opt.Inc, nil, nil)
		rhs      = make([][6][3]float64, m.NCellsExt)
	)
	ctx.iFaceScatter(func(f int, add addFunc) {
		var (
			fc = m.IFaceCells[f]
			dc = utils.Sub3(m.CellCen[fc[1]], m.CellCen[fc[0]])
		)
		ddc := 1. / utils.Dot3(dc, dc)
		for i := 0; i < 6; i++ {
			pfac := (v[fc[1]][i] - v[fc[0]][i]) * ddc
			for d := 0; d < 3; d++ {
				add(&rhs[fc[0]][i][d], pfac*dc[d])
				add(&rhs[fc[1]][i][d], pfac*dc[d])
			}
		}
	})
	if extended {
		ctx.cellLoop(func(c int) {
			for n := m.CellCellIdx[c]; n < m.CellCellIdx[c+1]; n++ {
				nb := m.CellCellLst[n]
				dc := utils.Sub3(m.CellCen[nb], m.CellCen[c])
				ddc := 1. / utils.Dot3(dc, dc)
				for i := 0; i < 6; i++ {
					pfac := (v[nb][i] - v[c][i]) * ddc
					for d := 0; d < 3; d++ {
						rhs[c][i][d] += pfac * dc[d]
					}
				}
			}
		})
	}
	rhsInt := make([][6][3]float64, len(e.bCells))
	for i, cell := range e.bCells {
		rhsInt[i] = rhs[cell]
	}
	ctx.bFaceScatter(func(f int, add addFunc) {
		var (
			cell = m.BFaceCell[f]
			nhat = utils.Scale3(1./m.BFaceSurf[f], m.BFaceNormal[f])
			a, b = bc.ab(f)
		)
		for i := 0; i < 6; i++ {
			pfac := inc * a[i]
			for k := 0; k < 6; k++ {
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
			grad[c] = [6][3]float64{}
			return
		}
		for i := 0; i < 6; i++ {
			grad[c][i] = utils.SymVec3(e.cocg[c], rhs[c][i])
		}
	})
	ctx.lsqTensorBoundary(e, bc, inc, v, rhsInt, grad)
}

func (ctx *Context) lsqTensorBoundary(e *cacheEntry, bc BCTensor, inc float64,
	v [][6]float64, rhsInt [][6][3]float64, grad [][6][3]float64) {
	var (
		m  = ctx.M
		pm = utils.NewPartitionMap(ctx.threads(len(e.bCells)), len(e.bCells))
	)
	utils.RunParallel(pm, func(np, bMin, bMax int) {
		var (
			sys [171]float64 // packed lower 18x18
			rh  [18]float64
			sol [18]float64
		)
		for bi := bMin; bi < bMax; bi++ {
			cell := e.bCells[bi]
			if m.Disabled[cell] {
				continue
			}
			for n := range sys {
				sys[n] = 0
			}
			for i := 0; i < 6; i++ {
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
					rv   [6]float64
					rows [6][18]float64
				)
				for i := 0; i < 6; i++ {
					rv[i] = inc * a[i]
					for k := 0; k < 6; k++ {
						kd := 0.
						if i == k {
							kd = 1.
						}
						rv[i] += (b[i][k] - kd) * v[cell][k]
						for d := 0; d < 3; d++ {
							c := (kd - b[i][k]) * db * m.DiipB[f][d]
							if i == k {
								c += nhat[d]
							}
							rows[i][3*k+d] = c
						}
					}
					rv[i] *= db
				}
				for i := 0; i < 6; i++ {
					for u := 0; u < 18; u++ {
						rh[u] += rv[i] * rows[i][u]
						for w := 0; w <= u; w++ {
							sys[u*(u+1)/2+w] += rows[i][u] * rows[i][w]
						}
					}
				}
			}
			ld := sys[:]
			// a degenerate system keeps the uncoupled per-component solution
			if utils.CroutFactor(ld, 18) {
				utils.CroutSolve(ld, rh[:], sol[:], 18)
				for i := 0; i < 6; i++ {
					for d := 0; d < 3; d++ {
						grad[cell][i][d] = sol[3*i+d]
					}
				}
			}
		}
	})
}
