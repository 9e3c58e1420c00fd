package gradient

import (
	"github.com/notargets/fvgrad/utils"
)

// lsqScalarGradient dispatches among the scalar least-squares variants:
// isotropic (optionally weighted), anisotropic tensor-weighted, and the
// hydrostatic-pressure variant. The standard variants run off the cached
// pre-inverted cocg; the anisotropic variant assembles a per-call system
// because its matrix depends on the weight field, not just geometry.
func (ctx *Context) lsqScalarGradient(name string, opt *Options, bc BCScalar,
	v, cWeight []float64, fExt [][3]float64, grad [][3]float64) {
	switch {
	case opt.WStride == 6:
		ctx.lsqScalarAni(opt, bc, v, cWeight, grad)
	case opt.HydPressure:
		ctx.lsqScalarHyd(name, opt, bc, v, cWeight, fExt, grad)
	default:
		ctx.lsqScalarStd(name, opt, bc, v, cWeight, grad)
	}
}

func (ctx *Context) lsqScalarStd(name string, opt *Options, bc BCScalar,
	v, cWeight []float64, grad [][3]float64) {
	var (
		m        = ctx.M
		inc      = float64(opt.Inc)
		extended = opt.Method == LSQExt
		e        = ctx.lsqCocg(FamilyLSQ, extended, name, opt.Inc, bc.B, opt.Coupling)
		rhs      = make([][3]float64, m.NCellsExt)
	)
	ctx.iFaceScatter(func(f int, add addFunc) {
		var (
			fc = m.IFaceCells[f]
			dc = utils.Sub3(m.CellCen[fc[1]], m.CellCen[fc[0]])
		)
		ddc := 1. / utils.Dot3(dc, dc)
		pfac := (v[fc[1]] - v[fc[0]]) * ddc
		fi, fj := 1., 1.
		if cWeight != nil {
			w := m.Weight[f]
			den := w*cWeight[fc[0]] + (1.-w)*cWeight[fc[1]]
			if den != 0 {
				fi = cWeight[fc[1]] / den
				fj = cWeight[fc[0]] / den
			}
		}
		for d := 0; d < 3; d++ {
			add(&rhs[fc[0]][d], fi*pfac*dc[d])
			add(&rhs[fc[1]][d], fj*pfac*dc[d])
		}
	})
	if extended {
		ctx.cellLoop(func(c int) {
			for i := m.CellCellIdx[c]; i < m.CellCellIdx[c+1]; i++ {
				nb := m.CellCellLst[i]
				dc := utils.Sub3(m.CellCen[nb], m.CellCen[c])
				ddc := 1. / utils.Dot3(dc, dc)
				pfac := (v[nb] - v[c]) * ddc
				for d := 0; d < 3; d++ {
					rhs[c][d] += pfac * dc[d]
				}
			}
		})
	}
	ctx.bFaceScatter(func(f int, add addFunc) {
		cell := m.BFaceCell[f]
		if opt.Coupling != nil && opt.Coupling.IsCoupledFace(f) {
			dc, ok := opt.Coupling.CouplingDistance(f)
			if !ok {
				return
			}
			dv, _ := opt.Coupling.CouplingDelta(f, v[cell])
			ddc := 1. / utils.Dot3(dc, dc)
			for d := 0; d < 3; d++ {
				add(&rhs[cell][d], dv*ddc*dc[d])
			}
			return
		}
		var (
			dsij = ctx.lsqBoundaryDir(f, FamilyLSQ, bc.B)
			a, b = bc.ab(f)
		)
		pfac := (inc*a + (b-1.)*v[cell]) / m.BDist[f]
		for d := 0; d < 3; d++ {
			add(&rhs[cell][d], pfac*dsij[d])
		}
	})
	ctx.cellLoop(func(c int) {
		if m.Disabled[c] {
			grad[c] = utils.Vec3{}
			return
		}
		grad[c] = utils.SymVec3(e.cocg[c], rhs[c])
	})
}

// lsqScalarHyd subtracts the exterior-force projection from every value
// difference before assembly, so a field in exact hydrostatic balance has a
// zero-residual system; the force is added back to the output directly.
func (ctx *Context) lsqScalarHyd(name string, opt *Options, bc BCScalar,
	v, cWeight []float64, fExt [][3]float64, grad [][3]float64) {
	var (
		m   = ctx.M
		inc = float64(opt.Inc)
		e   = ctx.lsqCocg(FamilyLSQ, opt.Method == LSQExt, name, opt.Inc, bc.B, opt.Coupling)
		rhs = make([][3]float64, m.NCellsExt)
	)
	ctx.iFaceScatter(func(f int, add addFunc) {
		var (
			fc = m.IFaceCells[f]
			dc = utils.Sub3(m.CellCen[fc[1]], m.CellCen[fc[0]])
		)
		ddc := 1. / utils.Dot3(dc, dc)
		var hyd float64
		for d := 0; d < 3; d++ {
			hyd += 0.5 * (fExt[fc[0]][d] + fExt[fc[1]][d]) * dc[d]
		}
		pfac := (v[fc[1]] - v[fc[0]] - hyd) * ddc
		fi, fj := 1., 1.
		if cWeight != nil {
			w := m.Weight[f]
			den := w*cWeight[fc[0]] + (1.-w)*cWeight[fc[1]]
			if den != 0 {
				fi = cWeight[fc[1]] / den
				fj = cWeight[fc[0]] / den
			}
		}
		for d := 0; d < 3; d++ {
			add(&rhs[fc[0]][d], fi*pfac*dc[d])
			add(&rhs[fc[1]][d], fj*pfac*dc[d])
		}
	})
	ctx.bFaceScatter(func(f int, add addFunc) {
		var (
			cell = m.BFaceCell[f]
			dsij = ctx.lsqBoundaryDir(f, FamilyLSQ, bc.B)
			a, b = bc.ab(f)
			df   = utils.Sub3(m.BFaceCog[f], m.CellCen[cell])
		)
		pfac := (inc*a + (b-1.)*(v[cell]+utils.Dot3(fExt[cell], df))) / m.BDist[f]
		for d := 0; d < 3; d++ {
			add(&rhs[cell][d], pfac*dsij[d])
		}
	})
	ctx.cellLoop(func(c int) {
		if m.Disabled[c] {
			grad[c] = utils.Vec3{}
			return
		}
		g := utils.SymVec3(e.cocg[c], rhs[c])
		for d := 0; d < 3; d++ {
			grad[c][d] = g[d] + fExt[c][d]
		}
	})
}

// lsqScalarAni assembles per-pair stretched distance vectors from the
// harmonic tensor combination K_i*K_f^-1 / K_j*K_f^-1 and solves the
// resulting (generally non-symmetric) normal equations with a per-call
// Cramer inversion. The matrix depends on the weight field, so nothing is
// cached.
func (ctx *Context) lsqScalarAni(opt *Options, bc BCScalar, v, cWeight []float64,
	grad [][3]float64) {
	var (
		m    = ctx.M
		inc  = float64(opt.Inc)
		rhs  = make([][3]float64, m.NCellsExt)
		cocg = make([]utils.Mat3, m.NCellsExt)
	)
	ctx.iFaceScatter(func(f int, add addFunc) {
		var (
			fc         = m.IFaceCells[f]
			w          = m.Weight[f]
			dc         = utils.Sub3(m.CellCen[fc[1]], m.CellCen[fc[0]])
			ki, kj, kf utils.Sym3
		)
		copy(ki[:], cWeight[6*fc[0]:6*fc[0]+6])
		copy(kj[:], cWeight[6*fc[1]:6*fc[1]+6])
		for n := 0; n < 6; n++ {
			kf[n] = w*ki[n] + (1.-w)*kj[n]
		}
		ddc := 1. / utils.Dot3(dc, dc)
		pfac := (v[fc[1]] - v[fc[0]]) * ddc
		t := dc
		if utils.SymInvert(&kf) {
			t = utils.SymVec3(kf, dc)
		}
		si := utils.SymVec3(kj, t) // stretched vector felt by cell i
		sj := utils.SymVec3(ki, t)
		for d := 0; d < 3; d++ {
			add(&rhs[fc[0]][d], pfac*si[d])
			add(&rhs[fc[1]][d], pfac*sj[d])
			for dd := 0; dd < 3; dd++ {
				add(&cocg[fc[0]][d][dd], si[d]*dc[dd]*ddc)
				add(&cocg[fc[1]][d][dd], sj[d]*dc[dd]*ddc)
			}
		}
	})
	ctx.bFaceScatter(func(f int, add addFunc) {
		var (
			cell = m.BFaceCell[f]
			dsij = ctx.lsqBoundaryDir(f, FamilyLSQ, bc.B)
			a, b = bc.ab(f)
		)
		pfac := (inc*a + (b-1.)*v[cell]) / m.BDist[f]
		for d := 0; d < 3; d++ {
			add(&rhs[cell][d], pfac*dsij[d])
			for dd := 0; dd < 3; dd++ {
				add(&cocg[cell][d][dd], dsij[d]*dsij[dd])
			}
		}
	})
	ctx.cellLoop(func(c int) {
		if m.Disabled[c] {
			grad[c] = utils.Vec3{}
			return
		}
		if !utils.MatInvert3(&cocg[c]) {
			cocg[c] = utils.Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
		}
		grad[c] = utils.MatVec3(cocg[c], rhs[c])
	})
}
