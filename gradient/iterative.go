package gradient

import (
	"fmt"
	"math"

	"github.com/notargets/fvgrad/utils"
)

// iterativeScalarGradient refines the seed gradient with face-midpoint
// corrected Green-Gauss sweeps until the volume-weighted L2 norm of the
// incremental right-hand side drops below epsilon times the seed norm, or
// the sweep budget runs out. Non-convergence is a warning, never an error:
// the best available gradient is kept.
func (ctx *Context) iterativeScalarGradient(name string, opt *Options, bc BCScalar,
	v, cWeight []float64, grad [][3]float64) (sweeps int) {
	var (
		m    = ctx.M
		inc  = float64(opt.Inc)
		cocg = ctx.iterCocg()
		rhs  = make([][3]float64, m.NCellsExt)
	)
	rnorm := ctx.gradNorm3(grad)
	if rnorm <= 0 {
		return 0
	}
	var residual float64
	for sweeps = 1; sweeps < opt.NSweeps; sweeps++ {
		ctx.Sync.SyncVector(grad)
		for c := range rhs {
			rhs[c] = utils.Vec3{}
		}
		ctx.iFaceScatter(func(f int, add addFunc) {
			var (
				fc    = m.IFaceCells[f]
				n     = m.IFaceNormal[f]
				dofij = m.Dofij[f]
				kt    = ctx.faceWeight(f, opt.WStride, cWeight)
			)
			pfac := kt*v[fc[0]] + (1.-kt)*v[fc[1]]
			for d := 0; d < 3; d++ {
				pfac += 0.5 * dofij[d] * (grad[fc[0]][d] + grad[fc[1]][d])
			}
			for d := 0; d < 3; d++ {
				add(&rhs[fc[0]][d], pfac*n[d])
				add(&rhs[fc[1]][d], -pfac*n[d])
			}
		})
		ctx.bFaceScatter(func(f int, add addFunc) {
			var (
				cell = m.BFaceCell[f]
				n    = m.BFaceNormal[f]
				pfac float64
			)
			if opt.Coupling != nil && opt.Coupling.IsCoupledFace(f) {
				dv, ok := opt.Coupling.CouplingDelta(f, v[cell])
				if !ok {
					dv = 0
				}
				pfac = v[cell] + 0.5*dv
			} else {
				a, b := bc.ab(f)
				pfac = inc*a + b*(v[cell]+utils.Dot3(grad[cell], m.DiipB[f]))
			}
			for d := 0; d < 3; d++ {
				add(&rhs[cell][d], pfac*n[d])
			}
		})
		var local float64
		ctx.cellLoop(func(c int) {
			if m.Disabled[c] {
				rhs[c] = utils.Vec3{}
				return
			}
			dvol := 1. / m.CellVol[c]
			for d := 0; d < 3; d++ {
				rhs[c][d] = rhs[c][d]*dvol - grad[c][d]
			}
			dg := utils.MatVec3(cocg[c], rhs[c])
			for d := 0; d < 3; d++ {
				grad[c][d] += dg[d]
			}
		})
		for c := 0; c < m.NCells; c++ {
			local += m.CellVol[c] * utils.Dot3(rhs[c], rhs[c])
		}
		residual = math.Sqrt(ctx.Sync.ReduceSum(local))
		if residual <= opt.Epsilon*rnorm {
			return
		}
	}
	if opt.NSweeps > 1 {
		ctx.warnNotConverged(name, sweeps, residual, rnorm)
	}
	return
}

func (ctx *Context) iterativeVectorGradient(name string, opt *Options, bc BCVector,
	v [][3]float64, cWeight []float64, grad [][3][3]float64) (sweeps int) {
	var (
		m    = ctx.M
		inc  = float64(opt.Inc)
		cocg = ctx.iterCocg()
		rhs  = make([][3][3]float64, m.NCellsExt)
	)
	rnorm := ctx.gradNorm33(grad)
	if rnorm <= 0 {
		return 0
	}
	var residual float64
	for sweeps = 1; sweeps < opt.NSweeps; sweeps++ {
		ctx.Sync.SyncMat3(grad)
		for c := range rhs {
			rhs[c] = [3][3]float64{}
		}
		ctx.iFaceScatter(func(f int, add addFunc) {
			var (
				fc    = m.IFaceCells[f]
				n     = m.IFaceNormal[f]
				dofij = m.Dofij[f]
				kt    = ctx.faceWeight(f, opt.WStride, cWeight)
			)
			for k := 0; k < 3; k++ {
				pfac := kt*v[fc[0]][k] + (1.-kt)*v[fc[1]][k]
				for d := 0; d < 3; d++ {
					pfac += 0.5 * dofij[d] * (grad[fc[0]][k][d] + grad[fc[1]][k][d])
				}
				for d := 0; d < 3; d++ {
					add(&rhs[fc[0]][k][d], pfac*n[d])
					add(&rhs[fc[1]][k][d], -pfac*n[d])
				}
			}
		})
		ctx.bFaceScatter(func(f int, add addFunc) {
			var (
				cell  = m.BFaceCell[f]
				n     = m.BFaceNormal[f]
				diipb = m.DiipB[f]
				a, b  = bc.ab(f)
			)
			for k := 0; k < 3; k++ {
				pfac := inc * a[k]
				for l := 0; l < 3; l++ {
					pfac += b[k][l] * (v[cell][l] + utils.Dot3(grad[cell][l], diipb))
				}
				for d := 0; d < 3; d++ {
					add(&rhs[cell][k][d], pfac*n[d])
				}
			}
		})
		var local float64
		ctx.cellLoop(func(c int) {
			if m.Disabled[c] {
				rhs[c] = [3][3]float64{}
				return
			}
			dvol := 1. / m.CellVol[c]
			for k := 0; k < 3; k++ {
				for d := 0; d < 3; d++ {
					rhs[c][k][d] = rhs[c][k][d]*dvol - grad[c][k][d]
				}
				dg := utils.MatVec3(cocg[c], rhs[c][k])
				for d := 0; d < 3; d++ {
					grad[c][k][d] += dg[d]
				}
			}
		})
		for c := 0; c < m.NCells; c++ {
			for k := 0; k < 3; k++ {
				local += m.CellVol[c] * utils.Dot3(rhs[c][k], rhs[c][k])
			}
		}
		residual = math.Sqrt(ctx.Sync.ReduceSum(local))
		if residual <= opt.Epsilon*rnorm {
			return
		}
	}
	if opt.NSweeps > 1 {
		ctx.warnNotConverged(name, sweeps, residual, rnorm)
	}
	return
}

func (ctx *Context) iterativeTensorGradient(name string, opt *Options, bc BCTensor,
	v [][6]float64, grad [][6][3]float64) (sweeps int) {
	var (
		m    = ctx.M
		inc  = float64(opt.Inc)
		cocg = ctx.iterCocg()
		rhs  = make([][6][3]float64, m.NCellsExt)
	)
	rnorm := ctx.gradNorm63(grad)
	if rnorm <= 0 {
		return 0
	}
	var residual float64
	for sweeps = 1; sweeps < opt.NSweeps; sweeps++ {
		ctx.Sync.SyncSymGrad(grad)
		for c := range rhs {
			rhs[c] = [6][3]float64{}
		}
		ctx.iFaceScatter(func(f int, add addFunc) {
			var (
				fc    = m.IFaceCells[f]
				n     = m.IFaceNormal[f]
				dofij = m.Dofij[f]
				w     = m.Weight[f]
			)
			for k := 0; k < 6; k++ {
				pfac := w*v[fc[0]][k] + (1.-w)*v[fc[1]][k]
				for d := 0; d < 3; d++ {
					pfac += 0.5 * dofij[d] * (grad[fc[0]][k][d] + grad[fc[1]][k][d])
				}
				for d := 0; d < 3; d++ {
					add(&rhs[fc[0]][k][d], pfac*n[d])
					add(&rhs[fc[1]][k][d], -pfac*n[d])
				}
			}
		})
		ctx.bFaceScatter(func(f int, add addFunc) {
			var (
				cell  = m.BFaceCell[f]
				n     = m.BFaceNormal[f]
				diipb = m.DiipB[f]
				a, b  = bc.ab(f)
			)
			for k := 0; k < 6; k++ {
				pfac := inc * a[k]
				for l := 0; l < 6; l++ {
					pfac += b[k][l] * (v[cell][l] + utils.Dot3(grad[cell][l], diipb))
				}
				for d := 0; d < 3; d++ {
					add(&rhs[cell][k][d], pfac*n[d])
				}
			}
		})
		var local float64
		ctx.cellLoop(func(c int) {
			if m.Disabled[c] {
				rhs[c] = [6][3]float64{}
				return
			}
			dvol := 1. / m.CellVol[c]
			for k := 0; k < 6; k++ {
				for d := 0; d < 3; d++ {
					rhs[c][k][d] = rhs[c][k][d]*dvol - grad[c][k][d]
				}
				dg := utils.MatVec3(cocg[c], rhs[c][k])
				for d := 0; d < 3; d++ {
					grad[c][k][d] += dg[d]
				}
			}
		})
		for c := 0; c < m.NCells; c++ {
			for k := 0; k < 6; k++ {
				local += m.CellVol[c] * utils.Dot3(rhs[c][k], rhs[c][k])
			}
		}
		residual = math.Sqrt(ctx.Sync.ReduceSum(local))
		if residual <= opt.Epsilon*rnorm {
			return
		}
	}
	if opt.NSweeps > 1 {
		ctx.warnNotConverged(name, sweeps, residual, rnorm)
	}
	return
}

func (ctx *Context) warnNotConverged(name string, sweeps int, residual, rnorm float64) {
	if ctx.Sync.Rank() != 0 {
		return
	}
	fmt.Printf("gradient: %s: reconstruction not converged after %d sweeps, residual ratio %.3e\n",
		name, sweeps, residual/rnorm)
}

func (ctx *Context) gradNorm3(grad [][3]float64) float64 {
	var (
		m     = ctx.M
		local float64
	)
	for c := 0; c < m.NCells; c++ {
		local += m.CellVol[c] * utils.Dot3(grad[c], grad[c])
	}
	return math.Sqrt(ctx.Sync.ReduceSum(local))
}

func (ctx *Context) gradNorm33(grad [][3][3]float64) float64 {
	var (
		m     = ctx.M
		local float64
	)
	for c := 0; c < m.NCells; c++ {
		for k := 0; k < 3; k++ {
			local += m.CellVol[c] * utils.Dot3(grad[c][k], grad[c][k])
		}
	}
	return math.Sqrt(ctx.Sync.ReduceSum(local))
}

func (ctx *Context) gradNorm63(grad [][6][3]float64) float64 {
	var (
		m     = ctx.M
		local float64
	)
	for c := 0; c < m.NCells; c++ {
		for k := 0; k < 6; k++ {
			local += m.CellVol[c] * utils.Dot3(grad[c][k], grad[c][k])
		}
	}
	return math.Sqrt(ctx.Sync.ReduceSum(local))
}
