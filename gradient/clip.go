package gradient

import (
	"fmt"
	"math"

	"github.com/notargets/fvgrad/utils"
)

// clipGradient limits reconstructed gradients so that the predicted
// variation across any neighbor pair stays within ClipCoeff times the
// observed value jump. delta and proj abstract the component layout so
// scalar, vector and tensor fields share one pass. Cell mode limits each
// cell from its own projections; face mode uses midpoint projections and a
// second min-over-neighbors sweep, which needs an extra halo exchange of
// the factors. The reductions at the end are collective, so every rank
// runs the full pass even when nothing gets clipped.
func (ctx *Context) clipGradient(name string, opt *Options,
	delta func(i, j int) float64,
	proj func(c int, dc utils.Vec3) float64,
	projMid func(i, j int, dc utils.Vec3) float64,
	scale func(c int, fac float64)) {
	if opt.ClipMode == ClipNone {
		return
	}
	var (
		m     = ctx.M
		denum = make([]float64, m.NCellsExt)
		denom = make([]float64, m.NCellsExt)
	)
	for f := range m.IFaceCells {
		var (
			fc = m.IFaceCells[f]
			dc = utils.Sub3(m.CellCen[fc[1]], m.CellCen[fc[0]])
			dv = delta(fc[0], fc[1])
		)
		var pi, pj float64
		if opt.ClipMode == ClipFace {
			pi = projMid(fc[0], fc[1], dc)
			pj = pi
		} else {
			pi = proj(fc[0], dc)
			pj = proj(fc[1], dc)
		}
		if pi > denum[fc[0]] {
			denum[fc[0]] = pi
		}
		if pj > denum[fc[1]] {
			denum[fc[1]] = pj
		}
		if dv > denom[fc[0]] {
			denom[fc[0]] = dv
		}
		if dv > denom[fc[1]] {
			denom[fc[1]] = dv
		}
	}
	if opt.Method == LSQExt && m.CellCellIdx != nil {
		for c := 0; c < m.NCells; c++ {
			for n := m.CellCellIdx[c]; n < m.CellCellIdx[c+1]; n++ {
				nb := m.CellCellLst[n]
				dc := utils.Sub3(m.CellCen[nb], m.CellCen[c])
				dv := delta(c, nb)
				p := proj(c, dc)
				if p > denum[c] {
					denum[c] = p
				}
				if dv > denom[c] {
					denom[c] = dv
				}
			}
		}
	}
	factor := make([]float64, m.NCellsExt)
	for c := range factor {
		factor[c] = 1.
	}
	for c := 0; c < m.NCells; c++ {
		if denum[c] > opt.ClipCoeff*denom[c] && denum[c] > 0 {
			factor[c] = opt.ClipCoeff * denom[c] / denum[c]
		}
	}
	if opt.ClipMode == ClipFace {
		ctx.Sync.SyncScalar(factor)
		final := make([]float64, m.NCells)
		copy(final, factor[:m.NCells])
		for f := range m.IFaceCells {
			fc := m.IFaceCells[f]
			f2 := math.Min(factor[fc[0]], factor[fc[1]])
			if fc[0] < m.NCells && f2 < final[fc[0]] {
				final[fc[0]] = f2
			}
			if fc[1] < m.NCells && f2 < final[fc[1]] {
				final[fc[1]] = f2
			}
		}
		copy(factor[:m.NCells], final)
	}
	var (
		nClip = 0
		minF  = 1.
	)
	for c := 0; c < m.NCells; c++ {
		if factor[c] < 1. {
			nClip++
			scale(c, factor[c])
			if factor[c] < minF {
				minF = factor[c]
			}
		}
	}
	total := ctx.Sync.ReduceSumInt(nClip)
	gMin := ctx.Sync.ReduceMin(minF)
	if opt.Verbosity > 0 && total > 0 && ctx.Sync.Rank() == 0 {
		fmt.Printf("gradient clipping [%s]: %d cells limited, min factor %.3e\n",
			name, total, gMin)
	}
}

func (ctx *Context) clipScalar(name string, opt *Options, v []float64,
	grad [][3]float64) {
	if opt.ClipMode == ClipFace {
		// midpoint projections read neighbor gradients across ranks
		ctx.Sync.SyncVector(grad)
	}
	ctx.clipGradient(name, opt,
		func(i, j int) float64 { return math.Abs(v[j] - v[i]) },
		func(c int, dc utils.Vec3) float64 {
			return math.Abs(utils.Dot3(grad[c], dc))
		},
		func(i, j int, dc utils.Vec3) float64 {
			var s float64
			for d := 0; d < 3; d++ {
				s += 0.5 * (grad[i][d] + grad[j][d]) * dc[d]
			}
			return math.Abs(s)
		},
		func(c int, fac float64) {
			for d := 0; d < 3; d++ {
				grad[c][d] *= fac
			}
		})
}

func (ctx *Context) clipVector(name string, opt *Options, v [][3]float64,
	grad [][3][3]float64) {
	if opt.ClipMode == ClipFace {
		ctx.Sync.SyncMat3(grad)
	}
	ctx.clipGradient(name, opt,
		func(i, j int) float64 { return utils.Norm3(utils.Sub3(v[j], v[i])) },
		func(c int, dc utils.Vec3) float64 {
			var s float64
			for i := 0; i < 3; i++ {
				p := utils.Dot3(grad[c][i], dc)
				s += p * p
			}
			return math.Sqrt(s)
		},
		func(i, j int, dc utils.Vec3) float64 {
			var s float64
			for k := 0; k < 3; k++ {
				var p float64
				for d := 0; d < 3; d++ {
					p += 0.5 * (grad[i][k][d] + grad[j][k][d]) * dc[d]
				}
				s += p * p
			}
			return math.Sqrt(s)
		},
		func(c int, fac float64) {
			for i := 0; i < 3; i++ {
				for d := 0; d < 3; d++ {
					grad[c][i][d] *= fac
				}
			}
		})
}

func (ctx *Context) clipTensor(name string, opt *Options, v [][6]float64,
	grad [][6][3]float64) {
	if opt.ClipMode == ClipFace {
		ctx.Sync.SyncSymGrad(grad)
	}
	ctx.clipGradient(name, opt,
		func(i, j int) float64 {
			var s float64
			for k := 0; k < 6; k++ {
				d := v[j][k] - v[i][k]
				s += d * d
			}
			return math.Sqrt(s)
		},
		func(c int, dc utils.Vec3) float64 {
			var s float64
			for k := 0; k < 6; k++ {
				p := utils.Dot3(grad[c][k], dc)
				s += p * p
			}
			return math.Sqrt(s)
		},
		func(i, j int, dc utils.Vec3) float64 {
			var s float64
			for k := 0; k < 6; k++ {
				var p float64
				for d := 0; d < 3; d++ {
					p += 0.5 * (grad[i][k][d] + grad[j][k][d]) * dc[d]
				}
				s += p * p
			}
			return math.Sqrt(s)
		},
		func(c int, fac float64) {
			for k := 0; k < 6; k++ {
				for d := 0; d < 3; d++ {
					grad[c][k][d] *= fac
				}
			}
		})
}
