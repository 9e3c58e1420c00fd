package gradient

import (
	"fmt"
	"time"
)

// GradientTensor computes the per-component gradients of a symmetric
// tensor field (packed order xx yy zz xy yz xz) into grad. Cell weighting
// does not apply to tensor fields; face weights come straight from the
// mesh.
func (ctx *Context) GradientTensor(name string, opt *Options, bc BCTensor,
	v [][6]float64, grad [][6][3]float64) error {
	ctx.Sync.SyncSym(v)
	return ctx.GradientTensorSynced(name, opt, bc, v, grad)
}

func (ctx *Context) GradientTensorSynced(name string, opt *Options, bc BCTensor,
	v [][6]float64, grad [][6][3]float64) error {
	if err := opt.validate("tensor"); err != nil {
		return err
	}
	if opt.Method == LSQExt && ctx.M.CellCellIdx == nil {
		ctx.M.BuildExtendedNeighborhood()
	}
	var (
		start  = time.Now()
		sweeps int
	)
	switch opt.Method {
	case GreenGaussIter:
		ctx.initTensorGradient(opt, bc, v, grad)
		if opt.NSweeps > 1 {
			sweeps = ctx.iterativeTensorGradient(name, opt, bc, v, grad)
		}
		ctx.clipTensor(name, opt, v, grad)
	case LSQ, LSQExt:
		ctx.lsqTensorGradient(name, opt, bc, v, grad)
		ctx.clipTensor(name, opt, v, grad)
	case GreenLSQ:
		ctx.greenLsqTensor(name, opt, bc, v, grad)
	}
	ctx.Sync.SyncSymGrad(grad)
	ctx.Perf.record(name, opt.Method, sweeps, time.Since(start))
	if opt.Verbosity > 1 {
		norm := ctx.gradNorm63(grad)
		if ctx.Sync.Rank() == 0 {
			fmt.Printf("gradient [%s]: %s, %d sweeps, norm %.6e\n",
				name, opt.Method.Print(), sweeps, norm)
		}
	}
	return nil
}
