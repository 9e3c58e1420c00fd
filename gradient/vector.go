package gradient

import (
	"fmt"
	"time"
)

// GradientVector computes the cell-centered gradient tensor of a vector
// field into grad, row i holding the gradient of component i. Ghost values
// of v (and isotropic cWeight) are synchronized first; rotational halo
// transforms are applied to both the input vectors and the output tensors.
func (ctx *Context) GradientVector(name string, opt *Options, bc BCVector,
	v [][3]float64, cWeight []float64, grad [][3][3]float64) error {
	ctx.Sync.SyncVector(v)
	if cWeight != nil {
		ctx.Sync.SyncScalar(cWeight)
	}
	return ctx.GradientVectorSynced(name, opt, bc, v, cWeight, grad)
}

func (ctx *Context) GradientVectorSynced(name string, opt *Options, bc BCVector,
	v [][3]float64, cWeight []float64, grad [][3][3]float64) error {
	if err := opt.validate("vector"); err != nil {
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
		ctx.initVectorGradient(opt, bc, v, cWeight, grad)
		if opt.NSweeps > 1 {
			sweeps = ctx.iterativeVectorGradient(name, opt, bc, v, cWeight, grad)
		}
		ctx.clipVector(name, opt, v, grad)
	case LSQ, LSQExt:
		ctx.lsqVectorGradient(name, opt, bc, v, cWeight, grad)
		ctx.clipVector(name, opt, v, grad)
	case GreenLSQ:
		ctx.greenLsqVector(name, opt, bc, v, cWeight, grad)
	}
	ctx.Sync.SyncMat3(grad)
	ctx.Perf.record(name, opt.Method, sweeps, time.Since(start))
	if opt.Verbosity > 1 {
		norm := ctx.gradNorm33(grad)
		if ctx.Sync.Rank() == 0 {
			fmt.Printf("gradient [%s]: %s, %d sweeps, norm %.6e\n",
				name, opt.Method.Print(), sweeps, norm)
		}
	}
	return nil
}
