package gradient

import (
	"fmt"
	"time"
)

// GradientScalar computes the cell-centered gradient of a scalar field into
// grad, synchronizing ghost values of the inputs first. cWeight is nil for
// unweighted reconstruction, length NCellsExt for isotropic weights, or
// 6*NCellsExt for anisotropic tensor weights (tensor weights must arrive
// ghost-complete; only stride-1 weights are exchanged here). fExt is the
// per-cell exterior force, required by the hydrostatic-pressure variant and
// ignored otherwise. grad must have length NCellsExt; ghost entries are
// synchronized on return.
func (ctx *Context) GradientScalar(name string, opt *Options, bc BCScalar,
	v, cWeight []float64, fExt [][3]float64, grad [][3]float64) error {
	ctx.Sync.SyncScalar(v)
	if cWeight != nil && opt.WStride <= 1 {
		ctx.Sync.SyncScalar(cWeight)
	}
	if fExt != nil {
		ctx.Sync.SyncVector(fExt)
	}
	return ctx.GradientScalarSynced(name, opt, bc, v, cWeight, fExt, grad)
}

// GradientScalarSynced is GradientScalar for inputs whose ghost values are
// already current, saving the input exchanges in tight solver loops.
func (ctx *Context) GradientScalarSynced(name string, opt *Options, bc BCScalar,
	v, cWeight []float64, fExt [][3]float64, grad [][3]float64) error {
	if err := opt.validate("scalar"); err != nil {
		return err
	}
	if opt.HydPressure && fExt == nil {
		return &ConfigError{What: "hydrostatic-pressure variant without an exterior force field"}
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
		ctx.initScalarGradient(opt, bc, v, cWeight, grad)
		if opt.NSweeps > 1 {
			sweeps = ctx.iterativeScalarGradient(name, opt, bc, v, cWeight, grad)
		}
		ctx.clipScalar(name, opt, v, grad)
	case LSQ, LSQExt:
		ctx.lsqScalarGradient(name, opt, bc, v, cWeight, fExt, grad)
		ctx.clipScalar(name, opt, v, grad)
	case GreenLSQ:
		// the least-squares seed is clipped before the balance pass
		ctx.greenLsqScalar(name, opt, bc, v, cWeight, fExt, grad)
	}
	ctx.Sync.SyncVector(grad)
	ctx.Perf.record(name, opt.Method, sweeps, time.Since(start))
	if opt.Verbosity > 1 {
		norm := ctx.gradNorm3(grad)
		if ctx.Sync.Rank() == 0 {
			fmt.Printf("gradient [%s]: %s, %d sweeps, norm %.6e\n",
				name, opt.Method.Print(), sweeps, norm)
		}
	}
	return nil
}
