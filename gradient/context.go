package gradient

import (
	"runtime"

	"github.com/notargets/fvgrad/halo"
	"github.com/notargets/fvgrad/mesh"
	"github.com/notargets/fvgrad/utils"
)

// Context owns everything shared between gradient calls on one rank: the
// borrowed mesh, the sync layer, the geometric coefficient cache and the
// performance registry. It is not safe for concurrent calls; the face loops
// inside a call fork their own workers.
type Context struct {
	M    *mesh.Mesh
	Sync halo.Syncer
	C    *Cache
	Perf *Registry

	ParallelDegree int
	Assembly       Assembly
}

// NewContext builds a serial-rank context with the default grouped assembly
// strategy.
func NewContext(m *mesh.Mesh) (ctx *Context) {
	return NewRankContext(m, halo.NewSerial(m))
}

// NewRankContext builds a context bound to one rank of a distributed run.
// Grouped assembly needs the face coloring, built here when the mesh does
// not carry one yet (topology-only, so it survives geometry updates).
func NewRankContext(m *mesh.Mesh, sync halo.Syncer) (ctx *Context) {
	if m.FaceGroups == nil {
		m.BuildFaceGroups()
	}
	ctx = &Context{
		M:              m,
		Sync:           sync,
		C:              NewCache(),
		Perf:           NewRegistry(),
		ParallelDegree: runtime.NumCPU(),
		Assembly:       AssemblyGrouped,
	}
	return
}

// InvalidateGeometry is the mesh-update contract: the geometry owner calls
// it (after Mesh.BumpGeneration) so cached coefficient matrices are rebuilt
// on next use.
func (ctx *Context) InvalidateGeometry() {
	ctx.C.Invalidate()
}

func (ctx *Context) threads(n int) int {
	nt := ctx.ParallelDegree
	if nt < 1 {
		nt = 1
	}
	if nt > n {
		nt = n
	}
	if nt == 0 {
		nt = 1
	}
	return nt
}

// addFunc accumulates v into the target slot. Under grouped assembly it is a
// plain add; under atomic assembly it is a CAS add.
type addFunc func(target *float64, v float64)

func directAdd(target *float64, v float64) { *target += v }

// iFaceScatter runs face over every interior face under the configured
// assembly strategy. All writes into shared per-cell arrays must go through
// add.
func (ctx *Context) iFaceScatter(face func(f int, add addFunc)) {
	var (
		m   = ctx.M
		nif = len(m.IFaceCells)
	)
	if nif == 0 {
		return
	}
	if ctx.Assembly == AssemblyAtomic {
		pm := utils.NewPartitionMap(ctx.threads(nif), nif)
		utils.RunParallel(pm, func(np, f0, f1 int) {
			for f := f0; f < f1; f++ {
				face(f, utils.AtomicAddFloat64)
			}
		})
		return
	}
	for _, group := range m.FaceGroups {
		pm := utils.NewPartitionMap(ctx.threads(len(group)), len(group))
		utils.RunParallel(pm, func(np, i0, i1 int) {
			for i := i0; i < i1; i++ {
				face(group[i], directAdd)
			}
		})
	}
}

// bFaceScatter is the boundary-face analogue of iFaceScatter.
func (ctx *Context) bFaceScatter(face func(f int, add addFunc)) {
	var (
		m   = ctx.M
		nbf = len(m.BFaceCell)
	)
	if nbf == 0 {
		return
	}
	if ctx.Assembly == AssemblyAtomic {
		pm := utils.NewPartitionMap(ctx.threads(nbf), nbf)
		utils.RunParallel(pm, func(np, f0, f1 int) {
			for f := f0; f < f1; f++ {
				face(f, utils.AtomicAddFloat64)
			}
		})
		return
	}
	for _, group := range m.BFaceGroups {
		pm := utils.NewPartitionMap(ctx.threads(len(group)), len(group))
		utils.RunParallel(pm, func(np, i0, i1 int) {
			for i := i0; i < i1; i++ {
				face(group[i], directAdd)
			}
		})
	}
}

// cellLoop runs work in parallel over the owned cells.
func (ctx *Context) cellLoop(work func(c int)) {
	var (
		n  = ctx.M.NCells
		pm = utils.NewPartitionMap(ctx.threads(n), n)
	)
	utils.RunParallel(pm, func(np, c0, c1 int) {
		for c := c0; c < c1; c++ {
			work(c)
		}
	})
}
