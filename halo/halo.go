// Package halo provides ghost-cell synchronization and global reductions
// for meshes distributed over in-process ranks. Each rank runs in its own
// goroutine (one per mesh partition) and meets its peers through buffered
// channels, the same parallel model the rest of the code uses for face
// loops. Rotational periodicity is applied on arrival: vectors and tensors
// are rotated into the ghost cell's frame, scalars are copied.
package halo

import (
	"github.com/notargets/fvgrad/mesh"
	"github.com/notargets/fvgrad/utils"
)

// Syncer is the contract the gradient kernels hold: fill ghost entries of
// the given array from their owning ranks, and reduce diagnostics across
// ranks. All methods block until every rank has completed the collective.
type Syncer interface {
	Rank() int
	Size() int
	// SyncScalar fills ghost entries of a per-cell scalar array.
	SyncScalar(vals []float64)
	// SyncVector fills ghosts of a 3-vector array, rotating under
	// rotational periodicity. Used for vector fields and scalar gradients.
	SyncVector(vals [][3]float64)
	// SyncMat3 fills ghosts of a 3x3 array with the similarity transform
	// R*G*R^T. Used for vector gradients.
	SyncMat3(vals [][3][3]float64)
	// SyncSym fills ghosts of a symmetric-tensor array.
	SyncSym(vals [][6]float64)
	// SyncSymGrad fills ghosts of a 6x3 symmetric-tensor gradient array
	// with the full rank-3 rotation.
	SyncSymGrad(vals [][6][3]float64)
	// Reductions; deterministic rank-ordered accumulation.
	ReduceSum(v float64) float64
	ReduceMin(v float64) float64
	ReduceMax(v float64) float64
	ReduceSumInt(v int) int
}

// rotateGhosts applies the periodic transform of each ghost slot, given a
// per-slot callback.
func rotateGhosts(h *mesh.Halo, apply func(ghost int, t mesh.Transform)) {
	if h == nil {
		return
	}
	for g, ti := range h.GhostTransform {
		if ti < 0 {
			continue
		}
		t := h.Transforms[ti]
		if t.Identity {
			continue
		}
		apply(g, t)
	}
}

func rotVec(t mesh.Transform, v [3]float64) [3]float64 {
	return utils.RotateVec3(t.Rot, v)
}

func rotMat(t mesh.Transform, m [3][3]float64) [3][3]float64 {
	return utils.RotateMat3(t.Rot, m)
}

func rotSym(t mesh.Transform, s [6]float64) [6]float64 {
	return utils.MatToSym(utils.RotateMat3(t.Rot, utils.SymToMat(s)))
}

// rotSymGrad rotates the gradient of a symmetric tensor:
// out[(ab),c] = R_ai R_bj R_ck in[(ij),k].
func rotSymGrad(t mesh.Transform, g [6][3]float64) (out [6][3]float64) {
	var (
		r = t.Rot
		// expand to full [3][3][3]
		full [3][3][3]float64
	)
	symIdx := [3][3]int{{0, 3, 5}, {3, 1, 4}, {5, 4, 2}}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				full[i][j][k] = g[symIdx[i][j]][k]
			}
		}
	}
	var rot [3][3][3]float64
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			for c := 0; c < 3; c++ {
				var s float64
				for i := 0; i < 3; i++ {
					for j := 0; j < 3; j++ {
						for k := 0; k < 3; k++ {
							s += r[a][i] * r[b][j] * r[c][k] * full[i][j][k]
						}
					}
				}
				rot[a][b][c] = s
			}
		}
	}
	pairs := [6][2]int{{0, 0}, {1, 1}, {2, 2}, {0, 1}, {1, 2}, {0, 2}}
	for n, p := range pairs {
		for c := 0; c < 3; c++ {
			out[n][c] = rot[p[0]][p[1]][c]
		}
	}
	return
}
