package gradient

import "github.com/notargets/fvgrad/utils"

// InternalCoupling lets a collaborator (another mesh region, or an external
// code) stand in for the far side of selected boundary faces, contributing
// to the gradient system as if those faces were interior. It is a
// capability interface: anything that can report a far-side direction and
// value difference per coupled face can be plugged in. The coupling id
// keys the geometric coefficient cache, so two couplings with different
// face sets never share matrices.
type InternalCoupling interface {
	CouplingID() int
	IsCoupledFace(bFace int) bool
	// CouplingDistance is the vector from the local cell center to the
	// coupled far-side point.
	CouplingDistance(bFace int) (dc utils.Vec3, ok bool)
	// CouplingDelta is the far-side value minus the given local value for
	// the scalar field currently being differentiated.
	CouplingDelta(bFace int, local float64) (dv float64, ok bool)
}
