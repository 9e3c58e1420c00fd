package cmd

import (
	"testing"

	"github.com/notargets/fvgrad/InputParameters"
	"github.com/notargets/fvgrad/gradient"
	"github.com/notargets/fvgrad/mesh"
	"github.com/stretchr/testify/assert"
)

func TestBenchInput(t *testing.T) {
	var (
		err error
	)
	fileInput := []byte(`
Title: Test Case
Method: lsq_ext
NSweeps: 50
Epsilon: 1.e-10
Nx: 8
Ny: 8
Nz: 8
Perturb: 0.05
BCs:
  XMin:
      A: 1.5
      B: 0.
  XMax:
      A: -1.5
      B: 0.
`)
	var input InputParameters.GradientParameters
	if err = input.Parse(fileInput); err != nil {
		panic(err)
	}
	assert.Equal(t, 1.5, input.BCs["XMin"]["A"])
	assert.Equal(t, -1.5, input.BCs["XMax"]["A"])
	assert.Equal(t, 50, input.NSweeps)
	// defaults fill the unset fields
	assert.Equal(t, "none", input.ClipMode)
	assert.Equal(t, 1, input.Iterations)
	input.Print()

	opt := optionsFromParams(&input)
	assert.Equal(t, gradient.LSQExt, opt.Method)
	assert.Equal(t, 1.e-10, opt.Epsilon)

	b := mesh.NewBoxMesh(input.Nx, input.Ny, input.Nz, 1., 1., 1.)
	bc := boundaryFromParams(b, &input)
	for f, p := range b.BFacePatch {
		switch p {
		case mesh.PatchXMin:
			assert.Equal(t, 1.5, bc.A[f])
			assert.Equal(t, 0., bc.B[f])
		case mesh.PatchYMin:
			// untouched patches keep homogeneous Neumann
			assert.Equal(t, 0., bc.A[f])
			assert.Equal(t, 1., bc.B[f])
		}
	}
}
