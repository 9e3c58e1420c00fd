package gradient

import (
	"fmt"
	"strings"
)

// Method selects the reconstruction algorithm.
type Method uint

const (
	GreenGaussIter Method = iota // iterative Green-Gauss with face-midpoint correction
	LSQ                          // one-shot least-squares on the face-neighbor stencil
	LSQExt                       // least-squares including the second-ring neighborhood
	GreenLSQ                     // Green-Gauss pass using an LSQ gradient for the correction
)

var (
	MethodNames = map[string]Method{
		"iter":    GreenGaussIter,
		"lsq":     LSQ,
		"lsq_ext": LSQExt,
		"gg_lsq":  GreenLSQ,
	}
	MethodPrintNames = []string{
		"Iterative Green-Gauss", "Least-Squares", "Least-Squares (extended)",
		"Green-Gauss with LSQ reconstruction",
	}
)

func (mt Method) Print() (txt string) {
	txt = MethodPrintNames[mt]
	return
}

func NewMethod(label string) (mt Method) {
	var (
		ok bool
	)
	label = strings.ToLower(label)
	if mt, ok = MethodNames[label]; !ok {
		panic(fmt.Errorf("unable to use gradient method named %s", label))
	}
	return
}

// ClipMode bounds the reconstructed gradient after the solve.
type ClipMode uint

const (
	ClipNone ClipMode = iota
	ClipCell          // per-cell factor from the cell's own gradient
	ClipFace          // shared per-face factor, min-propagated to both cells
)

var (
	ClipModeNames = map[string]ClipMode{
		"none": ClipNone,
		"cell": ClipCell,
		"face": ClipFace,
	}
	ClipModePrintNames = []string{"none", "cell-based", "face-based"}
)

func (cm ClipMode) Print() (txt string) {
	txt = ClipModePrintNames[cm]
	return
}

func NewClipMode(label string) (cm ClipMode) {
	var (
		ok bool
	)
	label = strings.ToLower(label)
	if cm, ok = ClipModeNames[label]; !ok {
		panic(fmt.Errorf("unable to use clip mode named %s", label))
	}
	return
}

// Assembly selects how interior-face scatter avoids write races.
type Assembly uint

const (
	// AssemblyGrouped scatters colored face groups in parallel with a
	// barrier between groups; no two faces in a group share a cell.
	AssemblyGrouped Assembly = iota
	// AssemblyAtomic scatters all faces in parallel with atomic adds.
	// Identical results up to floating-point summation order.
	AssemblyAtomic
)

// Options carries the per-call configuration of a gradient computation.
type Options struct {
	Method      Method
	Inc         int     // 0 suppresses the constant BC coefficient (increment mode)
	NSweeps     int     // sweep budget for the iterative method
	Epsilon     float64 // relative L2 convergence criterion
	HydPressure bool    // hydrostatic-pressure variant (scalar LSQ only)
	WStride     int     // 0/1 isotropic weight, 6 anisotropic tensor weight
	Verbosity   int
	ClipMode    ClipMode
	ClipCoeff   float64
	Coupling    InternalCoupling // optional, nil when no boundary coupling
}

// ConfigError marks an unsupported method/flag combination: a caller
// programming error, rejected at the API boundary.
type ConfigError struct {
	What string
}

func (e *ConfigError) Error() string {
	return "gradient: unsupported configuration: " + e.What
}

func (o *Options) validate(kind string) error {
	if int(o.Method) >= len(MethodPrintNames) {
		return &ConfigError{What: fmt.Sprintf("unknown method %d", o.Method)}
	}
	if o.WStride != 0 && o.WStride != 1 && o.WStride != 6 {
		return &ConfigError{What: fmt.Sprintf("weight stride %d (want 1 or 6)", o.WStride)}
	}
	if o.HydPressure {
		if kind != "scalar" {
			return &ConfigError{What: "hydrostatic-pressure variant is scalar-only"}
		}
		if o.Method == GreenGaussIter || o.Method == GreenLSQ {
			return &ConfigError{What: "hydrostatic-pressure variant requires a least-squares method"}
		}
		if o.WStride == 6 {
			return &ConfigError{What: "anisotropic weighting combined with hydrostatic pressure"}
		}
	}
	if o.WStride == 6 && kind != "scalar" {
		return &ConfigError{What: "anisotropic weighting is scalar-only"}
	}
	if o.Coupling != nil && kind != "scalar" {
		return &ConfigError{What: "internal coupling is scalar-only"}
	}
	if o.NSweeps < 0 {
		return &ConfigError{What: fmt.Sprintf("negative sweep count %d", o.NSweeps)}
	}
	if o.ClipMode != ClipNone && o.ClipCoeff <= 0 {
		return &ConfigError{What: fmt.Sprintf("clip coefficient %g with clipping enabled", o.ClipCoeff)}
	}
	return nil
}

// BCScalar holds per-boundary-face Robin coefficients (a,b): the
// reconstructed boundary value is a*inc + b*(interior value + correction).
// A nil pair defaults to homogeneous Neumann (a=0, b=1).
type BCScalar struct {
	A, B []float64
}

// BCVector is the vector analogue; B couples components.
type BCVector struct {
	A [][3]float64
	B [][3][3]float64
}

// BCTensor is the symmetric-tensor analogue.
type BCTensor struct {
	A [][6]float64
	B [][6][6]float64
}
