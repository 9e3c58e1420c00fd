package InputParameters

import (
	"fmt"
	"sort"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML input file
type GradientParameters struct {
	Title       string  `yaml:"Title"`
	Method      string  `yaml:"Method"` // iter, lsq, lsq_ext, gg_lsq
	NSweeps     int     `yaml:"NSweeps"`
	Epsilon     float64 `yaml:"Epsilon"`
	ClipMode    string  `yaml:"ClipMode"` // none, cell, face
	ClipCoeff   float64 `yaml:"ClipCoeff"`
	Verbosity   int     `yaml:"Verbosity"`
	Iterations  int     `yaml:"Iterations"` // repeated calls for timing
	Nx          int     `yaml:"Nx"`
	Ny          int     `yaml:"Ny"`
	Nz          int     `yaml:"Nz"`
	Lx          float64 `yaml:"Lx"`
	Ly          float64 `yaml:"Ly"`
	Lz          float64 `yaml:"Lz"`
	Perturb     float64 `yaml:"Perturb"` // geometry skew amplitude, 0 = orthogonal
	PeriodicX   bool    `yaml:"PeriodicX"`
	Partitioner string  `yaml:"Partitioner"` // slab or metis
	// First key is the box patch name (XMin..ZMax), second the Robin
	// coefficient name (A or B)
	BCs map[string]map[string]float64 `yaml:"BCs"`
}

func (ip *GradientParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, ip); err != nil {
		return err
	}
	ip.setDefaults()
	return nil
}

func (ip *GradientParameters) setDefaults() {
	if ip.Method == "" {
		ip.Method = "iter"
	}
	if ip.NSweeps == 0 {
		ip.NSweeps = 100
	}
	if ip.Epsilon == 0 {
		ip.Epsilon = 1.e-8
	}
	if ip.ClipMode == "" {
		ip.ClipMode = "none"
	}
	if ip.Iterations == 0 {
		ip.Iterations = 1
	}
	if ip.Nx == 0 {
		ip.Nx, ip.Ny, ip.Nz = 32, 32, 32
	}
	if ip.Lx == 0 {
		ip.Lx, ip.Ly, ip.Lz = 1., 1., 1.
	}
	if ip.Partitioner == "" {
		ip.Partitioner = "slab"
	}
}

func (ip *GradientParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%s]\t\t\t= Method\n", ip.Method)
	fmt.Printf("[%d]\t\t\t\t= NSweeps\n", ip.NSweeps)
	fmt.Printf("%8.2e\t\t= Epsilon\n", ip.Epsilon)
	fmt.Printf("[%s]\t\t\t= Clip Mode\n", ip.ClipMode)
	fmt.Printf("%8.5f\t\t= Clip Coefficient\n", ip.ClipCoeff)
	fmt.Printf("[%d x %d x %d]\t\t= Mesh\n", ip.Nx, ip.Ny, ip.Nz)
	fmt.Printf("%8.5f\t\t= Perturbation\n", ip.Perturb)
	fmt.Printf("[%d]\t\t\t\t= Iterations\n", ip.Iterations)
	keys := make([]string, len(ip.BCs))
	i := 0
	for k := range ip.BCs {
		keys[i] = k
		i++
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("BCs[%s] = %v\n", key, ip.BCs[key])
	}
}
