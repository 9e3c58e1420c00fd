/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"sync"
	"time"

	"github.com/notargets/fvgrad/InputParameters"
	"github.com/notargets/fvgrad/gradient"
	"github.com/notargets/fvgrad/halo"
	"github.com/notargets/fvgrad/mesh"
	"github.com/notargets/fvgrad/utils"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
)

type BenchRun struct {
	ParamFile string
	NParts    int
	Profile   bool
}

// benchCmd represents the bench command
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time gradient reconstruction on a generated box mesh",
	Long: `
Builds a box mesh from the input parameters, optionally skews its
interpolation geometry and partitions it over in-process ranks, then times
repeated gradient computations and dumps the per-system statistics.

fvgrad bench -I bench.yaml -p 4`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
		)
		br := &BenchRun{}
		if br.ParamFile, err = cmd.Flags().GetString("inputConditionsFile"); err != nil {
			panic(err)
		}
		br.NParts, _ = cmd.Flags().GetInt("nparts")
		br.Profile, _ = cmd.Flags().GetBool("profile")
		ip := processBenchInput(br)
		RunBench(br, ip)
	},
}

func processBenchInput(br *BenchRun) (ip *InputParameters.GradientParameters) {
	ip = &InputParameters.GradientParameters{}
	if len(br.ParamFile) == 0 {
		exampleFile := `
########################################
Title: "Box Bench"
Method: lsq # iter, lsq, lsq_ext, gg_lsq
NSweeps: 100
Epsilon: 1.e-8
Nx: 64
Ny: 64
Nz: 64
Perturb: 0.1
Iterations: 10
########################################
`
		fmt.Printf("no input parameters file (-I), using defaults. Example File:%s\n", exampleFile)
		if err := ip.Parse([]byte("{}")); err != nil {
			panic(err)
		}
		return
	}
	data, err := ioutil.ReadFile(br.ParamFile)
	if err != nil {
		panic(err)
	}
	if err = ip.Parse(data); err != nil {
		panic(err)
	}
	return
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- Method\n\t- NSweeps\n\t- Mesh dimensions")
	benchCmd.Flags().IntP("nparts", "p", 1, "number of in-process ranks the mesh is split over")
	benchCmd.Flags().BoolP("profile", "", false, "write a CPU profile for the run")
}

var patchNames = map[string]int{
	"XMin": mesh.PatchXMin, "XMax": mesh.PatchXMax,
	"YMin": mesh.PatchYMin, "YMax": mesh.PatchYMax,
	"ZMin": mesh.PatchZMin, "ZMax": mesh.PatchZMax,
}

// boundaryFromParams maps per-patch Robin coefficients onto the boundary
// faces; patches not named keep homogeneous Neumann (a=0, b=1).
func boundaryFromParams(b *mesh.Box, ip *InputParameters.GradientParameters) (bc gradient.BCScalar) {
	if len(ip.BCs) == 0 {
		return
	}
	nbf := len(b.BFaceCell)
	bc = gradient.BCScalar{A: make([]float64, nbf), B: make([]float64, nbf)}
	for f := range bc.B {
		bc.B[f] = 1.
	}
	for name, coeffs := range ip.BCs {
		p, ok := patchNames[name]
		if !ok {
			panic(fmt.Errorf("unknown boundary patch named %s", name))
		}
		for f, fp := range b.BFacePatch {
			if fp == p {
				bc.A[f] = coeffs["A"]
				bc.B[f] = coeffs["B"]
			}
		}
	}
	return
}

func optionsFromParams(ip *InputParameters.GradientParameters) *gradient.Options {
	return &gradient.Options{
		Method:    gradient.NewMethod(ip.Method),
		Inc:       1,
		NSweeps:   ip.NSweeps,
		Epsilon:   ip.Epsilon,
		ClipMode:  gradient.NewClipMode(ip.ClipMode),
		ClipCoeff: ip.ClipCoeff,
		Verbosity: ip.Verbosity,
	}
}

func benchField(x utils.Vec3) float64 {
	return math.Sin(2.*math.Pi*x[0])*math.Cos(2.*math.Pi*x[1]) + x[2]
}

func RunBench(br *BenchRun, ip *InputParameters.GradientParameters) {
	if br.Profile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	}
	ip.Print()
	b := mesh.NewBoxMesh(ip.Nx, ip.Ny, ip.Nz, ip.Lx, ip.Ly, ip.Lz)
	if ip.Perturb > 0 {
		b.Perturb(1, ip.Perturb)
	}
	if ip.PeriodicX {
		b.MakePeriodicX()
	}
	var (
		opt   = optionsFromParams(ip)
		start = time.Now()
	)
	if br.NParts > 1 {
		runPartitioned(b, ip, opt, br.NParts)
	} else {
		var (
			ctx  = gradient.NewContext(b.Mesh)
			bc   = boundaryFromParams(b, ip)
			v    = make([]float64, b.NCellsExt)
			grad = make([][3]float64, b.NCellsExt)
		)
		for c := 0; c < b.NCells; c++ {
			v[c] = benchField(b.CellCen[c])
		}
		for n := 0; n < ip.Iterations; n++ {
			if err := ctx.GradientScalar(ip.Title, opt, bc, v, nil, nil, grad); err != nil {
				panic(err)
			}
		}
		fmt.Printf("%d cells, %d calls in %s\n", b.NCells, ip.Iterations, time.Since(start).Round(time.Millisecond))
		ctx.Perf.DumpStats(os.Stdout)
	}
}

func runPartitioned(b *mesh.Box, ip *InputParameters.GradientParameters,
	opt *gradient.Options, nparts int) {
	if ip.PeriodicX {
		fmt.Println("error: periodic meshes cannot be partitioned")
		os.Exit(1)
	}
	var (
		part  []int
		err   error
		start = time.Now()
	)
	switch ip.Partitioner {
	case "metis":
		part, err = mesh.PartitionCellsMetis(b.Mesh, mesh.DefaultPartitionConfig(int32(nparts)))
		if err != nil {
			panic(err)
		}
	default:
		part = mesh.PartitionCellsSlab(b.Mesh, nparts)
	}
	local, err := mesh.Split(b.Mesh, part, nparts)
	if err != nil {
		panic(err)
	}
	var (
		ex  = halo.NewExchanger(nparts)
		wg  sync.WaitGroup
		ctx = make([]*gradient.Context, nparts)
	)
	for r := 0; r < nparts; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			var (
				lm   = local[r]
				v    = make([]float64, lm.NCellsExt)
				grad = make([][3]float64, lm.NCellsExt)
			)
			ctx[r] = gradient.NewRankContext(lm, ex.Rank(r, lm))
			// partitioned runs time the exchange path with the default
			// homogeneous Neumann boundary
			bc := gradient.BCScalar{}
			for c := 0; c < lm.NCells; c++ {
				v[c] = benchField(lm.CellCen[c])
			}
			for n := 0; n < ip.Iterations; n++ {
				if err := ctx[r].GradientScalar(ip.Title, opt, bc, v, nil, nil, grad); err != nil {
					panic(err)
				}
			}
		}(r)
	}
	wg.Wait()
	fmt.Printf("%d cells over %d ranks, %d calls in %s\n",
		b.NCells, nparts, ip.Iterations, time.Since(start).Round(time.Millisecond))
	ctx[0].Perf.DumpStats(os.Stdout)
}
