package mesh

import (
	"fmt"
	"log"
	"sort"

	metis "github.com/notargets/go-metis"

	"github.com/notargets/fvgrad/utils"
)

// PartitionConfig holds the knobs for METIS cell-graph partitioning.
type PartitionConfig struct {
	NumPartitions   int32
	ImbalanceFactor float32 // e.g. 1.05 for 5% imbalance
	UseEdgeWeights  bool
	Objective       string // "cut" or "vol"
}

func DefaultPartitionConfig(nparts int32) *PartitionConfig {
	return &PartitionConfig{
		NumPartitions:   nparts,
		ImbalanceFactor: 1.05,
		UseEdgeWeights:  true,
		Objective:       "vol",
	}
}

// PartitionCellsSlab assigns cells to nparts contiguous index ranges. Cheap,
// deterministic, and adequate for structured meshes and tests; use
// PartitionCellsMetis for general unstructured meshes.
func PartitionCellsSlab(m *Mesh, nparts int) (part []int) {
	var (
		pm = utils.NewPartitionMap(nparts, m.NCells)
	)
	part = make([]int, m.NCells)
	for np := 0; np < nparts; np++ {
		kMin, kMax := pm.GetBucketRange(np)
		for c := kMin; c < kMax; c++ {
			part[c] = np
		}
	}
	return
}

// PartitionCellsMetis partitions the cell adjacency graph with METIS k-way,
// edge weights proportional to face area (communication volume across the
// cut scales with shared surface).
func PartitionCellsMetis(m *Mesh, cfg *PartitionConfig) (part []int, err error) {
	log.Printf("Partitioning mesh with %d cells into %d parts",
		m.NCells, cfg.NumPartitions)

	xadj, adjncy, adjwgt := buildMetisGraph(m, cfg.UseEdgeWeights)

	opts := make([]int32, metis.NoOptions)
	if err = metis.SetDefaultOptions(opts); err != nil {
		return nil, fmt.Errorf("failed to set METIS options: %w", err)
	}
	if cfg.Objective == "vol" {
		opts[metis.OptionObjType] = metis.ObjTypeVol
	} else {
		opts[metis.OptionObjType] = metis.ObjTypeCut
	}
	ubvec := []float32{cfg.ImbalanceFactor}

	var adjwgtPtr []int32
	if cfg.UseEdgeWeights {
		adjwgtPtr = adjwgt
	}
	p32, objval, err := metis.PartGraphKwayWeighted(
		xadj, adjncy, nil, adjwgtPtr,
		cfg.NumPartitions, nil, ubvec, opts,
	)
	if err != nil {
		return nil, fmt.Errorf("METIS partitioning failed: %w", err)
	}
	log.Printf("METIS objective value: %d", objval)

	part = make([]int, m.NCells)
	for i := range part {
		part[i] = int(p32[i])
	}
	return
}

func buildMetisGraph(m *Mesh, edgeWeights bool) (xadj, adjncy, adjwgt []int32) {
	type edge struct {
		to int
		w  int32
	}
	adj := make([][]edge, m.NCells)
	for f, fc := range m.IFaceCells {
		i, j := fc[0], fc[1]
		if i >= m.NCells || j >= m.NCells {
			continue // halo faces do not enter the cut graph
		}
		w := int32(1)
		if edgeWeights {
			// scale face area into a stable integer weight
			w = 1 + int32(1000*utils.Norm3(m.IFaceNormal[f]))
		}
		adj[i] = append(adj[i], edge{j, w})
		adj[j] = append(adj[j], edge{i, w})
	}
	xadj = make([]int32, m.NCells+1)
	for c := 0; c < m.NCells; c++ {
		for _, e := range adj[c] {
			adjncy = append(adjncy, int32(e.to))
			adjwgt = append(adjwgt, e.w)
		}
		xadj[c+1] = int32(len(adjncy))
	}
	return
}

// Split carves a global mesh into rank-local meshes according to a cell
// partition. Faces crossing a cut appear on both sides, with the remote cell
// materialized as a ghost; halo send/recv lists are ordered by global cell
// id so peer ranks agree on the wire order. Periodic global meshes are not
// splittable here (the halo would need transform-aware merging).
func Split(m *Mesh, part []int, nparts int) (local []*Mesh, err error) {
	if m.Halo != nil {
		return nil, fmt.Errorf("mesh: splitting a periodic mesh is not supported")
	}
	type ghostKey struct{ rank, global int }
	var (
		owned = make([][]int, nparts) // global ids per rank, ascending
	)
	for c := 0; c < m.NCells; c++ {
		owned[part[c]] = append(owned[part[c]], c)
	}
	local = make([]*Mesh, nparts)
	glob2loc := make([]map[int]int, nparts)
	for r := 0; r < nparts; r++ {
		lm := &Mesh{NCells: len(owned[r]), Generation: m.Generation}
		glob2loc[r] = make(map[int]int, len(owned[r]))
		for lc, gc := range owned[r] {
			glob2loc[r][gc] = lc
			lm.CellCen = append(lm.CellCen, m.CellCen[gc])
			lm.CellVol = append(lm.CellVol, m.CellVol[gc])
			lm.Disabled = append(lm.Disabled, m.Disabled[gc])
			lm.GlobalCell = append(lm.GlobalCell, gc)
		}
		local[r] = lm
	}
	// collect ghosts: remote neighbors across cut faces, per peer rank,
	// ordered by global id
	ghostsWanted := make([]map[int]map[int]bool, nparts) // [rank][peer] -> set of globals
	for r := range ghostsWanted {
		ghostsWanted[r] = make(map[int]map[int]bool)
	}
	for _, fc := range m.IFaceCells {
		i, j := fc[0], fc[1]
		ri, rj := part[i], part[j]
		if ri == rj {
			continue
		}
		if ghostsWanted[ri][rj] == nil {
			ghostsWanted[ri][rj] = map[int]bool{}
		}
		ghostsWanted[ri][rj][j] = true
		if ghostsWanted[rj][ri] == nil {
			ghostsWanted[rj][ri] = map[int]bool{}
		}
		ghostsWanted[rj][ri][i] = true
	}
	for r := 0; r < nparts; r++ {
		lm := local[r]
		lm.Halo = &Halo{
			NRanks:    nparts,
			Rank:      r,
			SendCells: make([][]int, nparts),
			RecvCells: make([][]int, nparts),
		}
		peers := make([]int, 0, len(ghostsWanted[r]))
		for p := range ghostsWanted[r] {
			peers = append(peers, p)
		}
		sort.Ints(peers)
		next := lm.NCells
		for _, p := range peers {
			globals := make([]int, 0, len(ghostsWanted[r][p]))
			for g := range ghostsWanted[r][p] {
				globals = append(globals, g)
			}
			sort.Ints(globals)
			for _, gc := range globals {
				glob2loc[r][gc] = next
				lm.CellCen = append(lm.CellCen, m.CellCen[gc])
				lm.CellVol = append(lm.CellVol, m.CellVol[gc])
				lm.Disabled = append(lm.Disabled, m.Disabled[gc])
				lm.GlobalCell = append(lm.GlobalCell, gc)
				lm.Halo.RecvCells[p] = append(lm.Halo.RecvCells[p], next)
				lm.Halo.GhostTransform = append(lm.Halo.GhostTransform, -1)
				next++
			}
		}
		lm.NCellsExt = next
	}
	// send lists mirror the peer's recv order (ascending global id)
	for r := 0; r < nparts; r++ {
		for p := 0; p < nparts; p++ {
			if ghostsWanted[p][r] == nil {
				continue
			}
			globals := make([]int, 0, len(ghostsWanted[p][r]))
			for g := range ghostsWanted[p][r] {
				globals = append(globals, g)
			}
			sort.Ints(globals)
			for _, gc := range globals {
				local[r].Halo.SendCells[p] = append(local[r].Halo.SendCells[p], glob2loc[r][gc])
			}
		}
	}
	// faces
	for f, fc := range m.IFaceCells {
		i, j := fc[0], fc[1]
		ri, rj := part[i], part[j]
		appendFace := func(r int) {
			lm := local[r]
			lm.IFaceCells = append(lm.IFaceCells, [2]int{glob2loc[r][i], glob2loc[r][j]})
			lm.IFaceNormal = append(lm.IFaceNormal, m.IFaceNormal[f])
			lm.IFaceCog = append(lm.IFaceCog, m.IFaceCog[f])
			lm.Weight = append(lm.Weight, m.Weight[f])
			lm.Dofij = append(lm.Dofij, m.Dofij[f])
		}
		appendFace(ri)
		if rj != ri {
			appendFace(rj)
		}
	}
	for f, c := range m.BFaceCell {
		r := part[c]
		lm := local[r]
		lm.BFaceCell = append(lm.BFaceCell, glob2loc[r][c])
		lm.BFaceNormal = append(lm.BFaceNormal, m.BFaceNormal[f])
		lm.BFaceCog = append(lm.BFaceCog, m.BFaceCog[f])
		lm.BFaceSurf = append(lm.BFaceSurf, m.BFaceSurf[f])
		lm.BDist = append(lm.BDist, m.BDist[f])
		lm.DiipB = append(lm.DiipB, m.DiipB[f])
	}
	for r := 0; r < nparts; r++ {
		local[r].BuildFaceGroups()
		if err = local[r].Check(); err != nil {
			return nil, fmt.Errorf("rank %d local mesh: %w", r, err)
		}
	}
	return
}
