package mesh

import (
	"github.com/james-bowman/sparse"
)

// BuildExtendedNeighborhood fills CellCellIdx/CellCellLst with the
// second-ring stencil: cells reachable through exactly one intermediate
// neighbor, excluding direct neighbors and the cell itself. The ring is
// found by squaring the cell adjacency matrix in CSR form.
func (m *Mesh) BuildExtendedNeighborhood() {
	var (
		n   = m.NCellsExt
		adj = sparse.NewDOK(n, n)
	)
	for _, fc := range m.IFaceCells {
		adj.Set(fc[0], fc[1], 1)
		adj.Set(fc[1], fc[0], 1)
	}
	var (
		a    = adj.ToCSR()
		ring = sparse.NewCSR(n, n, nil, nil, nil)
	)
	ring.Mul(a, a)

	direct := make([]map[int]bool, m.NCells)
	for _, fc := range m.IFaceCells {
		i, j := fc[0], fc[1]
		if i < m.NCells {
			if direct[i] == nil {
				direct[i] = map[int]bool{}
			}
			direct[i][j] = true
		}
		if j < m.NCells {
			if direct[j] == nil {
				direct[j] = map[int]bool{}
			}
			direct[j][i] = true
		}
	}

	m.CellCellIdx = make([]int, m.NCells+1)
	m.CellCellLst = m.CellCellLst[:0]
	rows := make([][]int, m.NCells)
	ring.DoNonZero(func(i, j int, v float64) {
		if i >= m.NCells || i == j || v == 0 {
			return
		}
		if direct[i] != nil && direct[i][j] {
			return
		}
		rows[i] = append(rows[i], j)
	})
	for c := 0; c < m.NCells; c++ {
		m.CellCellIdx[c] = len(m.CellCellLst)
		m.CellCellLst = append(m.CellCellLst, rows[c]...)
	}
	m.CellCellIdx[m.NCells] = len(m.CellCellLst)
}
