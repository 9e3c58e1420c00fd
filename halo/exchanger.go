package halo

import (
	"sync"

	"github.com/notargets/fvgrad/mesh"
)

// Exchanger wires N in-process ranks together. Create one per run, then hand
// each rank goroutine its Syncer via Rank(). Every sync is send-all then
// receive-all over per-pair buffered channels, so no ordering deadlock is
// possible as long as all ranks enter the same collectives in the same
// order.
type Exchanger struct {
	size    int
	chans   [][]chan []float64 // [from][to]
	barrier *barrier
	fBuf    []float64
	iBuf    []int
}

func NewExchanger(size int) (e *Exchanger) {
	e = &Exchanger{
		size:    size,
		chans:   make([][]chan []float64, size),
		barrier: newBarrier(size),
		fBuf:    make([]float64, size),
		iBuf:    make([]int, size),
	}
	for i := 0; i < size; i++ {
		e.chans[i] = make([]chan []float64, size)
		for j := 0; j < size; j++ {
			e.chans[i][j] = make(chan []float64, 1)
		}
	}
	return
}

// Rank binds rank r to its local mesh and returns the Syncer its goroutine
// uses.
func (e *Exchanger) Rank(r int, m *mesh.Mesh) Syncer {
	return &rankSyncer{ex: e, rank: r, m: m}
}

// NewSerial returns a Syncer for a single-rank mesh; periodic ghosts, if
// any, are still serviced (loopback exchange plus rotation).
func NewSerial(m *mesh.Mesh) Syncer {
	return NewExchanger(1).Rank(0, m)
}

type rankSyncer struct {
	ex   *Exchanger
	rank int
	m    *mesh.Mesh
}

func (rs *rankSyncer) Rank() int { return rs.rank }
func (rs *rankSyncer) Size() int { return rs.ex.size }

// exchange ships stride floats per cell: gathers send lists, posts them,
// then scatters arriving buffers into the ghost slots.
func (rs *rankSyncer) exchange(stride int, gather func(cell int, dst []float64),
	scatter func(cell int, src []float64)) {
	var (
		h = rs.m.Halo
	)
	if h == nil {
		return
	}
	for p := 0; p < h.NRanks; p++ {
		cells := h.SendCells[p]
		if len(cells) == 0 {
			continue
		}
		buf := make([]float64, stride*len(cells))
		for n, c := range cells {
			gather(c, buf[n*stride:(n+1)*stride])
		}
		rs.ex.chans[rs.rank][p] <- buf
	}
	for p := 0; p < h.NRanks; p++ {
		cells := h.RecvCells[p]
		if len(cells) == 0 {
			continue
		}
		buf := <-rs.ex.chans[p][rs.rank]
		for n, c := range cells {
			scatter(c, buf[n*stride:(n+1)*stride])
		}
	}
}

func (rs *rankSyncer) SyncScalar(vals []float64) {
	rs.exchange(1,
		func(c int, dst []float64) { dst[0] = vals[c] },
		func(c int, src []float64) { vals[c] = src[0] })
}

func (rs *rankSyncer) SyncVector(vals [][3]float64) {
	rs.exchange(3,
		func(c int, dst []float64) { copy(dst, vals[c][:]) },
		func(c int, src []float64) { copy(vals[c][:], src) })
	rotateGhosts(rs.m.Halo, func(g int, t mesh.Transform) {
		cell := rs.m.NCells + g
		vals[cell] = rotVec(t, vals[cell])
	})
}

func (rs *rankSyncer) SyncMat3(vals [][3][3]float64) {
	rs.exchange(9,
		func(c int, dst []float64) {
			for i := 0; i < 3; i++ {
				copy(dst[3*i:], vals[c][i][:])
			}
		},
		func(c int, src []float64) {
			for i := 0; i < 3; i++ {
				copy(vals[c][i][:], src[3*i:3*i+3])
			}
		})
	rotateGhosts(rs.m.Halo, func(g int, t mesh.Transform) {
		cell := rs.m.NCells + g
		vals[cell] = rotMat(t, vals[cell])
	})
}

func (rs *rankSyncer) SyncSym(vals [][6]float64) {
	rs.exchange(6,
		func(c int, dst []float64) { copy(dst, vals[c][:]) },
		func(c int, src []float64) { copy(vals[c][:], src) })
	rotateGhosts(rs.m.Halo, func(g int, t mesh.Transform) {
		cell := rs.m.NCells + g
		vals[cell] = rotSym(t, vals[cell])
	})
}

func (rs *rankSyncer) SyncSymGrad(vals [][6][3]float64) {
	rs.exchange(18,
		func(c int, dst []float64) {
			for i := 0; i < 6; i++ {
				copy(dst[3*i:], vals[c][i][:])
			}
		},
		func(c int, src []float64) {
			for i := 0; i < 6; i++ {
				copy(vals[c][i][:], src[3*i:3*i+3])
			}
		})
	rotateGhosts(rs.m.Halo, func(g int, t mesh.Transform) {
		cell := rs.m.NCells + g
		vals[cell] = rotSymGrad(t, vals[cell])
	})
}

func (rs *rankSyncer) ReduceSum(v float64) float64 {
	return rs.reduce(v, func(acc, x float64) float64 { return acc + x })
}

func (rs *rankSyncer) ReduceMin(v float64) float64 {
	return rs.reduce(v, func(acc, x float64) float64 {
		if x < acc {
			return x
		}
		return acc
	})
}

func (rs *rankSyncer) ReduceMax(v float64) float64 {
	return rs.reduce(v, func(acc, x float64) float64 {
		if x > acc {
			return x
		}
		return acc
	})
}

// reduce accumulates in rank order on every rank, so all ranks (and any
// rank count) agree bit-for-bit on the order of operations.
func (rs *rankSyncer) reduce(v float64, op func(acc, x float64) float64) float64 {
	e := rs.ex
	if e.size == 1 {
		return v
	}
	e.fBuf[rs.rank] = v
	e.barrier.wait()
	acc := e.fBuf[0]
	for i := 1; i < e.size; i++ {
		acc = op(acc, e.fBuf[i])
	}
	e.barrier.wait() // protect fBuf from the next collective
	return acc
}

func (rs *rankSyncer) ReduceSumInt(v int) int {
	e := rs.ex
	if e.size == 1 {
		return v
	}
	e.iBuf[rs.rank] = v
	e.barrier.wait()
	acc := 0
	for i := 0; i < e.size; i++ {
		acc += e.iBuf[i]
	}
	e.barrier.wait()
	return acc
}

// barrier is a reusable sense-reversing barrier.
type barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	size    int
	count   int
	setting bool
}

func newBarrier(size int) (b *barrier) {
	b = &barrier{size: size}
	b.cond = sync.NewCond(&b.mu)
	return
}

func (b *barrier) wait() {
	b.mu.Lock()
	sense := b.setting
	b.count++
	if b.count == b.size {
		b.count = 0
		b.setting = !b.setting
		b.cond.Broadcast()
	} else {
		for sense == b.setting {
			b.cond.Wait()
		}
	}
	b.mu.Unlock()
}
