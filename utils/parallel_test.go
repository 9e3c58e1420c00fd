package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionMap(t *testing.T) {
	{ // buckets tile the index space exactly, imbalance at most one
		for _, tc := range [][2]int{{4, 100}, {7, 100}, {3, 2}, {1, 17}, {8, 8}} {
			pm := NewPartitionMap(tc[0], tc[1])
			total := 0
			prev := 0
			minDim, maxDim := tc[1], 0
			for np := 0; np < tc[0]; np++ {
				kMin, kMax := pm.GetBucketRange(np)
				assert.Equal(t, prev, kMin)
				assert.True(t, kMax >= kMin)
				dim := pm.GetBucketDimension(np)
				assert.Equal(t, kMax-kMin, dim)
				if dim < minDim {
					minDim = dim
				}
				if dim > maxDim {
					maxDim = dim
				}
				total += dim
				prev = kMax
			}
			assert.Equal(t, tc[1], total)
			assert.True(t, maxDim-minDim <= 1)
		}
	}
	{ // GetBucket finds the owner of every index
		pm := NewPartitionMap(7, 100)
		for k := 0; k < 100; k++ {
			np, kMin, kMax := pm.GetBucket(k)
			assert.True(t, np >= 0)
			assert.True(t, kMin <= k && k < kMax)
		}
	}
}

func TestRunParallel(t *testing.T) {
	var (
		n    = 1000
		pm   = NewPartitionMap(8, n)
		vals = make([]float64, n)
	)
	RunParallel(pm, func(np, kMin, kMax int) {
		for k := kMin; k < kMax; k++ {
			vals[k] = float64(k)
		}
	})
	for k := 0; k < n; k++ {
		assert.Equal(t, float64(k), vals[k])
	}
}

func TestL2Norms(t *testing.T) {
	var (
		v = []float64{3, 4}
		w = []float64{1, 1}
	)
	assert.InDelta(t, 5., L2Norm(v, 2), 1.e-14)
	assert.InDelta(t, 5., L2NormWeighted(v, w, 2), 1.e-14)
	w = []float64{0.25, 0.25}
	assert.InDelta(t, 2.5, L2NormWeighted(v, w, 2), 1.e-14)
}
