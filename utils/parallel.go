package utils

import (
	"math"
	"sync"
)

// PartitionMap splits an index space [0,MaxIndex) into ParallelDegree
// contiguous buckets with a maximum imbalance of one item.
type PartitionMap struct {
	MaxIndex       int
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of each bucket
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	var (
		Npart            = pm.MaxIndex / pm.ParallelDegree
		startAdd, endAdd int
		remainder        = pm.MaxIndex % pm.ParallelDegree
	)
	if remainder != 0 { // spread the remainder over the first buckets evenly
		if threadNum+1 > remainder {
			startAdd = remainder
			endAdd = 0
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket[0] = threadNum*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (kMin, kMax int) {
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketDimension(bucketNum int) (kMax int) {
	k1, k2 := pm.GetBucketRange(bucketNum)
	kMax = k2 - k1
	return
}

// GetBucket finds the bucket containing index kDim with at most one probe
// away from the balanced-split initial guess.
func (pm *PartitionMap) GetBucket(kDim int) (bucketNum, kMin, kMax int) {
	bucketNum = pm.ParallelDegree * kDim / pm.MaxIndex
	for !(pm.Partitions[bucketNum][0] <= kDim && pm.Partitions[bucketNum][1] > kDim) {
		if pm.Partitions[bucketNum][0] > kDim {
			bucketNum--
		} else {
			bucketNum++
		}
		if bucketNum < 0 || bucketNum == pm.ParallelDegree {
			return -1, 0, 0
		}
	}
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

// RunParallel fans work out over the buckets of pm, one goroutine per
// bucket, and waits for all of them.
func RunParallel(pm *PartitionMap, work func(np, kMin, kMax int)) {
	var (
		wg = sync.WaitGroup{}
	)
	for np := 0; np < pm.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			kMin, kMax := pm.GetBucketRange(np)
			work(np, kMin, kMax)
			wg.Done()
		}(np)
	}
	wg.Wait()
}

// L2NormWeighted returns sqrt(sum(v[i]^2 * w[i])) over the first n entries
// of v with per-entry weights w. Used for residual tests where the weight
// is the cell volume fraction.
func L2NormWeighted(v, w []float64, n int) (norm float64) {
	for i := 0; i < n; i++ {
		norm += v[i] * v[i] * w[i]
	}
	norm = math.Sqrt(norm)
	return
}

// L2Norm over the first n entries of v.
func L2Norm(v []float64, n int) (norm float64) {
	for i := 0; i < n; i++ {
		norm += v[i] * v[i]
	}
	norm = math.Sqrt(norm)
	return
}
