package utils

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// AtomicAddFloat64 adds delta to *addr with a compare-and-swap loop on the
// bit pattern. This is the fallback assembly strategy for face scatter when
// the mesh's colored face groups are not used; results differ from the
// grouped strategy only in floating-point summation order.
func AtomicAddFloat64(addr *float64, delta float64) {
	bits := (*uint64)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint64(bits)
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(bits, old, next) {
			return
		}
	}
}
