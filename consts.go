package blazesched

import "github.com/GoBlaze/blazesched/constants"

const (
	// runqSize is the capacity of each worker's local ring. Must be a
	// power of two.
	runqSize = 256
	runqMask = runqSize - 1

	// maxSlots bounds the slot array regardless of Options.MaxThreads.
	maxSlots = 256

	// directHopBudget bounds a LIFO switch-to chain before the pending
	// successor is demoted to the local ring.
	directHopBudget = 7
)

const cacheLinePadSize = constants.CacheLinePadSize

type cacheLinePadding struct{ _ [cacheLinePadSize]byte }
