package constants

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

// CacheLinePadSize is the alignment unit used to keep hot atomics on
// separate cache lines.
const CacheLinePadSize = unsafe.Sizeof(cpu.CacheLinePad{})
