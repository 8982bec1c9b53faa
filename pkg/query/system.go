// Package query implements the opportunistic data-parallel filter,
// aggregate, and hash-join operations that run over document
// collections: an object's values or an array's elements, pulled out
// of the tree at a given path and evaluated independently of it.
package query

import "runtime"

// ParallelItemThreshold and ParallelCoreThreshold gate the sequential/
// parallel decision: a collection is only fanned out across goroutines
// once it is both large enough to be worth the overhead and the host
// actually has spare cores to run them on.
const (
	ParallelItemThreshold = 100
	ParallelCoreThreshold = 2
)

// SystemInfo reports the process-wide values the parallelism threshold
// is computed from.
type SystemInfo struct {
	Cores int
}

// overrideCores lets tests pin the core count instead of depending on
// runtime.NumCPU, which varies by host.
var overrideCores *int

// GetSystemInfo returns the current core count used to decide
// sequential vs. parallel evaluation.
func GetSystemInfo() SystemInfo {
	if overrideCores != nil {
		return SystemInfo{Cores: *overrideCores}
	}
	return SystemInfo{Cores: runtime.NumCPU()}
}

func shouldParallelize(itemCount int) bool {
	return itemCount >= ParallelItemThreshold && GetSystemInfo().Cores > ParallelCoreThreshold
}
