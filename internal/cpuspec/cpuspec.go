// Package cpuspec picks an interpreter thread count from the host CPU.
package cpuspec

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// CPUSpec describes the host CPU.
type CPUSpec struct {
	BrandName     string
	PhysicalCores int
	LogicalCores  int
}

// GetCPUSpec reads the CPU description via cpuid.
func GetCPUSpec() CPUSpec {
	return CPUSpec{
		BrandName:     cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
	}
}

// OptimalThreadCount returns the thread count for inference given the
// CPUs available to the process. SMT siblings share execution units and
// slow the interpreter, so physical cores are preferred.
func (c CPUSpec) OptimalThreadCount(available int) int {
	if available <= 0 {
		available = runtime.NumCPU()
	}
	threads := c.PhysicalCores
	if threads <= 0 {
		threads = c.LogicalCores
	}
	if threads <= 0 || threads > available {
		return available
	}
	return threads
}
