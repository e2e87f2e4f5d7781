//go:build linux

package cpu

import (
	"golang.org/x/sys/unix"
)

// cpuSetSize mirrors CPU_SETSIZE from <sched.h>.
const cpuSetSize = 1024

// pinToCore pins the current OS thread to a specific CPU core.
// Must be called after runtime.LockOSThread().
func pinToCore(cpuID int) (restore func() error, err error) {
	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		return nil, err
	}

	var mask unix.CPUSet
	mask.Zero()
	mask.Set(cpuID)

	if err := unix.SchedSetaffinity(0, &mask); err != nil { // 0 = current thread
		return nil, err
	}

	return func() error {
		return unix.SchedSetaffinity(0, &prev)
	}, nil
}

// Affinity returns the CPUs the current thread may run on.
func Affinity() ([]int, error) {
	var mask unix.CPUSet
	if err := unix.SchedGetaffinity(0, &mask); err != nil {
		return nil, err
	}

	cpus := make([]int, 0, mask.Count())
	for i := 0; i < cpuSetSize && len(cpus) < mask.Count(); i++ {
		if mask.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	return cpus, nil
}
