// Package host records the machine a run was measured on.
package host

import (
	"context"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Info describes the measuring machine. Fields gopsutil cannot fill on the
// current platform are left at their zero value.
type Info struct {
	Hostname      string  `json:"hostname"`
	OS            string  `json:"os"`
	Platform      string  `json:"platform,omitempty"`
	KernelVersion string  `json:"kernel_version,omitempty"`
	Arch          string  `json:"arch"`
	CPUModel      string  `json:"cpu_model,omitempty"`
	CPUMhz        float64 `json:"cpu_mhz,omitempty"`
	PhysicalCores int     `json:"physical_cores,omitempty"`
	LogicalCores  int     `json:"logical_cores"`
	MemoryBytes   uint64  `json:"memory_bytes,omitempty"`
	GoVersion     string  `json:"go_version"`
	GOMAXPROCS    int     `json:"gomaxprocs"`
}

// Collect gathers host information. It never fails: lookups that error are
// skipped so a run is never lost for lack of metadata.
func Collect(ctx context.Context) Info {
	info := Info{
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		LogicalCores: runtime.NumCPU(),
		GoVersion:    runtime.Version(),
		GOMAXPROCS:   runtime.GOMAXPROCS(0),
	}
	if name, err := os.Hostname(); err == nil {
		info.Hostname = name
	}

	if h, err := host.InfoWithContext(ctx); err == nil {
		info.Platform = h.Platform
		info.KernelVersion = h.KernelVersion
	}
	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
		info.CPUMhz = cpus[0].Mhz
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		info.PhysicalCores = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryBytes = vm.Total
	}
	return info
}

// Same reports whether two runs were measured on comparable hardware.
func (i Info) Same(other Info) bool {
	return i.CPUModel == other.CPUModel && i.Arch == other.Arch && i.LogicalCores == other.LogicalCores
}
