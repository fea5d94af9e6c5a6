// Package systeminfo describes the host a scan ran on and which external
// tools it could reach.
package systeminfo

import (
	"context"
	"os/exec"
	"runtime"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"uploadscan/config"
	"uploadscan/logger"
)

const gatherTimeout = 5 * time.Second

type SystemInfo struct {
	Version         string     `json:"version"`
	Hostname        string     `json:"hostname,omitempty"`
	OS              string     `json:"os"`
	Platform        string     `json:"platform,omitempty"`
	PlatformVersion string     `json:"platform_version,omitempty"`
	KernelVersion   string     `json:"kernel_version,omitempty"`
	CPUCount        int        `json:"cpu_count"`
	TotalMemory     uint64     `json:"total_memory,omitempty"`
	Tools           []ToolInfo `json:"tools"`
}

type ToolInfo struct {
	Role      string `json:"role"`
	Binary    string `json:"binary"`
	Path      string `json:"path,omitempty"`
	Available bool   `json:"available"`
}

// Gather never fails; anything it cannot determine is logged and left empty.
// binaries maps tool roles to the executables the runner will invoke.
func Gather(binaries map[string]string) *SystemInfo {
	ctx, cancel := context.WithTimeout(context.Background(), gatherTimeout)
	defer cancel()

	info := &SystemInfo{
		Version:  config.Version,
		OS:       runtime.GOOS,
		CPUCount: runtime.NumCPU(),
	}
	if hi, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = hi.Hostname
		info.Platform = hi.Platform
		info.PlatformVersion = hi.PlatformVersion
		info.KernelVersion = hi.KernelVersion
	} else {
		logger.Warnf("Failed to gather host info: %v", err)
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		info.CPUCount = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.TotalMemory = vm.Total
	}
	info.Tools = LookupTools(binaries)
	return info
}

// LookupTools resolves each binary on PATH, sorted by role.
func LookupTools(binaries map[string]string) []ToolInfo {
	tools := make([]ToolInfo, 0, len(binaries))
	for role, bin := range binaries {
		t := ToolInfo{Role: role, Binary: bin}
		if bin != "" {
			if path, err := exec.LookPath(bin); err == nil {
				t.Path = path
				t.Available = true
			}
		}
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Role < tools[j].Role })
	return tools
}

// Missing lists tools that could not be resolved.
func (s *SystemInfo) Missing() []ToolInfo {
	var missing []ToolInfo
	for _, t := range s.Tools {
		if !t.Available {
			missing = append(missing, t)
		}
	}
	return missing
}
