package system

import (
	"fmt"
	"log"
	"os/exec"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

func InitResourceLimits() {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Failed to read the open-file limit: %v", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Failed to raise the open-file limit: %v", err)
	}
}

// GetBestWebMEncoder probes the local ffmpeg for a usable WebM video encoder,
// preferring VP9 over VP8.
func GetBestWebMEncoder() (string, error) {
	out, err := exec.Command("ffmpeg", "-encoders").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg not available: %w", err)
	}

	for _, enc := range []string{"libvpx-vp9", "libvpx"} {
		if strings.Contains(string(out), enc) {
			return enc, nil
		}
	}
	return "", fmt.Errorf("no WebM encoder found in ffmpeg build")
}

// SuggestPipelineDepth sizes how many RGBA frames may sit between the render
// and encode stages. Bounded by logical CPUs and by available memory so a 4K
// export on a small machine does not balloon.
func SuggestPipelineDepth(width, height int) int {
	depth := 2
	if n, err := cpu.Counts(true); err == nil && n > 2 {
		depth = n / 2
	}
	if depth > 8 {
		depth = 8
	}

	frameBytes := uint64(width) * uint64(height) * 4
	if frameBytes == 0 {
		return depth
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		// Keep in-flight frames under a quarter of available memory.
		maxByMem := int(vm.Available / 4 / frameBytes)
		if maxByMem < 1 {
			maxByMem = 1
		}
		if depth > maxByMem {
			depth = maxByMem
		}
	}
	return depth
}
