package tracker

import (
	"golang.org/x/sys/unix"
)

// DiskUsageFor returns the disk usage metrics for the filesystem holding
// path.
func DiskUsageFor(path string) (DiskUsage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return DiskUsage{}, err
	}

	total := int64(stat.Blocks) * int64(stat.Bsize)
	free := int64(stat.Bfree) * int64(stat.Bsize)
	used := total - free

	const gb = 1 << 30
	usage := DiskUsage{
		TotalGB: float64(total) / gb,
		UsedGB:  float64(used) / gb,
		FreeGB:  float64(free) / gb,
	}
	if total > 0 {
		usage.Percent = float64(used) / float64(total) * 100
	}
	return usage, nil
}

// CollectSystemHealth gathers disk metrics for the three roots. A root
// that cannot be statted contributes zero values rather than an error.
func CollectSystemHealth(downloadsPath, extractedPath, finishedPath, toolVersion string) SystemHealth {
	health := SystemHealth{ToolVersion: toolVersion}
	if downloadsPath != "" {
		health.Downloads, _ = DiskUsageFor(downloadsPath)
	}
	if extractedPath != "" {
		health.Extracted, _ = DiskUsageFor(extractedPath)
	}
	if finishedPath != "" {
		health.Finished, _ = DiskUsageFor(finishedPath)
	}
	return health
}
