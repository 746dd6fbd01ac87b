// Package diagnostics reports host resources that affect a long running
// station, currently the free space left for detections and recordings.
package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/tphakala/birdnet-listener/internal/errors"
)

// LowDiskPercent is the used share above which disk space is reported low.
const LowDiskPercent = 95.0

// DiskStatus describes the filesystem holding a path.
type DiskStatus struct {
	Path        string  `json:"path"`
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// Low reports whether the filesystem is nearly full.
func (d DiskStatus) Low() bool {
	return d.UsedPercent >= LowDiskPercent
}

// DiskUsage returns the usage of the filesystem holding path. A path that
// does not exist yet is resolved to its nearest existing parent.
func DiskUsage(path string) (DiskStatus, error) {
	target := existingParent(path)
	usage, err := disk.Usage(target)
	if err != nil {
		return DiskStatus{}, errors.New(err).
			Component("diagnostics").
			Category(errors.CategorySystem).
			Context("path", target).
			Build()
	}
	return DiskStatus{
		Path:        path,
		TotalBytes:  usage.Total,
		FreeBytes:   usage.Free,
		UsedPercent: usage.UsedPercent,
	}, nil
}

func existingParent(path string) string {
	p, err := filepath.Abs(path)
	if err != nil {
		p = path
	}
	for {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}

// FormatBytes renders n with a binary unit, e.g. "12.3 GiB".
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
