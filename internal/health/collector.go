// Package health measures the storage volumes the permit office writes to.
package health

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

// VolumeUsage is the disk usage of the filesystem holding one path.
type VolumeUsage struct {
	Path        string  `json:"path"`
	UsedPercent float64 `json:"used_percent"`
	FreeBytes   uint64  `json:"free_bytes"`
	TotalBytes  uint64  `json:"total_bytes"`
}

type usageFunc func(ctx context.Context, path string) (*disk.UsageStat, error)

// Collector reads disk usage for a fixed set of paths.
type Collector struct {
	paths []string
	usage usageFunc
}

// NewCollector creates a collector for the given paths. Empty and duplicate
// paths are ignored.
func NewCollector(paths ...string) *Collector {
	seen := make(map[string]struct{}, len(paths))
	var cleaned []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		p = filepath.Clean(p)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		cleaned = append(cleaned, p)
	}
	return &Collector{
		paths: cleaned,
		usage: disk.UsageWithContext,
	}
}

// Paths returns the paths being measured.
func (c *Collector) Paths() []string {
	return c.paths
}

// Collect measures every path. The first failure aborts collection.
func (c *Collector) Collect(ctx context.Context) ([]VolumeUsage, error) {
	volumes := make([]VolumeUsage, 0, len(c.paths))
	for _, p := range c.paths {
		stat, err := c.usage(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("disk usage for %s: %w", p, err)
		}
		volumes = append(volumes, VolumeUsage{
			Path:        p,
			UsedPercent: stat.UsedPercent,
			FreeBytes:   stat.Free,
			TotalBytes:  stat.Total,
		})
	}
	return volumes, nil
}
