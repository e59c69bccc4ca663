package health

import (
	"time"
)

// Status is the evaluated health of the storage volumes.
type Status string

const (
	// StatusHealthy indicates every volume is within acceptable ranges.
	StatusHealthy Status = "healthy"
	// StatusWarning indicates a volume is filling up but still writable.
	StatusWarning Status = "warning"
	// StatusCritical indicates a volume is nearly full.
	StatusCritical Status = "critical"
	// StatusUnknown indicates no volume was measured.
	StatusUnknown Status = "unknown"
)

// Thresholds defines the used-space percentages that raise issues.
type Thresholds struct {
	DiskWarning  float64 // Default: 80%
	DiskCritical float64 // Default: 90%
}

// DefaultThresholds returns the default disk thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DiskWarning:  80.0,
		DiskCritical: 90.0,
	}
}

// Issue is one volume over a threshold.
type Issue struct {
	Path      string  `json:"path"`
	Severity  Status  `json:"severity"`
	Message   string  `json:"message"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

// CheckResult is the outcome of evaluating a set of volumes.
type CheckResult struct {
	Status    Status        `json:"status"`
	Message   string        `json:"message"`
	Volumes   []VolumeUsage `json:"volumes"`
	Issues    []Issue       `json:"issues,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Checker evaluates volume usage against thresholds.
type Checker struct {
	thresholds Thresholds
}

// NewChecker creates a checker with the given thresholds.
func NewChecker(thresholds Thresholds) *Checker {
	return &Checker{thresholds: thresholds}
}

// NewCheckerWithDefaults creates a checker with default thresholds.
func NewCheckerWithDefaults() *Checker {
	return NewChecker(DefaultThresholds())
}

// Evaluate reports the worst severity across volumes.
func (c *Checker) Evaluate(volumes []VolumeUsage) *CheckResult {
	result := &CheckResult{
		Status:    StatusHealthy,
		Volumes:   volumes,
		Issues:    make([]Issue, 0),
		CheckedAt: time.Now().UTC(),
	}

	if len(volumes) == 0 {
		result.Status = StatusUnknown
		result.Message = "No volumes measured"
		return result
	}

	for _, v := range volumes {
		switch {
		case v.UsedPercent >= c.thresholds.DiskCritical:
			result.Issues = append(result.Issues, Issue{
				Path:      v.Path,
				Severity:  StatusCritical,
				Message:   "Disk space critically low",
				Value:     v.UsedPercent,
				Threshold: c.thresholds.DiskCritical,
			})
		case v.UsedPercent >= c.thresholds.DiskWarning:
			result.Issues = append(result.Issues, Issue{
				Path:      v.Path,
				Severity:  StatusWarning,
				Message:   "Disk space running low",
				Value:     v.UsedPercent,
				Threshold: c.thresholds.DiskWarning,
			})
		}
	}

	result.Status = overallStatus(result.Issues)
	result.Message = message(result.Status)
	return result
}

func overallStatus(issues []Issue) Status {
	status := StatusHealthy
	for _, issue := range issues {
		switch issue.Severity {
		case StatusCritical:
			return StatusCritical
		case StatusWarning:
			status = StatusWarning
		}
	}
	return status
}

func message(status Status) string {
	switch status {
	case StatusHealthy:
		return "All volumes have space"
	case StatusWarning:
		return "Some volumes require attention"
	case StatusCritical:
		return "A volume is nearly full"
	default:
		return "Volume status unknown"
	}
}
