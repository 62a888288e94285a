// Package build compiles source pages into the output tree and keeps the
// dependency graph current across full and incremental builds.
package build

import (
	"sync"
	"time"
)

// BuildMetrics tracks build performance
type BuildMetrics struct {
	TotalBuilds         int64
	FullBuilds          int64
	IncrementalBuilds   int64
	SuccessfulBuilds    int64
	FailedBuilds        int64
	PagesCompiled       int64
	StylesheetsCompiled int64
	AverageDuration     time.Duration
	TotalDuration       time.Duration
	mutex               sync.RWMutex
}

// NewBuildMetrics creates a new build metrics tracker
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// RecordBuild records a build result in the metrics
func (bm *BuildMetrics) RecordBuild(result *Result) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalBuilds++
	bm.TotalDuration += result.Duration
	bm.PagesCompiled += int64(result.PagesCompiled)
	bm.StylesheetsCompiled += int64(result.StylesheetsCompiled)

	if result.Kind == KindFull {
		bm.FullBuilds++
	} else {
		bm.IncrementalBuilds++
	}

	if len(result.Errors) > 0 {
		bm.FailedBuilds++
	} else {
		bm.SuccessfulBuilds++
	}

	bm.AverageDuration = bm.TotalDuration / time.Duration(bm.TotalBuilds)
}

// GetSnapshot returns a snapshot of current metrics
func (bm *BuildMetrics) GetSnapshot() BuildMetrics {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()
	return BuildMetrics{
		TotalBuilds:         bm.TotalBuilds,
		FullBuilds:          bm.FullBuilds,
		IncrementalBuilds:   bm.IncrementalBuilds,
		SuccessfulBuilds:    bm.SuccessfulBuilds,
		FailedBuilds:        bm.FailedBuilds,
		PagesCompiled:       bm.PagesCompiled,
		StylesheetsCompiled: bm.StylesheetsCompiled,
		AverageDuration:     bm.AverageDuration,
		TotalDuration:       bm.TotalDuration,
	}
}

// Reset resets all metrics
func (bm *BuildMetrics) Reset() {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalBuilds = 0
	bm.FullBuilds = 0
	bm.IncrementalBuilds = 0
	bm.SuccessfulBuilds = 0
	bm.FailedBuilds = 0
	bm.PagesCompiled = 0
	bm.StylesheetsCompiled = 0
	bm.AverageDuration = 0
	bm.TotalDuration = 0
}

// GetSuccessRate returns the share of builds without errors as a percentage
func (bm *BuildMetrics) GetSuccessRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	if bm.TotalBuilds == 0 {
		return 0.0
	}

	return float64(bm.SuccessfulBuilds) / float64(bm.TotalBuilds) * 100.0
}
