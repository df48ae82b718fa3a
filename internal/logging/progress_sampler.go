package logging

import "math"

// ProgressSampler thins out render progress logs to one line per bucket.
type ProgressSampler struct {
	bucketSize float64
	lastBucket int
}

// NewProgressSampler emits whenever progress enters a new bucket of
// bucketSize percent (default 5).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether percent should be logged. Values never move the
// sampler backwards; NaN and negative values are ignored. A nil sampler logs
// everything.
func (s *ProgressSampler) ShouldLog(percent float64) bool {
	if s == nil {
		return true
	}
	if math.IsNaN(percent) || percent < 0 {
		return false
	}
	bucket := int(math.Min(percent, 100) / s.bucketSize)
	if bucket <= s.lastBucket {
		return false
	}
	s.lastBucket = bucket
	return true
}
