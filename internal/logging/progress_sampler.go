package logging

import "strings"

// ProgressSampler suppresses repetitive step-progress logs while preserving
// signal when the executing node changes or the percentage crosses a bucket.
type ProgressSampler struct {
	bucketSize float64
	lastNode   string
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 10%) or when the node changes.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a step counter update should be logged. A max of
// zero or less is treated as unknown progress and only node changes emit.
func (s *ProgressSampler) ShouldLog(node string, value, max int) bool {
	if s == nil {
		return true
	}
	node = strings.TrimSpace(node)
	emit := false
	if node != "" && node != s.lastNode {
		s.lastNode = node
		s.lastBucket = -1
		emit = true
	}
	if max > 0 {
		percent := float64(value) / float64(max) * 100
		bucket := int(percent / s.bucketSize)
		if value >= max {
			bucket = int(100 / s.bucketSize)
		}
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// Reset clears the sampler state (e.g. when a new prompt starts executing).
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastNode = ""
	s.lastBucket = -1
}
