package logging

import "testing"

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 10},
		{"default bucket size for negative", -1, 10},
		{"custom bucket size", 25, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSampler_NilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog("3", 5, 50) {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSampler_BucketsAndNodeChanges(t *testing.T) {
	s := NewProgressSampler(10)

	if !s.ShouldLog("3", 0, 50) {
		t.Error("first update should log")
	}
	if s.ShouldLog("3", 2, 50) {
		t.Error("4% should stay in the first bucket")
	}
	if !s.ShouldLog("3", 5, 50) {
		t.Error("10% should cross into the next bucket")
	}
	if !s.ShouldLog("3", 50, 50) {
		t.Error("completion should log")
	}
	if s.ShouldLog("3", 50, 50) {
		t.Error("repeated completion should not log")
	}
	if !s.ShouldLog("8", 0, 20) {
		t.Error("node change should log")
	}
}

func TestProgressSampler_UnknownMax(t *testing.T) {
	s := NewProgressSampler(10)
	if !s.ShouldLog("3", 1, 0) {
		t.Error("first node should log even with unknown max")
	}
	if s.ShouldLog("3", 2, 0) {
		t.Error("unknown max should not emit without node change")
	}
}

func TestProgressSampler_Reset(t *testing.T) {
	s := NewProgressSampler(10)
	s.ShouldLog("3", 25, 50)
	s.Reset()
	if s.lastNode != "" || s.lastBucket != -1 {
		t.Fatalf("reset left state: node=%q bucket=%d", s.lastNode, s.lastBucket)
	}
	if !s.ShouldLog("3", 25, 50) {
		t.Error("after reset the same update should log again")
	}
}
