package redis

import (
	"testing"
	"time"

	"seqgen/internal/domain/sequence"
)

func TestPeriodBucket(t *testing.T) {
	now := time.Date(2025, time.March, 7, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		period sequence.ResetPeriod
		want   string
	}{
		{sequence.ResetNever, ""},
		{sequence.ResetDaily, "2025-03-07"},
		{sequence.ResetMonthly, "2025-03"},
		{sequence.ResetYearly, "2025"},
	}

	for _, tt := range tests {
		if got := periodBucket(tt.period, now); got != tt.want {
			t.Errorf("periodBucket(%s) = %q, want %q", tt.period, got, tt.want)
		}
	}
}

func TestPeriodBucketNormalizesToUTC(t *testing.T) {
	// 01:30 on the 8th at UTC+2 is still the 7th in UTC.
	loc := time.FixedZone("EET", 2*60*60)
	now := time.Date(2025, time.March, 8, 1, 30, 0, 0, loc)

	if got := periodBucket(sequence.ResetDaily, now); got != "2025-03-07" {
		t.Errorf("periodBucket = %q, want 2025-03-07", got)
	}
}

func TestKeyIsScopePartitioned(t *testing.T) {
	s := NewStore(nil, "seqgen")

	a := s.key(sequence.DefaultConfig("tenant-a", "invoice", "X"))
	b := s.key(sequence.DefaultConfig("tenant-b", "invoice", "X"))
	if a == b {
		t.Errorf("keys collide across scopes: %q", a)
	}

	c := s.key(sequence.DefaultConfig("tenant-a", "order", "X"))
	if a == c {
		t.Errorf("keys collide across sequences: %q", a)
	}
}
