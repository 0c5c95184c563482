package chat

import (
	"testing"
	"time"
)

func TestRateLimiter_AdmitsUpToMax(t *testing.T) {
	rl := NewRateLimiter(5, time.Second)
	start := time.Unix(1700000000, 0)

	for i := 0; i < 5; i++ {
		if !rl.TryAdmit("c1", start.Add(time.Duration(i)*100*time.Millisecond)) {
			t.Fatalf("TryAdmit() #%d = false, want true", i+1)
		}
	}
	if rl.TryAdmit("c1", start.Add(900*time.Millisecond)) {
		t.Error("TryAdmit() #6 in same window = true, want false")
	}
	// 被拒绝不增加计数，窗口过去后重新计数
	if !rl.TryAdmit("c1", start.Add(1001*time.Millisecond)) {
		t.Error("TryAdmit() after window = false, want true")
	}
}

func TestRateLimiter_WindowBoundaryIsInclusive(t *testing.T) {
	rl := NewRateLimiter(1, time.Second)
	start := time.Unix(1700000000, 0)

	if !rl.TryAdmit("c1", start) {
		t.Fatal("first TryAdmit() = false")
	}
	if rl.TryAdmit("c1", start.Add(time.Second)) {
		t.Error("TryAdmit() exactly at window end = true, want false")
	}
	if !rl.TryAdmit("c1", start.Add(time.Second+time.Millisecond)) {
		t.Error("TryAdmit() past window end = false, want true")
	}
}

func TestRateLimiter_PerConnection(t *testing.T) {
	rl := NewRateLimiter(1, time.Second)
	now := time.Unix(1700000000, 0)

	if !rl.TryAdmit("a", now) || !rl.TryAdmit("b", now) {
		t.Fatal("independent connections should each be admitted once")
	}
	if rl.TryAdmit("a", now) {
		t.Error("second TryAdmit(a) = true, want false")
	}
	if bucketCount(rl) != 2 {
		t.Errorf("buckets = %d, want 2", bucketCount(rl))
	}
}

func TestRateLimiter_RemoveResets(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Unix(1700000000, 0)

	rl.TryAdmit("a", now)
	rl.Remove("a")
	if bucketCount(rl) != 0 {
		t.Errorf("buckets after Remove = %d, want 0", bucketCount(rl))
	}
	if !rl.TryAdmit("a", now) {
		t.Error("TryAdmit() after Remove = false, want true")
	}
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	if rl.max != 5 || rl.window != time.Second {
		t.Errorf("defaults = (%d, %v), want (5, 1s)", rl.max, rl.window)
	}
}

func bucketCount(rl *RateLimiter) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
