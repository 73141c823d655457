package runtime

import (
	"testing"
	"time"
)

func TestResourceTracker_Snapshot(t *testing.T) {
	tracker := newResourceTracker()

	snap1 := tracker.Snapshot()
	if snap1.CPUPercent != 0 {
		t.Errorf("expected 0 CPU percent on first snapshot, got %f", snap1.CPUPercent)
	}
	if snap1.MemoryBytes == 0 {
		t.Error("expected non-zero memory bytes")
	}
	if snap1.Goroutines == 0 {
		t.Error("expected non-zero goroutine count")
	}

	time.Sleep(10 * time.Millisecond)

	snap2 := tracker.Snapshot()
	if snap2.CPUPercent < 0 {
		t.Errorf("expected non-negative CPU percent, got %f", snap2.CPUPercent)
	}
}

func TestResourceTracker_SnapshotNilTracker(t *testing.T) {
	var tracker *resourceTracker

	snap := tracker.Snapshot()
	if snap != (ResourceUsage{}) {
		t.Errorf("expected zero ResourceUsage for nil tracker, got %+v", snap)
	}
}

func TestResourceTracker_SnapshotEmptySamples(t *testing.T) {
	tracker := &resourceTracker{}

	snap := tracker.Snapshot()
	if snap.MemoryBytes == 0 {
		t.Error("expected non-zero memory bytes even with empty samples")
	}
	if len(tracker.samples) != 2 {
		t.Errorf("expected default samples to be installed, got %d", len(tracker.samples))
	}
}
