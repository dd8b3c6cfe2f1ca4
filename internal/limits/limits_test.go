package limits

import (
	"testing"

	"github.com/draftforge/genroute/internal/registry"
)

func TestLimiter_TryAcquireRespectsCap(t *testing.T) {
	l := New([]registry.Descriptor{
		{ID: "p1", ConcurrencyLimit: 2, Enabled: true},
	})

	release1, ok := l.TryAcquire("p1")
	if !ok {
		t.Fatal("first acquire should succeed")
	}
	if _, ok := l.TryAcquire("p1"); !ok {
		t.Fatal("second acquire should succeed")
	}
	if _, ok := l.TryAcquire("p1"); ok {
		t.Fatal("third acquire should fail at limit 2")
	}

	release1()
	if _, ok := l.TryAcquire("p1"); !ok {
		t.Fatal("acquire should succeed after release")
	}
}

func TestLimiter_ZeroLimitMeansUnlimited(t *testing.T) {
	l := New([]registry.Descriptor{
		{ID: "p1", ConcurrencyLimit: 0, Enabled: true},
	})

	for i := 0; i < 100; i++ {
		if _, ok := l.TryAcquire("p1"); !ok {
			t.Fatalf("acquire %d should succeed with no limit", i)
		}
	}
}

func TestLimiter_Saturated(t *testing.T) {
	l := New([]registry.Descriptor{
		{ID: "p1", ConcurrencyLimit: 1, Enabled: true},
	})

	if l.Saturated("p1") {
		t.Fatal("fresh provider should not be saturated")
	}

	release, ok := l.TryAcquire("p1")
	if !ok {
		t.Fatal("acquire should succeed")
	}
	if !l.Saturated("p1") {
		t.Fatal("provider at its limit should be saturated")
	}

	release()
	if l.Saturated("p1") {
		t.Fatal("released provider should not be saturated")
	}
}

func TestLimiter_Rebuild(t *testing.T) {
	l := New([]registry.Descriptor{
		{ID: "p1", ConcurrencyLimit: 1, Enabled: true},
	})
	l.TryAcquire("p1")

	l.Rebuild([]registry.Descriptor{
		{ID: "p1", ConcurrencyLimit: 1, Enabled: true},
		{ID: "p2", ConcurrencyLimit: 1, Enabled: true},
	})

	// Fresh semaphores after reload.
	if _, ok := l.TryAcquire("p1"); !ok {
		t.Fatal("rebuilt provider should have free slots")
	}
	if _, ok := l.TryAcquire("p2"); !ok {
		t.Fatal("new provider should have free slots")
	}

	// Unknown providers are unlimited.
	if _, ok := l.TryAcquire("gone"); !ok {
		t.Fatal("unknown provider should not be limited")
	}
}

func TestLimiter_ReleaseAfterRebuild(t *testing.T) {
	l := New([]registry.Descriptor{
		{ID: "p1", ConcurrencyLimit: 1, Enabled: true},
	})

	release, ok := l.TryAcquire("p1")
	if !ok {
		t.Fatal("acquire should succeed")
	}

	l.Rebuild([]registry.Descriptor{
		{ID: "p1", ConcurrencyLimit: 1, Enabled: true},
	})

	// The stale slot drains into the discarded semaphore.
	release()

	if _, ok := l.TryAcquire("p1"); !ok {
		t.Fatal("rebuilt provider should have a free slot")
	}
	if _, ok := l.TryAcquire("p1"); ok {
		t.Fatal("limit 1 should still hold after the stale release")
	}
}
