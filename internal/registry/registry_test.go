package registry

import (
	"sync"
	"testing"
)

func desc(id string, enabled bool) Descriptor {
	return Descriptor{ID: id, Name: id, Type: "openai", Enabled: enabled}
}

func TestRegistry_SnapshotFiltersDisabled(t *testing.T) {
	r := New([]Descriptor{
		desc("p1", true),
		desc("p2", false),
		desc("p3", true),
	})

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 enabled providers, got %d", len(snap))
	}
	if snap[0].ID != "p1" || snap[1].ID != "p3" {
		t.Errorf("expected ordered [p1 p3], got %v", r.IDs())
	}
}

func TestRegistry_DuplicateIDsKeepFirst(t *testing.T) {
	r := New([]Descriptor{
		{ID: "p1", Name: "first", Enabled: true},
		{ID: "p1", Name: "second", Enabled: true},
	})

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(snap))
	}
	if snap[0].Name != "first" {
		t.Errorf("expected first occurrence kept, got %q", snap[0].Name)
	}
}

func TestRegistry_ReloadBumpsVersion(t *testing.T) {
	r := New([]Descriptor{desc("p1", true)})
	v1 := r.Version()

	r.Reload([]Descriptor{desc("p2", true)})

	if r.Version() <= v1 {
		t.Errorf("expected version to advance, got %d -> %d", v1, r.Version())
	}
	if ids := r.IDs(); len(ids) != 1 || ids[0] != "p2" {
		t.Errorf("expected [p2], got %v", ids)
	}
}

func TestRegistry_ConcurrentReadersSeeConsistentSnapshot(t *testing.T) {
	r := New([]Descriptor{desc("a1", true), desc("a2", true)})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if i%2 == 0 {
				r.Reload([]Descriptor{desc("a1", true), desc("a2", true)})
			} else {
				r.Reload([]Descriptor{desc("b1", true), desc("b2", true)})
			}
		}
		close(stop)
	}()

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := r.Snapshot()
				if len(snap) != 2 {
					t.Errorf("torn snapshot: %d entries", len(snap))
					return
				}
				prefix := snap[0].ID[:1]
				if snap[1].ID[:1] != prefix {
					t.Errorf("mixed snapshot: %s and %s", snap[0].ID, snap[1].ID)
					return
				}
			}
		}()
	}

	wg.Wait()
}
