package cache

import (
	"context"
	"testing"
	"time"

	"github.com/draftforge/genroute/internal/domain"
)

func TestKeyIsStableAndSensitive(t *testing.T) {
	base := domain.GenerateRequest{Subject: "tidal energy", Style: "technical", MaxTokens: 512}
	temp := 0.7

	if Key(base) != Key(base) {
		t.Error("identical requests must share a key")
	}

	variants := []domain.GenerateRequest{
		{Subject: "solar energy", Style: "technical", MaxTokens: 512},
		{Subject: "tidal energy", Style: "casual", MaxTokens: 512},
		{Subject: "tidal energy", Style: "technical", MaxTokens: 256},
		{Subject: "tidal energy", Style: "technical", MaxTokens: 512, Temperature: &temp},
	}
	for i, v := range variants {
		if Key(v) == Key(base) {
			t.Errorf("variant %d should produce a different key", i)
		}
	}
}

func TestInMemoryGetSet(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()
	key := Key(domain.GenerateRequest{Subject: "x"})

	if _, ok := c.Get(ctx, key); ok {
		t.Error("expected miss on empty cache")
	}

	want := &domain.GenerateResult{Title: "X", Body: "body", Provider: "p1"}
	if err := c.Set(ctx, key, want, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, ok := c.Get(ctx, key)
	if !ok {
		t.Fatal("expected hit after set")
	}
	if got.Body != want.Body || got.Provider != want.Provider {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestInMemoryExpiry(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()
	key := Key(domain.GenerateRequest{Subject: "x"})

	c.Set(ctx, key, &domain.GenerateResult{Body: "stale"}, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get(ctx, key); ok {
		t.Error("expected miss after TTL expiry")
	}
}
