package notifications

import (
	"testing"
	"time"
)

func TestBreakerListenerNotifies(t *testing.T) {
	mem := NewInMemoryNotifier()
	l := NewBreakerListener(mem)

	l.ProviderDown("openai-primary", 30*time.Second)
	l.ProviderUp("openai-primary")

	// Sends are asynchronous.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(mem.Notifications()) == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	got := mem.Notifications()
	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}

	types := map[NotificationType]bool{}
	for _, n := range got {
		types[n.Type] = true
		if n.Provider != "openai-primary" {
			t.Errorf("unexpected provider %q", n.Provider)
		}
	}
	if !types[NotificationProviderDown] || !types[NotificationProviderUp] {
		t.Errorf("expected both down and up notifications, got %v", got)
	}
}
