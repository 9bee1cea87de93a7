package app

import (
	"context"
	"testing"
	"time"

	"github.com/lngsa1234/avari-socketio-backend/internal/domain"
)

func TestReaperPurgesGhostMatches(t *testing.T) {
	reg := NewRegistry()
	reg.mu.Lock()
	reg.matches["ghost"] = &matchState{meta: domain.NewMatch("ghost", time.Now().Add(-time.Hour))}
	reg.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go RunReaper(ctx, reg, 10*time.Millisecond, 30*time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, matches := reg.Counts(); matches == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("reaper never purged the ghost match")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
