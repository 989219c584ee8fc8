package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

func TestParseMode(t *testing.T) {
	for _, in := range []string{"Text", "Image"} {
		if m, ok := ParseMode(in); !ok || string(m) != in {
			t.Errorf("ParseMode(%q) = %q, %v", in, m, ok)
		}
	}
	for _, in := range []string{"", "text", "Video"} {
		if _, ok := ParseMode(in); ok {
			t.Errorf("ParseMode(%q) must fail", in)
		}
	}
}

func TestStoreGet(t *testing.T) {
	st := NewStore()

	s, created := st.Get("")
	if !created || s.ID == "" || s.Mode != ModeText {
		t.Fatalf("new session: created=%v %+v", created, s)
	}
	again, created := st.Get(s.ID)
	if created || again != s {
		t.Fatal("existing id must return the same session")
	}
	other, created := st.Get("forged-id")
	if !created || other.ID == "forged-id" {
		t.Fatal("unknown id must produce a fresh session with a server generated id")
	}
	if st.Len() != 2 {
		t.Fatalf("Len() = %d", st.Len())
	}
}

func TestStoreSweep(t *testing.T) {
	st := NewStore()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	old, _ := st.Get("")
	now = now.Add(30 * time.Minute)
	fresh, _ := st.Get("")
	now = now.Add(45 * time.Minute)

	if removed := st.Sweep(time.Hour); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, created := st.Get(fresh.ID); created {
		t.Fatal("fresh session must survive")
	}
	if s, created := st.Get(old.ID); !created || s.ID == old.ID {
		t.Fatal("old session must be gone")
	}
	if st.Sweep(0) != 0 {
		t.Fatal("zero ttl must not sweep")
	}
}

func TestSnapshotTakesErrors(t *testing.T) {
	s := &Session{Mode: ModeImage, Prompt: "p"}
	s.AddError("Error generating text: boom")

	s.Lock()
	snap := s.Snapshot()
	s.Unlock()

	want := Snapshot{Mode: ModeImage, Prompt: "p", Errors: []string{"Error generating text: boom"}}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if len(s.Errors) != 0 {
		t.Fatal("errors must be shown once")
	}
}

func TestRunSweeperStops(t *testing.T) {
	st := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- st.RunSweeper(ctx, time.Hour, time.Millisecond, zap.NewNop().Sugar()) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunSweeper: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
