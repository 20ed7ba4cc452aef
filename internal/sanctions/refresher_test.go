package sanctions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trading-buddy/internal/state"
)

func TestRefreshStaticEntries(t *testing.T) {
	st := state.New(state.Options{})
	r := New(Options{Static: []string{"SuspiciousEntity", "John Doe"}}, st, zerolog.Nop())

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if st.SanctionsSize() != 2 {
		t.Fatalf("expected 2 entries, got %d", st.SanctionsSize())
	}
	if m := st.MatchSanctions("john doe"); !m.Hit {
		t.Fatal("static entry should match case-insensitively")
	}
}

func TestRefreshMergesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sanctions.txt")
	content := "# comment line\nAcme Imports\n\n  GlobalTrade Ltd  \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write list: %v", err)
	}

	st := state.New(state.Options{})
	r := New(Options{Static: []string{"SuspiciousEntity"}, FilePath: path}, st, zerolog.Nop())

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if st.SanctionsSize() != 3 {
		t.Fatalf("comments and blanks should be skipped, expected 3 entries, got %d", st.SanctionsSize())
	}
	if m := st.MatchSanctions("GlobalTrade Ltd"); !m.Hit {
		t.Fatal("file entry should match")
	}
}

func TestRefreshFileErrorKeepsPreviousSet(t *testing.T) {
	st := state.New(state.Options{})
	r := New(Options{Static: []string{"SuspiciousEntity"}}, st, zerolog.Nop())
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	broken := New(Options{Static: []string{"Other"}, FilePath: filepath.Join(t.TempDir(), "missing.txt")}, st, zerolog.Nop())
	if err := broken.Refresh(context.Background()); err == nil {
		t.Fatal("missing file should error")
	}
	if m := st.MatchSanctions("SuspiciousEntity"); !m.Hit {
		t.Fatal("failed refresh must keep the previous set active")
	}
}

func TestRunRefreshesPeriodically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sanctions.txt")
	if err := os.WriteFile(path, []byte("First Entity\n"), 0o644); err != nil {
		t.Fatalf("write list: %v", err)
	}

	st := state.New(state.Options{})
	r := New(Options{FilePath: path, Interval: 10 * time.Millisecond}, st, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for st.SanctionsSize() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("initial load never happened")
		}
		time.Sleep(time.Millisecond)
	}

	if err := os.WriteFile(path, []byte("First Entity\nSecond Entity\n"), 0o644); err != nil {
		t.Fatalf("rewrite list: %v", err)
	}
	for st.SanctionsSize() != 2 {
		if time.Now().After(deadline) {
			t.Fatal("updated file never picked up")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run should return ctx error, got %v", err)
	}
}
