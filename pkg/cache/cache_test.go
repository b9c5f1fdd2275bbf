package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/silicakes/deluge-extensions-sub001/pkg/fs"
)

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManagerWithTTL(filepath.Join(t.TempDir(), "paths.db"), ttl)
	if err != nil {
		t.Fatalf("NewManagerWithTTL: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestRecordListingAndPaths(t *testing.T) {
	m := newTestManager(t, time.Hour)

	err := m.RecordListing("/SAMPLES", []fs.Entry{
		{Name: "kick.wav", Attr: fs.AttrArchive},
		{Name: "DRUMS", Attr: fs.AttrDirectory},
	})
	if err != nil {
		t.Fatalf("RecordListing: %v", err)
	}

	all, err := m.Paths("/SAMPLES", false, 0)
	if err != nil {
		t.Fatalf("Paths: %v", err)
	}
	if len(all) != 3 { // the directory itself plus both entries
		t.Fatalf("got %d paths, want 3: %v", len(all), all)
	}

	dirs, err := m.Paths("/SAMPLES", true, 0)
	if err != nil {
		t.Fatalf("Paths dirs: %v", err)
	}
	for _, p := range dirs {
		if p == "/SAMPLES/kick.wav" {
			t.Error("file returned from dirs-only query")
		}
	}

	none, err := m.Paths("/OTHER", false, 0)
	if err != nil {
		t.Fatalf("Paths prefix: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("prefix filter leaked: %v", none)
	}
}

func TestRecordListingUpserts(t *testing.T) {
	m := newTestManager(t, time.Hour)

	entry := []fs.Entry{{Name: "a.wav", Attr: fs.AttrArchive}}
	if err := m.RecordListing("/X", entry); err != nil {
		t.Fatalf("first RecordListing: %v", err)
	}
	if err := m.RecordListing("/X", entry); err != nil {
		t.Fatalf("second RecordListing: %v", err)
	}

	paths, err := m.Paths("/X", false, 0)
	if err != nil {
		t.Fatalf("Paths: %v", err)
	}
	if len(paths) != 2 {
		t.Errorf("duplicate rows after upsert: %v", paths)
	}
}

func TestForgetDropsSubtree(t *testing.T) {
	m := newTestManager(t, time.Hour)

	m.RecordListing("/A", []fs.Entry{{Name: "SUB", Attr: fs.AttrDirectory}})
	m.RecordListing("/A/SUB", []fs.Entry{{Name: "g1", Attr: fs.AttrArchive}})
	m.RecordListing("/B", []fs.Entry{{Name: "keep.wav", Attr: fs.AttrArchive}})

	if err := m.Forget("/A"); err != nil {
		t.Fatalf("Forget: %v", err)
	}

	gone, err := m.Paths("/A", false, 0)
	if err != nil {
		t.Fatalf("Paths: %v", err)
	}
	if len(gone) != 0 {
		t.Errorf("forgotten subtree still present: %v", gone)
	}

	kept, err := m.Paths("/B", false, 0)
	if err != nil {
		t.Fatalf("Paths: %v", err)
	}
	if len(kept) == 0 {
		t.Error("unrelated paths were forgotten")
	}
}

func TestPruneAndTTL(t *testing.T) {
	m := newTestManager(t, time.Millisecond)

	m.RecordListing("/OLD", []fs.Entry{{Name: "x.wav", Attr: fs.AttrArchive}})
	time.Sleep(5 * time.Millisecond)

	// Expired rows are invisible to queries even before pruning.
	stale, err := m.Paths("/OLD", false, 0)
	if err != nil {
		t.Fatalf("Paths: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("expired paths served: %v", stale)
	}

	if err := m.Prune(); err != nil {
		t.Fatalf("Prune: %v", err)
	}
}
