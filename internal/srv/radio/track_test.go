package radio

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadTracksFromDirFiltersEntries(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"a.mp3", "b.OGG", "notes.txt", "cover.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.mp3"), 0o755); err != nil {
		t.Fatal(err)
	}

	tracks, err := LoadTracksFromDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 2 {
		t.Fatalf("scanned %d tracks, want 2", len(tracks))
	}
	found := map[string]bool{}
	for _, track := range tracks {
		found[filepath.Base(track.Location)] = true
	}
	if !found["a.mp3"] || !found["b.OGG"] {
		t.Fatalf("scanned unexpected set: %v", found)
	}
}

func TestLoadTracksFromDirMissingDirErrors(t *testing.T) {
	if _, err := LoadTracksFromDir(filepath.Join(t.TempDir(), "gone")); err == nil {
		t.Fatal("missing playlist directory did not error")
	}
}

func TestTrackTitleFallsBackToFilename(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "morning show.mp3"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tracks, err := LoadTracksFromDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 {
		t.Fatalf("scanned %d tracks, want 1", len(tracks))
	}
	if tracks[0].Title != "morning show" {
		t.Fatalf("title = %q, want filename without extension", tracks[0].Title)
	}
}

func TestTrackOrderingByModTime(t *testing.T) {
	older := Track{Modified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := Track{Modified: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}

	if !older.Before(newer) {
		t.Fatal("older.Before(newer) = false")
	}
	if newer.Before(older) {
		t.Fatal("newer.Before(older) = true")
	}
	if !older.Same(Track{Modified: older.Modified}) {
		t.Fatal("identical timestamps not Same")
	}
	if older.Same(newer) {
		t.Fatal("distinct timestamps reported Same")
	}
}
