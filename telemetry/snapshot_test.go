package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/canopy/components"
)

func TestSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()

	positions := []components.GridPos{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}}
	states := []components.PlantState{
		plant(components.SpeciesNone, 0, 1),
		plant(components.SpeciesLocust, 3, 2),
		plant(components.SpeciesPine, 0, 3),
		plant(components.SpeciesOak, 40, 4),
	}
	snapshot := NewSnapshot(42, 2, 2, 120, 120.0, positions, states)
	snapshot.Bookmark = &Bookmark{Type: BookmarkDieback, Step: 120, Time: 120}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("Snapshot file not created at %s", path)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded.Seed != 42 || loaded.Step != 120 || loaded.Width != 2 || loaded.Height != 2 {
		t.Errorf("header mismatch: %+v", loaded)
	}
	if loaded.Bookmark == nil || loaded.Bookmark.Type != BookmarkDieback {
		t.Errorf("bookmark = %+v", loaded.Bookmark)
	}

	cells, err := loaded.States()
	if err != nil {
		t.Fatalf("States failed: %v", err)
	}
	if len(cells) != len(states) {
		t.Fatalf("got %d cells, want %d", len(cells), len(states))
	}
	for i, pos := range positions {
		if cells[pos] != states[i] {
			t.Errorf("cell %s = %v, want %v", pos, cells[pos], states[i])
		}
	}
}

func TestSnapshotFilename(t *testing.T) {
	tmpDir := t.TempDir()

	withBookmark := &Snapshot{
		Version:  SnapshotVersion,
		Step:     500,
		Bookmark: &Bookmark{Type: BookmarkCanopyClosed, Step: 500},
	}
	path, err := SaveSnapshot(withBookmark, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if want := filepath.Join(tmpDir, "snapshot_500_canopy_closed.json"); path != want {
		t.Errorf("Path mismatch: got %s, want %s", path, want)
	}

	path, err = SaveSnapshot(&Snapshot{Version: SnapshotVersion, Step: 300}, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if want := filepath.Join(tmpDir, "snapshot_300.json"); path != want {
		t.Errorf("Path mismatch: got %s, want %s", path, want)
	}
}

func TestLoadSnapshotRejectsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.json")
	if err := os.WriteFile(path, []byte(`{"version": 99}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(path); err == nil || !strings.Contains(err.Error(), "version") {
		t.Errorf("expected version error, got %v", err)
	}
}

func TestSnapshotStatesReportsBadCells(t *testing.T) {
	species := "maple"
	s := &Snapshot{
		Version: SnapshotVersion,
		Cells: map[string]components.CellRecord{
			"nope": components.RecordOf(plant(components.SpeciesNone, 0, 1)),
			"2,3":  {Species: &species},
			"0,0":  components.RecordOf(plant(components.SpeciesOak, 1, 1)),
		},
	}
	_, err := s.States()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "nope") || !strings.Contains(err.Error(), "cell 2,3") {
		t.Errorf("error should name both bad cells: %v", err)
	}
}
