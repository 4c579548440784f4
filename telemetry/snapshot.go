package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/multierr"

	"github.com/pthm-cable/canopy/components"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds a complete grid state for resuming or inspecting a run.
type Snapshot struct {
	Version int   `json:"version"`
	Seed    int64 `json:"seed"`

	Width  int `json:"width"`
	Height int `json:"height"`

	Step int     `json:"step"`
	Time float64 `json:"time"`

	// Cells are keyed by "x,y" in the same record format as input files.
	Cells map[string]components.CellRecord `json:"cells"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// NewSnapshot captures the given cells.
func NewSnapshot(seed int64, width, height, step int, simTime float64, positions []components.GridPos, states []components.PlantState) *Snapshot {
	cells := make(map[string]components.CellRecord, len(states))
	for i := range states {
		cells[positions[i].String()] = components.RecordOf(states[i])
	}
	return &Snapshot{
		Version: SnapshotVersion,
		Seed:    seed,
		Width:   width,
		Height:  height,
		Step:    step,
		Time:    simTime,
		Cells:   cells,
	}
}

// States decodes the snapshot cells, reporting every invalid cell.
func (s *Snapshot) States() (map[components.GridPos]components.PlantState, error) {
	keys := make([]string, 0, len(s.Cells))
	for k := range s.Cells {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[components.GridPos]components.PlantState, len(keys))
	var errs error
	for _, k := range keys {
		pos, err := components.ParseGridPos(k)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		st, err := s.Cells[k].State()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cell %s: %w", k, err))
			continue
		}
		out[pos] = st
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Step)
	if snapshot.Bookmark != nil {
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Step, snapshot.Bookmark.Type)
	}
	path := filepath.Join(dir, name+".json")

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}

	return &snapshot, nil
}
