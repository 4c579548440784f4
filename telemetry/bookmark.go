package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkExtinction   BookmarkType = "extinction"
	BookmarkCanopyClosed BookmarkType = "canopy_closed"
	BookmarkDieback      BookmarkType = "dieback"
	BookmarkStableCanopy BookmarkType = "stable_canopy"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `json:"type"`
	Step        int          `json:"step"`
	Time        float64      `json:"time"`
	Description string       `json:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"step", b.Step,
		"time", b.Time,
		"description", b.Description,
	)
}

// BookmarkDetector watches flushed stats for notable population changes.
type BookmarkDetector struct {
	cells int // Grid size, for occupancy fractions

	// Rolling history (circular buffer)
	history     []StepStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	seen              [3]bool // Species observed alive: locust, pine, oak
	extinct           [3]bool // Reported; a revival does not re-arm
	canopyClosed      bool
	recentPeak        int // Peak occupied count since the last dieback
	stableWindowCount int
}

// NewBookmarkDetector creates a detector for a grid of cells with the given
// history size.
func NewBookmarkDetector(cells, historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for stable canopy detection
	}
	return &BookmarkDetector{
		cells:       cells,
		history:     make([]StepStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats StepStats) []Bookmark {
	var bookmarks []Bookmark

	bookmarks = append(bookmarks, bd.checkExtinctions(stats)...)

	if b := bd.checkCanopyClosed(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkDieback(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(stats)

	if b := bd.checkStableCanopy(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	if stats.Occupied > bd.recentPeak {
		bd.recentPeak = stats.Occupied
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats StepStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// recent returns the last n history entries in insertion order.
func (bd *BookmarkDetector) recent(n int) []StepStats {
	count := bd.historyIdx
	if bd.historyFull {
		count = bd.historySize
	}
	if count < n {
		return nil
	}
	out := make([]StepStats, n)
	for k := 0; k < n; k++ {
		idx := (bd.historyIdx - n + k + bd.historySize) % bd.historySize
		out[k] = bd.history[idx]
	}
	return out
}

func (bd *BookmarkDetector) checkExtinctions(stats StepStats) []Bookmark {
	var bookmarks []Bookmark
	counts := [3]int{stats.Locust, stats.Pine, stats.Oak}
	names := [3]string{"locust", "pine", "oak"}
	for k, c := range counts {
		if c > 0 {
			bd.seen[k] = true
			continue
		}
		if bd.seen[k] && !bd.extinct[k] {
			bd.extinct[k] = true
			bookmarks = append(bookmarks, Bookmark{
				Type:        BookmarkExtinction,
				Step:        stats.Step,
				Time:        stats.Time,
				Description: fmt.Sprintf("%s has no living cells", names[k]),
			})
		}
	}
	return bookmarks
}

func (bd *BookmarkDetector) checkCanopyClosed(stats StepStats) *Bookmark {
	if bd.canopyClosed || bd.cells == 0 {
		return nil
	}
	frac := float64(stats.Occupied) / float64(bd.cells)
	if frac < 0.9 {
		return nil
	}
	bd.canopyClosed = true
	return &Bookmark{
		Type:        BookmarkCanopyClosed,
		Step:        stats.Step,
		Time:        stats.Time,
		Description: fmt.Sprintf("%.0f%% of cells occupied", frac*100),
	}
}

func (bd *BookmarkDetector) checkDieback(stats StepStats) *Bookmark {
	if bd.recentPeak == 0 {
		return nil
	}

	drop := 1.0 - float64(stats.Occupied)/float64(bd.recentPeak)
	if drop > 0.30 && stats.Occupied < bd.recentPeak-10 {
		// Reset peak after dieback
		oldPeak := bd.recentPeak
		bd.recentPeak = stats.Occupied

		return &Bookmark{
			Type:        BookmarkDieback,
			Step:        stats.Step,
			Time:        stats.Time,
			Description: fmt.Sprintf("Occupied cells fell %.0f%% from peak %d to %d", drop*100, oldPeak, stats.Occupied),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkStableCanopy(stats StepStats) *Bookmark {
	if stats.Occupied < 10 {
		bd.stableWindowCount = 0
		return nil
	}

	window := bd.recent(4)
	if window == nil {
		return nil
	}

	var sum float64
	for _, h := range window {
		sum += float64(h.Occupied)
	}
	mean := sum / 4

	var variance float64
	for _, h := range window {
		d := float64(h.Occupied) - mean
		variance += d * d
	}
	variance /= 4

	// CV^2 < 0.0025 means CV < 5%
	if mean > 0 && variance/(mean*mean) < 0.0025 {
		bd.stableWindowCount++
	} else {
		bd.stableWindowCount = 0
	}

	if bd.stableWindowCount == 5 { // trigger exactly once at 5 windows
		return &Bookmark{
			Type:        BookmarkStableCanopy,
			Step:        stats.Step,
			Time:        stats.Time,
			Description: fmt.Sprintf("Occupancy steady near %d cells over 5+ windows", stats.Occupied),
		}
	}
	return nil
}
