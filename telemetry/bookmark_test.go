package telemetry

import (
	"testing"
)

func hasBookmark(bookmarks []Bookmark, typ BookmarkType) bool {
	for _, bm := range bookmarks {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_Extinction(t *testing.T) {
	bd := NewBookmarkDetector(100, 10)

	if got := bd.Check(StepStats{Step: 10, Occupied: 20, Locust: 10, Oak: 10}); len(got) != 0 {
		t.Fatalf("unexpected bookmarks %v", got)
	}

	// Pine was never seen, so only oak goes extinct.
	got := bd.Check(StepStats{Step: 20, Occupied: 18, Locust: 18})
	if len(got) != 1 || got[0].Type != BookmarkExtinction {
		t.Fatalf("bookmarks = %v, want one extinction", got)
	}

	// Already reported.
	if got := bd.Check(StepStats{Step: 30, Occupied: 18, Locust: 18}); hasBookmark(got, BookmarkExtinction) {
		t.Error("extinction reported twice")
	}
}

func TestBookmarkDetector_ExtinctionOncePerSpecies(t *testing.T) {
	bd := NewBookmarkDetector(100, 10)

	sequence := []struct {
		stats StepStats
		want  bool
	}{
		{StepStats{Step: 10, Occupied: 20, Locust: 10, Oak: 10}, false},
		{StepStats{Step: 20, Occupied: 10, Locust: 10}, true},          // oak dies out
		{StepStats{Step: 30, Occupied: 15, Locust: 10, Oak: 5}, false}, // oak reseeded
		{StepStats{Step: 40, Occupied: 10, Locust: 10}, false},         // and lost again
	}
	for _, s := range sequence {
		if got := hasBookmark(bd.Check(s.stats), BookmarkExtinction); got != s.want {
			t.Errorf("step %d: extinction = %v, want %v", s.stats.Step, got, s.want)
		}
	}
}

func TestBookmarkDetector_CanopyClosed(t *testing.T) {
	bd := NewBookmarkDetector(100, 10)

	if hasBookmark(bd.Check(StepStats{Step: 10, Occupied: 50, Locust: 50}), BookmarkCanopyClosed) {
		t.Error("half-occupied grid is not closed")
	}
	if !hasBookmark(bd.Check(StepStats{Step: 20, Occupied: 95, Locust: 95}), BookmarkCanopyClosed) {
		t.Error("expected canopy_closed bookmark")
	}
	if hasBookmark(bd.Check(StepStats{Step: 30, Occupied: 99, Locust: 99}), BookmarkCanopyClosed) {
		t.Error("canopy_closed should trigger once")
	}
}

func TestBookmarkDetector_Dieback(t *testing.T) {
	bd := NewBookmarkDetector(1000, 10)

	for i := 1; i <= 3; i++ {
		bd.Check(StepStats{Step: i * 10, Occupied: 100, Pine: 100})
	}

	if !hasBookmark(bd.Check(StepStats{Step: 40, Occupied: 50, Pine: 50}), BookmarkDieback) {
		t.Error("expected dieback bookmark")
	}
}

func TestBookmarkDetector_StableCanopy(t *testing.T) {
	bd := NewBookmarkDetector(1000, 10)

	// Stable history fills after 4 windows; the count reaches 5 on window 8.
	triggered := -1
	for i := 0; i < 12; i++ {
		if hasBookmark(bd.Check(StepStats{Step: i * 10, Occupied: 200, Oak: 200}), BookmarkStableCanopy) {
			if triggered >= 0 {
				t.Fatal("stable_canopy should trigger once")
			}
			triggered = i
		}
	}
	if triggered != 7 {
		t.Errorf("stable_canopy triggered at window %d, want 7", triggered)
	}
}
