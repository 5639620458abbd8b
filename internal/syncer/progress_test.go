package syncer

import (
	"testing"

	"github.com/Leejhua/concert-calendar/internal/source"
)

func trackerSources(weights ...float64) []source.Source {
	srcs := make([]source.Source, len(weights))
	for i, w := range weights {
		srcs[i] = &fakeSource{name: "s", weight: w}
	}
	return srcs
}

func TestTrackerWeightedAggregate(t *testing.T) {
	var last int
	tr := newTracker(trackerSources(0.6, 0.25, 0.15), func(_ string, overall int) { last = overall })

	tr.update(0, "", 50) // 0.6*50 = 30
	if last != 30 {
		t.Errorf("overall = %d, want 30", last)
	}
	tr.update(1, "", 100) // +0.25*100 = 55
	if last != 55 {
		t.Errorf("overall = %d, want 55", last)
	}
	tr.update(2, "", 100) // 30+25+15 = 70
	if last != 70 {
		t.Errorf("overall = %d, want 70", last)
	}
}

func TestTrackerMonotonic(t *testing.T) {
	var reported []int
	tr := newTracker(trackerSources(0.5, 0.5), func(_ string, overall int) { reported = append(reported, overall) })

	tr.update(0, "", 80)
	tr.update(0, "", 40) // regression must be ignored
	tr.update(1, "", 20)
	for i := 1; i < len(reported); i++ {
		if reported[i] < reported[i-1] {
			t.Fatalf("overall regressed: %v", reported)
		}
	}
	if last := reported[len(reported)-1]; last != 50 {
		t.Errorf("overall = %d, want 50", last)
	}
}

func TestTrackerReaches100OnlyWhenAllComplete(t *testing.T) {
	var last int
	tr := newTracker(trackerSources(0.6, 0.25, 0.15), func(_ string, overall int) { last = overall })

	tr.update(0, "", 100)
	tr.update(1, "", 100)
	if last >= 100 {
		t.Fatalf("overall = %d before all sources finished", last)
	}
	tr.complete(2, "global")
	if last != 100 {
		t.Errorf("overall = %d after all complete, want 100", last)
	}
}

func TestTrackerFailedSourcePinnedTo100(t *testing.T) {
	var last int
	tr := newTracker(trackerSources(0.5, 0.5), func(_ string, overall int) { last = overall })

	tr.update(0, "", 100)
	tr.complete(1, "tking") // failed source, never got past 0
	if last != 100 {
		t.Errorf("overall = %d, a dead source must not hold progress down", last)
	}
}

func TestTrackerNormalizesOddWeights(t *testing.T) {
	var last int
	tr := newTracker(trackerSources(2, 2), func(_ string, overall int) { last = overall })
	tr.update(0, "", 100)
	if last != 50 {
		t.Errorf("overall = %d, want 50 with equal weights", last)
	}
}
