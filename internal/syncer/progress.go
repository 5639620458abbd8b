package syncer

import (
	"sync"

	"github.com/Leejhua/concert-calendar/internal/source"
)

// tracker folds per-source progress into a single weighted percentage.
// Both the per-source values and the overall value are monotonic, and the
// overall value reaches 100 only once every source has finished.
type tracker struct {
	mu      sync.Mutex
	weights []float64
	pcts    []int
	overall int
	report  func(msg string, overall int)
}

func newTracker(srcs []source.Source, report func(msg string, overall int)) *tracker {
	weights := make([]float64, len(srcs))
	sum := 0.0
	for i, src := range srcs {
		weights[i] = src.Weight()
		sum += weights[i]
	}
	if sum <= 0 {
		sum = float64(len(srcs))
		for i := range weights {
			weights[i] = 1
		}
	}
	for i := range weights {
		weights[i] /= sum
	}
	return &tracker{
		weights: weights,
		pcts:    make([]int, len(srcs)),
		report:  report,
	}
}

func (t *tracker) update(i int, msg string, pct int) {
	t.mu.Lock()
	if pct > 100 {
		pct = 100
	}
	if pct > t.pcts[i] {
		t.pcts[i] = pct
	}

	done := true
	weighted := 0.0
	for j := range t.pcts {
		weighted += t.weights[j] * float64(t.pcts[j])
		if t.pcts[j] < 100 {
			done = false
		}
	}
	overall := int(weighted + 0.5)
	if done {
		overall = 100
	} else if overall > 99 {
		overall = 99
	}
	if overall > t.overall {
		t.overall = overall
	}
	// Reporting under the lock keeps deliveries ordered: a later, higher
	// overall can never reach the status store before an earlier one.
	t.report(msg, t.overall)
	t.mu.Unlock()
}

// complete pins a source to 100%, whether it succeeded or failed, so a dead
// source cannot hold the overall percentage down forever.
func (t *tracker) complete(i int, name string) {
	t.update(i, "["+name+"] done", 100)
}
