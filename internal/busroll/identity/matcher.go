package identity

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/BrandonDHaskell/busroll/internal/apperr"
)

// Result is the outcome of matching one probe.  Distance is set whenever
// the gallery was non-empty, including for unknown results.
type Result struct {
	Known     bool
	SubjectID string
	Distance  float64
}

// Match finds the gallery subject nearest to probe.  The nearest entry is
// accepted when its distance is at most threshold; equidistant entries
// resolve to the lexically lowest subject ID.  An empty gallery yields an
// unknown result.
func Match(probe []float32, g *Gallery, threshold float64) (Result, error) {
	if math.IsNaN(threshold) || threshold < 0 {
		return Result{}, apperr.New(apperr.CodeInvalidInput, "threshold must be a non-negative number")
	}
	p, err := normalize(probe)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.CodeInvalidInput, "probe", err)
	}
	if g.Len() == 0 {
		return Result{}, nil
	}
	if len(p) != g.dim {
		return Result{}, apperr.New(apperr.CodeInvalidInput,
			fmt.Sprintf("probe has dimension %d, gallery has %d", len(p), g.dim))
	}

	best := -1
	bestDist := math.Inf(1)
	consider := func(i int) {
		d := euclidean(p, g.entries[i].Vector)
		if best < 0 || d < bestDist || (d == bestDist && g.entries[i].SubjectID < g.entries[best].SubjectID) {
			best, bestDist = i, d
		}
	}

	if idx := g.candidates(p); idx != nil {
		for _, i := range idx {
			consider(i)
		}
	} else {
		for i := range g.entries {
			consider(i)
		}
	}
	if best < 0 {
		return Result{}, nil
	}

	res := Result{Distance: bestDist}
	if bestDist <= threshold {
		res.Known = true
		res.SubjectID = g.entries[best].SubjectID
	}
	return res, nil
}

// Matcher serves matches against the current gallery snapshot.  Snapshots
// are swapped atomically; each Match call sees exactly one of them.
type Matcher struct {
	threshold float64
	current   atomic.Pointer[Gallery]
}

// NewMatcher returns a Matcher with an empty gallery.  A zero threshold
// selects DefaultThreshold.
func NewMatcher(threshold float64) *Matcher {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

func (m *Matcher) Threshold() float64 { return m.threshold }

// Swap installs g and returns the previous snapshot.
func (m *Matcher) Swap(g *Gallery) *Gallery {
	return m.current.Swap(g)
}

// Remove installs a snapshot without subjectID, reporting whether the
// subject was present.  It retries if another Swap races with it.
func (m *Matcher) Remove(subjectID string) bool {
	for {
		cur := m.current.Load()
		next := cur.Without(subjectID)
		if next == cur {
			return false
		}
		if m.current.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// Current returns the installed snapshot, which may be nil.
func (m *Matcher) Current() *Gallery {
	return m.current.Load()
}

func (m *Matcher) Match(probe []float32) (Result, error) {
	return Match(probe, m.current.Load(), m.threshold)
}
