// Package identity matches face embeddings against an immutable gallery of
// known subjects.
package identity

import (
	"fmt"
	"sort"
	"time"

	"github.com/coder/hnsw"

	"github.com/BrandonDHaskell/busroll/internal/apperr"
)

const (
	// DefaultThreshold is the maximum accepted distance between unit
	// vectors for a probe to be considered a known subject.
	DefaultThreshold = 0.55

	// DefaultIndexMinEntries is the gallery size from which an HNSW graph
	// is built alongside the exact entries.
	DefaultIndexMinEntries = 2000

	// IndexCandidates is how many graph neighbours are re-ranked exactly.
	// On an indexed gallery the lowest-SubjectID tie-break only applies
	// among these candidates; more than IndexCandidates equidistant
	// entries may resolve to a different winner than a full scan.
	IndexCandidates = 32

	hnswMaxNeighbors = 16
)

// Entry is one known embedding.  A subject may have several entries, one
// per usable photo.
type Entry struct {
	SubjectID string
	Vector    []float32
}

// GalleryOptions controls construction of a Gallery.
type GalleryOptions struct {
	// IndexMinEntries enables the approximate index for galleries with at
	// least this many entries.  Zero uses DefaultIndexMinEntries; a
	// negative value disables the index.
	IndexMinEntries int
	BuiltAt         time.Time
}

// Gallery is an immutable snapshot of known embeddings.  Vectors are
// stored L2-normalized and ordered by SubjectID.
type Gallery struct {
	entries    []Entry
	dim        int
	builtAt    time.Time
	minEntries int // index threshold; <= 0 disables the graph
	graph      *hnsw.Graph[int]
}

// NewGallery validates and normalizes entries.  All vectors must share a
// dimension; the input slice is not retained.
func NewGallery(entries []Entry, opts GalleryOptions) (*Gallery, error) {
	g := &Gallery{
		entries: make([]Entry, 0, len(entries)),
		builtAt: opts.BuiltAt,
	}
	if g.builtAt.IsZero() {
		g.builtAt = time.Now().UTC()
	}

	for _, e := range entries {
		if e.SubjectID == "" {
			return nil, apperr.New(apperr.CodeInvalidInput, "gallery entry has empty subject_id")
		}
		if g.dim == 0 {
			g.dim = len(e.Vector)
		} else if len(e.Vector) != g.dim {
			return nil, apperr.New(apperr.CodeInvalidInput,
				fmt.Sprintf("gallery entry for %s has dimension %d, want %d", e.SubjectID, len(e.Vector), g.dim))
		}
		v, err := normalize(e.Vector)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInvalidInput, "gallery entry for "+e.SubjectID, err)
		}
		g.entries = append(g.entries, Entry{SubjectID: e.SubjectID, Vector: v})
	}

	sort.SliceStable(g.entries, func(i, j int) bool {
		return g.entries[i].SubjectID < g.entries[j].SubjectID
	})

	g.minEntries = opts.IndexMinEntries
	if g.minEntries == 0 {
		g.minEntries = DefaultIndexMinEntries
	}
	g.index()
	return g, nil
}

func (g *Gallery) index() {
	if g.minEntries > 0 && len(g.entries) >= g.minEntries {
		g.graph = buildGraph(g.entries)
	}
}

// Without returns a snapshot lacking every entry of the given subjects,
// keeping the build time and index threshold.  When none of them are
// present it returns g itself.  Vectors are shared with g.
func (g *Gallery) Without(subjectIDs ...string) *Gallery {
	if g == nil || len(subjectIDs) == 0 {
		return g
	}
	drop := make(map[string]bool, len(subjectIDs))
	for _, id := range subjectIDs {
		drop[id] = true
	}

	kept := make([]Entry, 0, len(g.entries))
	for _, e := range g.entries {
		if !drop[e.SubjectID] {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(g.entries) {
		return g
	}

	out := &Gallery{entries: kept, builtAt: g.builtAt, minEntries: g.minEntries}
	if len(kept) > 0 {
		out.dim = g.dim
	}
	out.index()
	return out
}

// buildGraph indexes entries by their position.  Cosine distance on unit
// vectors orders neighbours the same way Euclidean distance does.
func buildGraph(entries []Entry) *hnsw.Graph[int] {
	graph := hnsw.NewGraph[int]()
	graph.M = hnswMaxNeighbors
	graph.Ml = 1.0 / float64(hnswMaxNeighbors)
	graph.Distance = hnsw.CosineDistance

	for i, e := range entries {
		graph.Add(hnsw.MakeNode(i, e.Vector))
	}
	return graph
}

// Len returns the number of entries.  A nil gallery is empty.
func (g *Gallery) Len() int {
	if g == nil {
		return 0
	}
	return len(g.entries)
}

// Dim returns the vector dimension, or 0 for an empty gallery.
func (g *Gallery) Dim() int {
	if g == nil {
		return 0
	}
	return g.dim
}

func (g *Gallery) BuiltAt() time.Time {
	if g == nil {
		return time.Time{}
	}
	return g.builtAt
}

// Indexed reports whether matching goes through the approximate index.
func (g *Gallery) Indexed() bool {
	return g != nil && g.graph != nil
}

// Entries returns a copy of the normalized entries.
func (g *Gallery) Entries() []Entry {
	if g == nil {
		return nil
	}
	out := make([]Entry, len(g.entries))
	for i, e := range g.entries {
		v := make([]float32, len(e.Vector))
		copy(v, e.Vector)
		out[i] = Entry{SubjectID: e.SubjectID, Vector: v}
	}
	return out
}

// Subjects returns the distinct subject IDs in the gallery, sorted.
func (g *Gallery) Subjects() []string {
	if g == nil {
		return nil
	}
	var out []string
	for _, e := range g.entries {
		if n := len(out); n == 0 || out[n-1] != e.SubjectID {
			out = append(out, e.SubjectID)
		}
	}
	return out
}

// candidates returns the entry positions to score for probe.
func (g *Gallery) candidates(probe []float32) []int {
	if g.graph == nil {
		return nil
	}
	nodes := g.graph.Search(probe, IndexCandidates)
	out := make([]int, len(nodes))
	for i, n := range nodes {
		out[i] = n.Key
	}
	return out
}
