// Package relation builds the relatedness graph that scopes which market
// pairs are compared for combinatorial opportunities.
package relation

import (
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// DefaultThreshold is the title similarity a pair must exceed to be related.
const DefaultThreshold = 0.6

// Adjacency maps a market index to the indices of its related markets.
// Neighbor lists are ascending and the relation is symmetric.
type Adjacency map[int][]int

// Neighbors returns the related market indices of i.
func (a Adjacency) Neighbors(i int) []int { return a[i] }

// EdgeCount returns the number of unordered edges.
func (a Adjacency) EdgeCount() int {
	n := 0
	for _, ns := range a {
		n += len(ns)
	}
	return n / 2
}

// Edge is one unordered related pair, I < J.
type Edge struct {
	I, J       int
	Similarity float64
}

// Graph is the output of one build.
type Graph struct {
	Adjacency Adjacency
	Edges     []Edge
}

// Grapher decides relatedness between markets.
type Grapher struct {
	threshold float64
	logger    *slog.Logger
}

// NewGrapher creates a Grapher. A non-positive threshold selects
// DefaultThreshold.
func NewGrapher(threshold float64, logger *slog.Logger) *Grapher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Grapher{
		threshold: threshold,
		logger:    logger.With(slog.String("component", "relation_grapher")),
	}
}

// Similarity is the Damerau-Levenshtein distance between a and b normalized
// to [0,1], where 1 means identical.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	dist := edlib.DamerauLevenshteinDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// Related reports whether two markets are worth comparing, with the title
// similarity that decided it. Markets must share an end date and a tag.
func (g *Grapher) Related(a, b *domain.Market) (float64, bool) {
	if a.ID == b.ID || !a.EndDate.Equal(b.EndDate) {
		return 0, false
	}
	if !sharesTag(a.Tags, b.Tags) {
		return 0, false
	}
	sim := Similarity(a.Title, b.Title)
	return sim, sim > g.threshold
}

// Build compares every unordered pair of markets. It runs once per ingestion
// cycle; the cost is quadratic in the number of markets.
func (g *Grapher) Build(markets []domain.Market) Graph {
	start := time.Now()
	graph := Graph{Adjacency: make(Adjacency)}

	for i := 0; i < len(markets); i++ {
		for j := i + 1; j < len(markets); j++ {
			sim, ok := g.Related(&markets[i], &markets[j])
			if !ok {
				continue
			}
			graph.Adjacency[i] = append(graph.Adjacency[i], j)
			graph.Adjacency[j] = append(graph.Adjacency[j], i)
			graph.Edges = append(graph.Edges, Edge{I: i, J: j, Similarity: sim})
		}
	}

	g.logger.Info("relatedness graph built",
		slog.Int("markets", len(markets)),
		slog.Int("edges", len(graph.Edges)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return graph
}

func sharesTag(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	for _, t := range b {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}
