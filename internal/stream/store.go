// Package stream owns the shared market table and applies live price ticks
// to it, re-deriving opportunities for the touched market and its neighbors.
package stream

import (
	"fmt"
	"sync"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/relation"
)

// assetRef locates a condition in the market table.
type assetRef struct {
	market    int
	condition int
}

// Store is the market table plus the read-only indexes built over it. The
// asset index and adjacency never change after NewStore; condition prices
// change only through Pipeline.Apply under the write lock.
type Store struct {
	mu      sync.RWMutex
	markets []domain.Market

	assets    map[string]assetRef
	byID      map[string]int
	adjacency relation.Adjacency
	assetIDs  []string

	duplicateAssets int
}

// NewStore takes ownership of markets and builds the asset and id indexes.
// When two conditions share an asset id the first one keeps it.
func NewStore(markets []domain.Market, adjacency relation.Adjacency) (*Store, error) {
	if len(markets) == 0 {
		return nil, domain.ErrEmptyCatalog
	}
	s := &Store{
		markets:   markets,
		assets:    make(map[string]assetRef),
		byID:      make(map[string]int, len(markets)),
		adjacency: adjacency,
	}
	for mi := range markets {
		m := &markets[mi]
		if _, dup := s.byID[m.ID]; dup {
			return nil, fmt.Errorf("stream: duplicate market id %q: %w", m.ID, domain.ErrCorruptIndex)
		}
		s.byID[m.ID] = mi
		for ci := range m.Conditions {
			id := m.Conditions[ci].AssetID
			if id == "" {
				continue
			}
			if _, taken := s.assets[id]; taken {
				s.duplicateAssets++
				continue
			}
			s.assets[id] = assetRef{market: mi, condition: ci}
			s.assetIDs = append(s.assetIDs, id)
		}
	}
	for mi, ns := range adjacency {
		if mi < 0 || mi >= len(markets) {
			return nil, fmt.Errorf("stream: adjacency key %d out of range: %w", mi, domain.ErrCorruptIndex)
		}
		for _, n := range ns {
			if n < 0 || n >= len(markets) || n == mi {
				return nil, fmt.Errorf("stream: adjacency %d->%d invalid: %w", mi, n, domain.ErrCorruptIndex)
			}
		}
	}
	return s, nil
}

// AssetIDs returns every tick-routable asset id in catalog order.
func (s *Store) AssetIDs() []string {
	return append([]string(nil), s.assetIDs...)
}

// Len returns the number of markets.
func (s *Store) Len() int { return len(s.markets) }

// EdgeCount returns the number of relatedness edges.
func (s *Store) EdgeCount() int { return s.adjacency.EdgeCount() }

// DuplicateAssets returns how many conditions lost their asset id to an
// earlier condition with the same id.
func (s *Store) DuplicateAssets() int { return s.duplicateAssets }

// Market returns a copy of the market with the given id.
func (s *Store) Market(id string) (domain.Market, bool) {
	i, ok := s.byID[id]
	if !ok {
		return domain.Market{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.markets[i].Clone(), true
}

// Neighbors returns copies of the markets related to the market with the
// given id.
func (s *Store) Neighbors(id string) ([]domain.Market, bool) {
	i, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns := s.adjacency.Neighbors(i)
	out := make([]domain.Market, 0, len(ns))
	for _, n := range ns {
		out = append(out, s.markets[n].Clone())
	}
	return out, true
}

// lookup resolves an asset id without locking; the index is read-only.
func (s *Store) lookup(assetID string) (assetRef, bool) {
	ref, ok := s.assets[assetID]
	return ref, ok
}
