package domain

// EntityKind tags what an extracted entity refers to.
type EntityKind int

const (
	EntityCandidate EntityKind = iota
	EntityLocation
	EntityEvent
	EntityNumeric
)

// Entity is a tagged value extracted from normalized text. Entities are only
// ever compared for set membership.
type Entity struct {
	Kind  EntityKind
	Value string
}

// Candidate wraps a keyword as a candidate entity.
func Candidate(name string) Entity { return Entity{Kind: EntityCandidate, Value: name} }

// EntitySet is an unordered set of entities.
type EntitySet map[Entity]struct{}

// NewEntitySet builds a set from the given entities.
func NewEntitySet(es ...Entity) EntitySet {
	s := make(EntitySet, len(es))
	for _, e := range es {
		s[e] = struct{}{}
	}
	return s
}

// Add inserts e.
func (s EntitySet) Add(e Entity) { s[e] = struct{}{} }

// Has reports membership.
func (s EntitySet) Has(e Entity) bool {
	_, ok := s[e]
	return ok
}

// Intersect returns the entities present in both sets.
func (s EntitySet) Intersect(other EntitySet) EntitySet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(EntitySet)
	for e := range small {
		if large.Has(e) {
			out[e] = struct{}{}
		}
	}
	return out
}

// Clone returns a copy of the set.
func (s EntitySet) Clone() EntitySet {
	if s == nil {
		return nil
	}
	out := make(EntitySet, len(s))
	for e := range s {
		out[e] = struct{}{}
	}
	return out
}

// Values returns the entity values, unordered.
func (s EntitySet) Values() []string {
	out := make([]string, 0, len(s))
	for e := range s {
		out = append(out, e.Value)
	}
	return out
}
