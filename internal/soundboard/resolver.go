package soundboard

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultMaxDistance    = 3
	defaultMaxSuggestions = 5
)

// MatchKind discriminates the outcome of a resolve.
type MatchKind int

const (
	// MatchNotFound means nothing in the index came close to the query.
	MatchNotFound MatchKind = iota
	// MatchExact means exactly one sound answers the query.
	MatchExact
	// MatchAmbiguous means several sounds qualify; Candidates holds the
	// ranked suggestions.
	MatchAmbiguous
)

// String implements fmt.Stringer.
func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchAmbiguous:
		return "ambiguous"
	default:
		return "not-found"
	}
}

// Candidate is one ranked suggestion. Score is the ranking value of the tier
// that produced it: matched name length for substring candidates (higher is
// better), edit distance for fuzzy candidates (lower is better).
type Candidate struct {
	Entry SoundEntry
	Score int
}

// Match is the outcome of resolving a query. Entry is set for MatchExact,
// Candidates for MatchAmbiguous.
type Match struct {
	Kind       MatchKind
	Entry      SoundEntry
	Candidates []Candidate
}

// ResolverOption is a functional option for configuring the [Resolver].
type ResolverOption func(*Resolver)

// WithMaxDistance sets the Levenshtein distance ceiling for fuzzy candidates.
// Default: 3. Regardless of this setting, a candidate's distance may never
// exceed half the query length (rounded up).
func WithMaxDistance(d int) ResolverOption {
	return func(r *Resolver) {
		r.maxDistance = d
	}
}

// WithMaxSuggestions caps the candidate list returned for fuzzy matches.
// Default: 5.
func WithMaxSuggestions(n int) ResolverOption {
	return func(r *Resolver) {
		r.maxSuggestions = n
	}
}

// Resolver turns a free-text request into a sound from the index. It tries
// three tiers in order: exact name, substring containment, then edit
// distance. Resolution is pure; identical inputs always produce identical
// results.
type Resolver struct {
	maxDistance    int
	maxSuggestions int
}

// NewResolver returns a Resolver configured with the supplied options.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		maxDistance:    defaultMaxDistance,
		maxSuggestions: defaultMaxSuggestions,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve matches query against idx. A tier that yields exactly one
// qualifying sound collapses to MatchExact even when the name is not an
// exact hit.
func (r *Resolver) Resolve(query string, idx *Index) Match {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" || idx.Count() == 0 {
		return Match{Kind: MatchNotFound}
	}

	// Tier 1: exact name.
	if e, ok := idx.Lookup(query); ok {
		return Match{Kind: MatchExact, Entry: e}
	}

	// Tier 2: substring containment in either direction. Longer matched
	// names rank first.
	var subs []Candidate
	for _, e := range idx.Entries() {
		name := strings.ToLower(e.Name)
		if strings.Contains(name, query) || strings.Contains(query, name) {
			subs = append(subs, Candidate{Entry: e, Score: len(e.Name)})
		}
	}
	if len(subs) == 1 {
		return Match{Kind: MatchExact, Entry: subs[0].Entry}
	}
	if len(subs) > 1 {
		sort.SliceStable(subs, func(i, j int) bool {
			if subs[i].Score != subs[j].Score {
				return subs[i].Score > subs[j].Score
			}
			return subs[i].Entry.Name < subs[j].Entry.Name
		})
		return Match{Kind: MatchAmbiguous, Candidates: subs}
	}

	// Tier 3: edit distance. The ceiling shrinks for short queries so that
	// e.g. a two-letter query cannot "match" an unrelated name.
	limit := r.maxDistance
	if half := (len(query) + 1) / 2; half < limit {
		limit = half
	}
	var fuzzy []Candidate
	for _, e := range idx.Entries() {
		d := matchr.Levenshtein(query, strings.ToLower(e.Name))
		if d <= limit {
			fuzzy = append(fuzzy, Candidate{Entry: e, Score: d})
		}
	}
	switch len(fuzzy) {
	case 0:
		return Match{Kind: MatchNotFound}
	case 1:
		return Match{Kind: MatchExact, Entry: fuzzy[0].Entry}
	}
	sort.SliceStable(fuzzy, func(i, j int) bool {
		if fuzzy[i].Score != fuzzy[j].Score {
			return fuzzy[i].Score < fuzzy[j].Score
		}
		return fuzzy[i].Entry.Name < fuzzy[j].Entry.Name
	})
	if len(fuzzy) > r.maxSuggestions {
		fuzzy = fuzzy[:r.maxSuggestions]
	}
	return Match{Kind: MatchAmbiguous, Candidates: fuzzy}
}
