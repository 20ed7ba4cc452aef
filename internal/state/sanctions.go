package state

import (
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

// SanctionsMatch reports how a recipient matched the active sanctions set.
type SanctionsMatch struct {
	Hit    bool
	Entry  string
	Method string // "exact", "substring", or "fuzzy"
}

type sanctionsRegion struct {
	mu      sync.RWMutex
	entries []string // normalised (lower-cased, trimmed)
}

func (r *sanctionsRegion) init() {}

// ReplaceSanctions swaps the active sanctions set atomically. Readers see
// either the full old set or the full new one, never a mix.
func (s *Store) ReplaceSanctions(names []string) {
	normalised := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			normalised = append(normalised, n)
		}
	}

	r := &s.sanctions
	r.mu.Lock()
	r.entries = normalised
	r.mu.Unlock()
}

// SanctionsSize returns the number of active entries.
func (s *Store) SanctionsSize() int {
	r := &s.sanctions
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// MatchSanctions screens a recipient name against the active set:
// case-insensitive exact match, then substring containment, then a
// levenshtein distance within the configured tolerance.
func (s *Store) MatchSanctions(recipient string) SanctionsMatch {
	query := strings.ToLower(strings.TrimSpace(recipient))
	if query == "" {
		return SanctionsMatch{}
	}

	r := &s.sanctions
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.entries {
		if entry == query {
			return SanctionsMatch{Hit: true, Entry: entry, Method: "exact"}
		}
	}
	for _, entry := range r.entries {
		if strings.Contains(query, entry) || strings.Contains(entry, query) {
			return SanctionsMatch{Hit: true, Entry: entry, Method: "substring"}
		}
	}
	if s.opts.FuzzyDistance > 0 {
		for _, entry := range r.entries {
			if levenshtein.ComputeDistance(query, entry) <= s.opts.FuzzyDistance {
				return SanctionsMatch{Hit: true, Entry: entry, Method: "fuzzy"}
			}
		}
	}
	return SanctionsMatch{}
}
