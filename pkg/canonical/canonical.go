// Package canonical resolves free-text exam names to canonical identities.
// A Canonicalizer holds a read-only snapshot of the synonym map for the
// duration of one reconciliation run; refreshing the snapshot between runs is
// the store's job, never this package's.
package canonical

import (
	"context"
	"sort"

	"github.com/labops/glosa/pkg/constants"
	"github.com/labops/glosa/pkg/errors"
	"github.com/labops/glosa/pkg/ledger"
	"github.com/labops/glosa/pkg/logging"
)

// Store is the read interface of the external synonym store. GetAll returns
// a point-in-time snapshot of raw-name to canonical-name mappings.
type Store interface {
	GetAll(ctx context.Context) (map[string]string, error)
}

// Map is an immutable synonym snapshot with normalized keys.
type Map struct {
	entries map[string]string
	keys    []string // sorted, for deterministic fuzzy scans
}

// NewMap builds a snapshot from raw synonym pairs. Keys are normalized; when
// two raw keys normalize identically the lexicographically smaller raw key
// wins, keeping construction order-independent.
func NewMap(raw map[string]string) *Map {
	rawKeys := make([]string, 0, len(raw))
	for k := range raw {
		rawKeys = append(rawKeys, k)
	}
	sort.Strings(rawKeys)

	entries := make(map[string]string, len(raw))
	for _, k := range rawKeys {
		nk := Normalize(k)
		if nk == "" {
			continue
		}
		if _, exists := entries[nk]; !exists {
			entries[nk] = Normalize(raw[k])
		}
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &Map{entries: entries, keys: keys}
}

// Len returns the number of synonym entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Lookup returns the canonical name for an already-normalized key.
func (m *Map) Lookup(normalized string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.entries[normalized]
	return v, ok
}

// Canonicalizer resolves raw exam names against a synonym snapshot.
type Canonicalizer struct {
	snapshot     *Map
	fuzzy        bool
	threshold    float64
	identityMode bool
}

// Option configures a Canonicalizer.
type Option func(*Canonicalizer)

// WithFuzzy enables fuzzy matching against the snapshot keys at the given
// similarity threshold.
func WithFuzzy(threshold float64) Option {
	return func(c *Canonicalizer) {
		c.fuzzy = true
		c.threshold = threshold
	}
}

// New creates a Canonicalizer over an existing snapshot.
func New(snapshot *Map, opts ...Option) *Canonicalizer {
	c := &Canonicalizer{
		snapshot:  snapshot,
		threshold: constants.DefaultFuzzyThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	if snapshot == nil || snapshot.Len() == 0 {
		c.identityMode = true
	}
	return c
}

// NewFromStore loads the synonym snapshot and builds a Canonicalizer. When
// the store is unreachable the canonicalizer runs in identity mode: every
// name becomes its own canonical identity. The returned error is the store
// failure, wrapped; callers surface it as a completeness warning, not a
// fatal condition.
func NewFromStore(ctx context.Context, store Store, opts ...Option) (*Canonicalizer, error) {
	raw, err := store.GetAll(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Msg("Synonym store unavailable; canonicalizer degrading to identity mode")
		return New(nil, opts...), errors.WrapStore("synonyms", err)
	}
	return New(NewMap(raw), opts...), nil
}

// IdentityMode reports whether the canonicalizer runs without a synonym
// snapshot.
func (c *Canonicalizer) IdentityMode() bool {
	return c.identityMode
}

// Resolve maps a raw exam name to its canonical identity. Unknown names
// resolve to their own normalized form so no exam is ever dropped, only left
// unresolved.
func (c *Canonicalizer) Resolve(raw string) string {
	normalized := Normalize(raw)
	if c.identityMode {
		return normalized
	}

	if canon, ok := c.snapshot.Lookup(normalized); ok {
		return canon
	}

	if c.fuzzy {
		if canon, ok := c.fuzzyLookup(normalized); ok {
			return canon
		}
	}

	return normalized
}

// fuzzyLookup scans all snapshot keys for the best similarity match. The
// best candidate wins only at or above the threshold; ties break to the
// shortest key, then lexicographically. The snapshot's sorted key order
// makes repeated calls deterministic.
func (c *Canonicalizer) fuzzyLookup(normalized string) (string, bool) {
	bestKey := ""
	bestScore := 0.0

	for _, key := range c.snapshot.keys {
		score := similarity(normalized, key)
		if score < c.threshold {
			continue
		}
		switch {
		case score > bestScore:
			bestKey, bestScore = key, score
		case score == bestScore && bestKey != "":
			if len(key) < len(bestKey) || (len(key) == len(bestKey) && key < bestKey) {
				bestKey = key
			}
		}
	}

	if bestKey == "" {
		return "", false
	}
	canon, _ := c.snapshot.Lookup(bestKey)
	return canon, true
}

// Apply resolves canonical names for a slice of entries in place, returning
// the same slice for chaining.
func (c *Canonicalizer) Apply(entries []ledger.Entry) []ledger.Entry {
	for i := range entries {
		entries[i].CanonicalName = c.Resolve(entries[i].RawExamName)
	}
	return entries
}
