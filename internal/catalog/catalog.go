// Package catalog defines the fixed set of bookable session kinds.
// The catalog is immutable at runtime; changing an offering is a
// deployment-time change, not a data mutation.
package catalog

import (
	"fmt"
	"sort"
)

// Kind identifies a session offering.
type Kind string

const (
	QuickGuidance    Kind = "quick_guidance"
	DeepDive         Kind = "deep_dive"
	IntensiveHealing Kind = "intensive_healing"
)

// SessionType describes one bookable offering.
type SessionType struct {
	Kind            Kind   `json:"kind"`
	DisplayName     string `json:"display_name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	Description     string `json:"description"`
}

// Catalog is an immutable lookup table of session kinds.
type Catalog struct {
	kinds map[Kind]SessionType
}

// Default returns the production catalog.
func Default() *Catalog {
	return New([]SessionType{
		{
			Kind:            QuickGuidance,
			DisplayName:     "Quick Guidance",
			DurationMinutes: 10,
			PriceCents:      1700,
			Description:     "Brief spiritual insights for immediate clarity and daily guidance",
		},
		{
			Kind:            DeepDive,
			DisplayName:     "Deep Dive Session",
			DurationMinutes: 30,
			PriceCents:      9700,
			Description:     "Comprehensive spiritual exploration with ancestral wisdom and transformation guidance",
		},
		{
			Kind:            IntensiveHealing,
			DisplayName:     "Intensive Healing",
			DurationMinutes: 60,
			PriceCents:      29700,
			Description:     "Complete spiritual realignment including soul work, trauma clearing, and deep healing",
		},
	})
}

// New builds a catalog from the given session types.
func New(types []SessionType) *Catalog {
	kinds := make(map[Kind]SessionType, len(types))
	for _, st := range types {
		kinds[st.Kind] = st
	}
	return &Catalog{kinds: kinds}
}

// Lookup returns the session type for a kind.
func (c *Catalog) Lookup(kind Kind) (SessionType, error) {
	st, ok := c.kinds[kind]
	if !ok {
		return SessionType{}, fmt.Errorf("catalog: unknown session kind %q", kind)
	}
	return st, nil
}

// Contains reports whether the kind exists.
func (c *Catalog) Contains(kind Kind) bool {
	_, ok := c.kinds[kind]
	return ok
}

// All returns every session type sorted by price ascending.
func (c *Catalog) All() []SessionType {
	out := make([]SessionType, 0, len(c.kinds))
	for _, st := range c.kinds {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceCents < out[j].PriceCents })
	return out
}
