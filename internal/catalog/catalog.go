// Package catalog maps abstract die descriptors to the dice this instance
// actually owns.
package catalog

import "strings"

// Entry is one concrete die in the local catalog.
type Entry struct {
	ID    string `json:"id"`
	Style string `json:"style"`
	Type  string `json:"type"`
	Sides int    `json:"sides"`
}

// Descriptor names a kind of die abstractly: a style, and optionally a
// type narrowing it, neither tied to any particular instance's catalog.
type Descriptor struct {
	Style string
	Type  string
}

// Catalog is an ordered list of entries. Order matters: Resolve returns
// the first match, so slice order is the documented tie-break when more
// than one entry shares a style.
type Catalog struct {
	entries []Entry
}

func New(entries []Entry) *Catalog {
	return &Catalog{entries: entries}
}

// Default returns the standard seven-less-one set every instance ships
// with, under the "classic" style.
func Default() *Catalog {
	return New([]Entry{
		{ID: "classic-d4", Style: "classic", Type: "d4", Sides: 4},
		{ID: "classic-d6", Style: "classic", Type: "d6", Sides: 6},
		{ID: "classic-d8", Style: "classic", Type: "d8", Sides: 8},
		{ID: "classic-d10", Style: "classic", Type: "d10", Sides: 10},
		{ID: "classic-d12", Style: "classic", Type: "d12", Sides: 12},
		{ID: "classic-d20", Style: "classic", Type: "d20", Sides: 20},
	})
}

func (c *Catalog) Entries() []Entry {
	return c.entries
}

// Resolve returns the first entry whose style matches the descriptor, and
// whose type matches too when the descriptor specifies one. Matching is
// case-insensitive. The second return is false when nothing matches.
func (c *Catalog) Resolve(d Descriptor) (Entry, bool) {
	for _, e := range c.entries {
		if !strings.EqualFold(e.Style, d.Style) {
			continue
		}
		if d.Type != "" && !strings.EqualFold(e.Type, d.Type) {
			continue
		}
		return e, true
	}
	return Entry{}, false
}

// NormalizeCount coerces a requested count to at least 1. A listed
// descriptor with count 0 or less still means "roll one": callers that
// want none of a style omit it.
func NormalizeCount(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
