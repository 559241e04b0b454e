package evnet

import (
	"strings"

	"github.com/nodecore/evnet/internal/canon"
)

// HeaderPair is one on-wire header line: Name in its canonicalized
// on-wire form, Value as scanned. Preserving both order and duplicate
// keys rules out badu-http's hdr.Header (a map[string][]string) as the
// wire representation — HeaderPairs below is the ordered
// generalization of it.
type HeaderPair struct {
	Name  string
	Value string
}

// HeaderPairs is an ordered, duplicate-preserving header sequence.
type HeaderPairs []HeaderPair

// Get returns the first value for name (case-insensitive), or "" if
// absent.
func (h HeaderPairs) Get(name string) string {
	key := canon.Key(name)
	for _, p := range h {
		if p.Name == key {
			return p.Value
		}
	}
	return ""
}

// Values returns every value for name, in order.
func (h HeaderPairs) Values(name string) []string {
	key := canon.Key(name)
	var out []string
	for _, p := range h {
		if p.Name == key {
			out = append(out, p.Value)
		}
	}
	return out
}

// Collapsed derives a single map view: standard headers collapse by
// last-wins, Set-Cookie concatenates with ", " instead — an open
// choice resolved here and recorded in SPEC_FULL.md, mirroring how
// badu-http's hdr.Header.Add accumulates multiple values for the same
// key.
func (h HeaderPairs) Collapsed() map[string]string {
	out := make(map[string]string, len(h))
	for _, p := range h {
		if p.Name == "Set-Cookie" {
			if existing, ok := out[p.Name]; ok {
				out[p.Name] = existing + ", " + p.Value
				continue
			}
		}
		out[p.Name] = p.Value
	}
	return out
}

func canonicalHeaderName(raw string) string {
	return canon.Key(strings.TrimSpace(raw))
}
