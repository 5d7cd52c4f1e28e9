// Package correlation maps order numbers to the Side A session that asked about them.
package correlation

import (
	"fmt"
	"regexp"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Extractor finds order numbers in free text using an ordered list of patterns
type Extractor struct {
	patterns []*regexp.Regexp
}

// NewExtractor compiles the order-number patterns
func NewExtractor(patterns []string) (*Extractor, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile order pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return &Extractor{patterns: compiled}, nil
}

// Extract returns every distinct order number in text, ordered by where it
// first appears. Text is NFKC-normalised first so full-width digits match.
// When two patterns match at the same position, the earlier pattern wins.
func (e *Extractor) Extract(text string) []string {
	text = norm.NFKC.String(text)

	type hit struct {
		pos     int
		pattern int
		value   string
	}
	var hits []hit
	for i, re := range e.patterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			hits = append(hits, hit{pos: loc[0], pattern: i, value: text[loc[0]:loc[1]]})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].pos != hits[b].pos {
			return hits[a].pos < hits[b].pos
		}
		return hits[a].pattern < hits[b].pattern
	})

	seen := make(map[string]struct{}, len(hits))
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		if _, dup := seen[h.value]; dup {
			continue
		}
		seen[h.value] = struct{}{}
		out = append(out, h.value)
	}
	return out
}
