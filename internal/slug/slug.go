// Package slug turns titles into stable path segments and keeps them unique
// per nesting level for the duration of one build.
package slug

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is used when a title has no slug-able characters.
const Fallback = "untitled"

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Make normalizes a title into lowercase alphanumerics joined by single hyphens.
func Make(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn))), title)
	if err != nil {
		folded = title
	}
	s := nonAlnum.ReplaceAllString(strings.ToLower(folded), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return Fallback
	}
	return s
}

// Registry hands out segments that are unique within a nesting level.
// Counters are shared across the whole document, not per parent.
type Registry struct {
	counts map[int]map[string]int
	taken  map[int]map[string]bool
}

// NewRegistry returns an empty registry. Use one per build.
func NewRegistry() *Registry {
	return &Registry{
		counts: make(map[int]map[string]int),
		taken:  make(map[int]map[string]bool),
	}
}

// Unique returns base the first time it is seen at level and base-N for each
// later occurrence, skipping candidates already issued at that level.
func (r *Registry) Unique(level int, base string) string {
	counts := r.counts[level]
	if counts == nil {
		counts = make(map[string]int)
		r.counts[level] = counts
	}
	taken := r.taken[level]
	if taken == nil {
		taken = make(map[string]bool)
		r.taken[level] = taken
	}

	n := counts[base]
	candidate := base
	if n > 0 || taken[base] {
		for {
			n++
			if n == 1 {
				continue
			}
			candidate = fmt.Sprintf("%s-%d", base, n)
			if !taken[candidate] {
				break
			}
		}
	} else {
		n = 1
	}
	counts[base] = n
	taken[candidate] = true
	return candidate
}

// UniquePath replaces the last segment of segments with a registry-unique one.
// The input slice is not modified.
func (r *Registry) UniquePath(level int, segments []string) []string {
	if len(segments) == 0 {
		return nil
	}
	out := make([]string, len(segments))
	copy(out, segments)
	out[len(out)-1] = r.Unique(level, out[len(out)-1])
	return out
}
