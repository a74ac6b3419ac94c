package journal

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docjournal/internal/ids"
	"github.com/dgallion1/docjournal/internal/ir"
)

// SortStep leaves room between pages so the host can insert pages later
// without renumbering.
const SortStep = 1000

// Flag keys written into the module namespace.
const (
	FlagCanonicalPath    = "canonicalPath"
	FlagCanonicalPathStr = "canonicalPathStr"
	FlagSectionOrder     = "sectionOrder"
	FlagNameSlug         = "nameSlug"
)

// TitleLevel shifts a section outline level (starting at 2) down by one and
// clamps it to [1,3].
func TitleLevel(outlineLevel int) int {
	return min(3, max(1, outlineLevel-1))
}

// MapEntries turns every IR chapter into one entry with one page per section.
// A nil gen is replaced by a fresh generator for doc.ModID. The
// first invariant violation aborts the mapping.
func MapEntries(doc *ir.Document, gen *ids.Generator) ([]*Entry, error) {
	if gen == nil {
		gen = ids.NewGenerator(doc.ModID, 0)
	}

	entries := make([]*Entry, 0, len(doc.Chapters))
	for ci, ch := range doc.Chapters {
		name := strings.TrimSpace(ch.Title)
		if name == "" {
			name = fmt.Sprintf("Untitled Chapter %d", ci+1)
		}
		entryPath := append([]string{}, ch.IDPath...)

		pages := make([]*Page, 0, len(ch.Sections))
		names := newNameSet()
		for si, sec := range ch.Sections {
			raw := strings.TrimSpace(sec.Title)
			if raw == "" {
				raw = fmt.Sprintf("Untitled Section %d", si+1)
			}
			pageName := names.unique(raw)

			pageID := gen.Page(entryPath, sec.IDPath[len(sec.IDPath)-1])
			page, err := NewTextPage(pageID, pageName, TitleLevel(sec.Level), sec.HTML, SortStep*(si+1))
			if err != nil {
				return nil, fmt.Errorf("chapter %q section %q: %w", name, pageName, err)
			}

			canonical := append(append([]string{}, entryPath...), pageName)
			ns := page.Flags.Namespace(doc.ModID)
			ns[FlagCanonicalPath] = canonical
			ns[FlagCanonicalPathStr] = strings.Join(canonical, "/")
			ns[FlagSectionOrder] = si
			pages = append(pages, page)
		}

		flags := FolderFlags([]string{doc.Title, name})
		ns := flags.Namespace(doc.ModID)
		ns[FlagCanonicalPath] = entryPath
		ns[FlagCanonicalPathStr] = strings.Join(entryPath, "/")
		ns[FlagNameSlug] = lastOrEmpty(entryPath)

		entries = append(entries, NewEntry(gen.Entry(entryPath), name, pages, flags))
	}
	return entries, nil
}

func lastOrEmpty(path []string) string {
	if len(path) == 0 {
		return ""
	}
	return path[len(path)-1]
}

// nameSet hands out page names unique within one entry: a repeated name gets
// " (n)", skipping any suffixed form already in use.
type nameSet struct {
	used map[string]bool
	next map[string]int
}

func newNameSet() *nameSet {
	return &nameSet{used: make(map[string]bool), next: make(map[string]int)}
}

func (s *nameSet) unique(name string) string {
	candidate := name
	if s.used[candidate] {
		n := max(s.next[name], 1)
		for s.used[candidate] {
			n++
			candidate = fmt.Sprintf("%s (%d)", name, n)
		}
		s.next[name] = n
	}
	s.used[candidate] = true
	return candidate
}
