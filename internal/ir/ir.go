// Package ir assembles the chapter/section intermediate representation of a
// document: unique id paths plus the HTML of each section's page range.
package ir

import (
	"strings"

	"github.com/dgallion1/docjournal/internal/outline"
	"github.com/dgallion1/docjournal/internal/slug"
	"github.com/dgallion1/docjournal/internal/structure"
)

// PageSeparator joins the HTML of consecutive pages inside one section.
const PageSeparator = "\n\n"

// ReservedChapterSegment is the level-1 segment of the table of contents
// entry. A chapter that slugs to it is suffixed like any other duplicate.
const ReservedChapterSegment = "toc"

// Section is one level >= 2 outline node with its merged HTML.
type Section struct {
	IDPath    []string `json:"id_path"`
	Level     int      `json:"level"`
	Title     string   `json:"title"`
	PageStart int      `json:"page_start"`
	PageEnd   *int     `json:"page_end"`
	HTML      string   `json:"html"`
}

// Chapter is one level-1 outline node and its flattened sections.
type Chapter struct {
	IDPath    []string   `json:"id_path"`
	Title     string     `json:"title"`
	PageStart int        `json:"page_start"`
	PageEnd   *int       `json:"page_end"`
	Sections  []*Section `json:"sections"`
}

// Document is the root aggregate of one conversion.
type Document struct {
	ModID     string     `json:"mod_id"`
	Title     string     `json:"title"`
	Chapters  []*Chapter `json:"chapters"`
	AssetsDir string     `json:"assets_dir,omitempty"`
}

// SectionCount returns the number of sections across all chapters.
func (d *Document) SectionCount() int {
	n := 0
	for _, ch := range d.Chapters {
		n += len(ch.Sections)
	}
	return n
}

// Build assembles the IR from an outline whose nodes are already resolved.
// Only level-1 nodes become chapters. obs may be nil.
func Build(doc *outline.Document, modID, title string, obs Observer) *Document {
	emit(obs, Event{Kind: EventStart, DocTitle: title})

	pages := doc.SortedPages()
	reg := slug.NewRegistry()
	reg.Unique(1, ReservedChapterSegment)
	out := &Document{ModID: modID, Title: title, AssetsDir: doc.AssetsDir}

	for _, ch := range structure.Chapters(doc.Outline) {
		node := ch.Node
		base := slug.Make(node.Title)
		if len(node.Path) > 0 {
			base = slug.Make(node.Path[0])
		}
		chapter := &Chapter{
			IDPath:    reg.UniquePath(1, []string{base}),
			Title:     node.Title,
			PageStart: node.PageStart,
			PageEnd:   node.PageEnd,
		}
		emit(obs, Event{Kind: EventChapterAssembled, DocTitle: title, Chapter: node.Title})

		for _, sec := range ch.Sections {
			segs := append(append([]string{}, chapter.IDPath...), slug.Make(sec.Title))
			section := &Section{
				IDPath:    reg.UniquePath(sec.Level, segs),
				Level:     sec.Level,
				Title:     sec.Title,
				PageStart: sec.PageStart,
				PageEnd:   sec.PageEnd,
				HTML:      MergeHTML(pages, sec.PageStart, sec.PageEnd),
			}
			chapter.Sections = append(chapter.Sections, section)
			emit(obs, Event{Kind: EventSectionAssembled, DocTitle: title, Chapter: node.Title, Section: sec.Title})
		}

		out.Chapters = append(out.Chapters, chapter)
	}

	emit(obs, Event{
		Kind:     EventFinalized,
		DocTitle: title,
		Chapters: len(out.Chapters),
		Sections: out.SectionCount(),
	})
	return out
}

// MergeHTML joins the HTML of every page in [start, end]. pages must be sorted
// by page number. A nil end runs through the last available page.
func MergeHTML(pages []outline.Page, start int, end *int) string {
	last := start
	if end != nil {
		last = *end
	} else if len(pages) > 0 {
		last = pages[len(pages)-1].Number
	}

	var parts []string
	for _, p := range pages {
		if p.Number >= start && p.Number <= last {
			parts = append(parts, p.HTML)
		}
	}
	return strings.Join(parts, PageSeparator)
}
