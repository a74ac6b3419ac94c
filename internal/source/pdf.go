package source

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/docjournal/internal/outline"
	"github.com/dgallion1/docjournal/internal/structure"
)

// PDFSource handles PDF files. Page text comes from the Go library, falling
// back to pdftotext when enabled. Bookmarks become the outline.
type PDFSource struct {
	FallbackPdftotext bool
}

func (s *PDFSource) Load(r io.Reader, filename string) (*outline.Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "docjournal-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	pages, bookmarks, err := readPDF(tmpPath)
	if err != nil && s.FallbackPdftotext {
		var text string
		text, err = extractPdftotext(tmpPath)
		pages = strings.Split(text, "\f")
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	// pdftotext ends its output with a form feed.
	for len(pages) > 0 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}

	title := titleFromFilename(filename)
	doc := &outline.Document{Title: title, PageCount: len(pages)}
	for i, text := range pages {
		doc.Pages = append(doc.Pages, outline.Page{Number: i + 1, HTML: textToHTML(text)})
	}

	items := matchBookmarks(bookmarks, pages)
	if len(items) == 0 && len(pages) > 0 {
		items = []outline.Item{{Title: title, Level: 1, Page: 1}, {Title: title, Level: 2, Page: 1}}
	}
	doc.Outline, err = structure.Nest(items)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

type bookmark struct {
	title string
	level int
}

func readPDF(path string) ([]string, []bookmark, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}

	var marks []bookmark
	var walk func(o pdflib.Outline, level int)
	walk = func(o pdflib.Outline, level int) {
		for _, c := range o.Child {
			if t := strings.TrimSpace(c.Title); t != "" {
				marks = append(marks, bookmark{title: t, level: level})
			}
			walk(c, level+1)
		}
	}
	walk(reader.Outline(), 1)
	return pages, marks, nil
}

// leadingLines is how many non-empty lines count as a page's heading area.
const leadingLines = 5

type pdfPage struct {
	lead    string // normalized leading lines
	full    string // normalized page text
	listing bool   // a printed contents page
}

// matchBookmarks anchors each bookmark on a page at or after the previous
// bookmark's page: first one whose leading lines contain the title, else one
// whose text does. Printed contents pages are never anchors. Unmatched
// bookmarks share the previous page.
func matchBookmarks(marks []bookmark, pages []string) []outline.Item {
	if len(pages) == 0 {
		return nil
	}
	indexed := indexPages(marks, pages)

	items := make([]outline.Item, 0, len(marks))
	cursor := 0
	for _, m := range marks {
		needle := normalize(m.title)
		if i := findPage(indexed, cursor, func(p pdfPage) bool { return strings.Contains(p.lead, needle) }); i >= 0 {
			cursor = i
		} else if i := findPage(indexed, cursor, func(p pdfPage) bool { return strings.Contains(p.full, needle) }); i >= 0 {
			cursor = i
		}
		items = append(items, outline.Item{Title: m.title, Level: m.level, Page: cursor + 1})
	}
	return items
}

func findPage(pages []pdfPage, from int, match func(pdfPage) bool) int {
	for i := from; i < len(pages); i++ {
		if !pages[i].listing && match(pages[i]) {
			return i
		}
	}
	return -1
}

// indexPages normalizes every page and flags listing pages: pages naming
// more than half of the distinct bookmark titles, including at least two
// top-level ones.
func indexPages(marks []bookmark, pages []string) []pdfPage {
	titles := make(map[string]bool)
	top := make(map[string]bool)
	for _, m := range marks {
		t := normalize(m.title)
		titles[t] = true
		if m.level == 1 {
			top[t] = true
		}
	}

	out := make([]pdfPage, len(pages))
	for i, p := range pages {
		out[i] = pdfPage{lead: normalize(leading(p, leadingLines)), full: normalize(p)}
		if len(top) < 2 {
			continue
		}
		named, namedTop := 0, 0
		for t := range titles {
			if strings.Contains(out[i].full, t) {
				named++
				if top[t] {
					namedTop++
				}
			}
		}
		out[i].listing = named*2 > len(titles) && namedTop >= 2
	}
	return out
}

// leading returns the first n non-empty lines of text.
func leading(text string, n int) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == n {
			break
		}
	}
	return strings.Join(lines, "\n")
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// textToHTML splits page text on blank lines into paragraphs.
func textToHTML(text string) string {
	var parts []string
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if p := paragraph(block); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
