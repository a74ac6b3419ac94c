// Package source loads documents from disk formats into the normalized
// outline plus per-page HTML consumed by the converter.
package source

import (
	"fmt"
	"html"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docjournal/internal/outline"
	"github.com/dgallion1/docjournal/internal/structure"
)

// Source converts raw document bytes into an outline document.
type Source interface {
	Load(r io.Reader, filename string) (*outline.Document, error)
}

// Options tunes source selection.
type Options struct {
	// PDFFallbackPdftotext shells out to pdftotext when the Go PDF reader fails.
	PDFFallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".json":     true,
	".yaml":     true,
	".yml":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".txt":      true,
	".csv":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate source for a filename.
func ForFile(filename string, opts Options) (Source, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".json":
		return &BundleSource{}, nil
	case ".yaml", ".yml":
		return &BundleSource{YAML: true}, nil
	case ".md", ".markdown":
		return &MarkdownSource{}, nil
	case ".html", ".htm":
		return &HTMLSource{}, nil
	case ".txt":
		return &TextSource{}, nil
	case ".csv":
		return &CSVSource{}, nil
	case ".pdf":
		return &PDFSource{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXSource{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// titleFromFilename strips directories and the extension.
func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// paragraph wraps plain text in a <p>, escaping it and folding line breaks.
func paragraph(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}
	return "<p>" + html.EscapeString(text) + "</p>"
}

// pageBuilder turns a heading-delimited stream into virtual pages: every
// heading opens a new page and an outline item pointing at it.
type pageBuilder struct {
	items  []outline.Item
	pages  []outline.Page
	blocks []string
	pageNo int
	open   bool
}

func newPageBuilder() *pageBuilder {
	return &pageBuilder{pageNo: 1}
}

func (b *pageBuilder) heading(title string, level int) {
	if b.open {
		b.flush()
		b.pageNo++
	}
	b.items = append(b.items, outline.Item{Title: title, Level: level, Page: b.pageNo})
	b.open = true
}

func (b *pageBuilder) block(fragment string) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return
	}
	b.blocks = append(b.blocks, fragment)
	b.open = true
}

func (b *pageBuilder) flush() {
	b.pages = append(b.pages, outline.Page{Number: b.pageNo, HTML: strings.Join(b.blocks, "\n")})
	b.blocks = nil
}

// document finishes the stream. Content without any heading becomes one
// implicit chapter named after the document.
func (b *pageBuilder) document(title string) (*outline.Document, error) {
	if b.open {
		b.flush()
		b.open = false
	}
	items := b.items
	if len(items) == 0 && len(b.pages) > 0 {
		items = []outline.Item{{Title: title, Level: 1, Page: 1}, {Title: title, Level: 2, Page: 1}}
	}
	nodes, err := structure.Nest(items)
	if err != nil {
		return nil, err
	}
	return &outline.Document{
		Title:     title,
		PageCount: len(b.pages),
		Outline:   nodes,
		Pages:     b.pages,
	}, nil
}
