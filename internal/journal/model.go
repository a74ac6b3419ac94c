// Package journal models the host application's JournalEntry and
// JournalEntryPage documents and maps the IR onto them.
package journal

import (
	"errors"
	"fmt"
)

// FormatHTML is the only text format the host accepts for text pages.
const FormatHTML = 1

// PageTypeText marks a rich text page.
const PageTypeText = "text"

// FoldersNamespace holds the UI folder path used to group entries.
const FoldersNamespace = "compendium-folders"

// ErrInvariant marks a broken page contract. It indicates a programming error
// upstream and is never recovered.
var ErrInvariant = errors.New("journal page invariant violated")

// InvariantError describes which page broke which rule.
type InvariantError struct {
	PageID string
	Rule   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("page %q: %s", e.PageID, e.Rule)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}

// Flags is a namespaced metadata bag.
type Flags map[string]map[string]any

// Namespace returns the bag for ns, creating it if needed.
func (f Flags) Namespace(ns string) map[string]any {
	m, ok := f[ns]
	if !ok {
		m = make(map[string]any)
		f[ns] = m
	}
	return m
}

// Text is a page body.
type Text struct {
	Format  int    `json:"format"`
	Content string `json:"content"`
}

// Title controls how the page title is displayed.
type Title struct {
	Show  bool `json:"show"`
	Level int  `json:"level"`
}

// Page is a JournalEntryPage of type text.
type Page struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Text  Text   `json:"text"`
	Title Title  `json:"title"`
	Sort  int    `json:"sort"`
	Flags Flags  `json:"flags"`
}

// Entry is a JournalEntry.
type Entry struct {
	ID        string         `json:"_id"`
	Name      string         `json:"name"`
	Pages     []*Page        `json:"pages"`
	Folder    *string        `json:"folder"`
	Ownership map[string]int `json:"ownership"`
	Flags     Flags          `json:"flags"`
}

// Validate checks the page contract: HTML format, visible title, level >= 1.
func (p *Page) Validate() error {
	if p.Text.Format != FormatHTML {
		return &InvariantError{PageID: p.ID, Rule: fmt.Sprintf("text.format must be %d, got %d", FormatHTML, p.Text.Format)}
	}
	if !p.Title.Show {
		return &InvariantError{PageID: p.ID, Rule: "title.show must be true"}
	}
	if p.Title.Level < 1 {
		return &InvariantError{PageID: p.ID, Rule: fmt.Sprintf("title.level must be >= 1, got %d", p.Title.Level)}
	}
	return nil
}

// NewTextPage builds a text page and enforces its invariants.
func NewTextPage(id, name string, level int, html string, sort int) (*Page, error) {
	p := &Page{
		ID:    id,
		Name:  name,
		Type:  PageTypeText,
		Text:  Text{Format: FormatHTML, Content: html},
		Title: Title{Show: true, Level: level},
		Sort:  sort,
		Flags: Flags{},
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewEntry builds an entry with default ownership and no folder.
func NewEntry(id, name string, pages []*Page, flags Flags) *Entry {
	if flags == nil {
		flags = Flags{}
	}
	if pages == nil {
		pages = []*Page{}
	}
	return &Entry{
		ID:        id,
		Name:      name,
		Pages:     pages,
		Ownership: map[string]int{"default": 0},
		Flags:     flags,
	}
}

// ValidateEntry checks the entry shape and every page's invariants.
func ValidateEntry(e *Entry) error {
	if e == nil {
		return errors.New("nil entry")
	}
	if e.ID == "" {
		return errors.New("entry id is empty")
	}
	if e.Name == "" {
		return fmt.Errorf("entry %s: name is empty", e.ID)
	}
	if _, ok := e.Ownership["default"]; !ok {
		return fmt.Errorf("entry %s: ownership.default missing", e.ID)
	}
	seen := make(map[string]bool, len(e.Pages))
	for _, p := range e.Pages {
		if p.ID == "" {
			return fmt.Errorf("entry %s: page %q has empty id", e.ID, p.Name)
		}
		if seen[p.ID] {
			return fmt.Errorf("entry %s: duplicate page id %s", e.ID, p.ID)
		}
		seen[p.ID] = true
		if p.Type != PageTypeText {
			return fmt.Errorf("entry %s: page %s has type %q", e.ID, p.ID, p.Type)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("entry %s: %w", e.ID, err)
		}
	}
	return nil
}

// FolderFlags returns the UI grouping flags for a folder path.
func FolderFlags(folderPath []string) Flags {
	path := make([]string, len(folderPath))
	copy(path, folderPath)
	return Flags{FoldersNamespace: {"folderPath": path}}
}
