// Package toc synthesizes the table-of-contents entry and checks that every
// link in it points at a known entry and page.
package toc

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/docjournal/internal/ids"
	"github.com/dgallion1/docjournal/internal/ir"
	"github.com/dgallion1/docjournal/internal/journal"
)

// DefaultTitle names the TOC entry and its page when no title is given.
const DefaultTitle = "Table of Contents"

// WrapperClass is the class of the element wrapping the TOC body, for module
// stylesheets to target.
const WrapperClass = "docjournal toc"

// Path is the fixed canonical path of the TOC entry.
var Path = []string{ir.ReservedChapterSegment}

var linkToken = regexp.MustCompile(`@UUID\[JournalEntry\.([^.\]\s]+)\.JournalEntryPage\.([^.\]\s]+)\]\{([^}]*)\}`)

// PageRef is one page as listed in the TOC.
type PageRef struct {
	ID    string
	Label string
	Sort  int
}

// EntryRef is one chapter entry with its pages in sort order.
type EntryRef struct {
	ID    string
	Name  string
	Pages []PageRef
}

// Target is a link extracted from TOC HTML.
type Target struct {
	EntryID string
	PageID  string
	Label   string
}

// Options controls the synthesized entry.
type Options struct {
	Title      string
	FolderPath []string
	// IDs, when set, is the generator the chapter entries were mapped with.
	IDs *ids.Generator
}

// CollectMetadata lists entries in order with their pages stable-sorted by
// their assigned sort value.
func CollectMetadata(entries []*journal.Entry) []EntryRef {
	refs := make([]EntryRef, 0, len(entries))
	for _, e := range entries {
		pages := make([]PageRef, 0, len(e.Pages))
		for _, p := range e.Pages {
			pages = append(pages, PageRef{ID: p.ID, Label: p.Name, Sort: p.Sort})
		}
		sort.SliceStable(pages, func(i, j int) bool { return pages[i].Sort < pages[j].Sort })
		refs = append(refs, EntryRef{ID: e.ID, Name: e.Name, Pages: pages})
	}
	return refs
}

// labelBraces maps the braces a link label cannot contain: the host ends a
// label at the first closing brace.
var labelBraces = strings.NewReplacer("{", "(", "}", ")")

// UUIDLink returns the host's cross-reference token for a page. Braces in
// label become parentheses.
func UUIDLink(entryID, pageID, label string) string {
	return fmt.Sprintf("@UUID[JournalEntry.%s.JournalEntryPage.%s]{%s}", entryID, pageID, labelBraces.Replace(label))
}

// RenderHTML renders the TOC body: a div of class WrapperClass holding an h1
// title, then per entry an h2 and a list of links. Entries without pages get
// no list.
func RenderHTML(title string, refs []EntryRef) (string, error) {
	root := element(atom.Div)
	root.Attr = []html.Attribute{{Key: "class", Val: WrapperClass}}
	add := func(n *html.Node) {
		root.AppendChild(text("\n"))
		root.AppendChild(n)
	}

	add(element(atom.H1, text(title)))
	for _, ref := range refs {
		add(element(atom.H2, text(ref.Name)))
		if len(ref.Pages) == 0 {
			continue
		}
		ul := element(atom.Ul)
		for _, p := range ref.Pages {
			ul.AppendChild(element(atom.Li, text(UUIDLink(ref.ID, p.ID, p.Label))))
		}
		add(ul)
	}
	root.AppendChild(text("\n"))

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("render toc: %w", err)
	}
	return buf.String(), nil
}

// BuildEntry synthesizes the TOC entry for entries. Its ids depend only on
// modID and the title, so they are stable across runs.
func BuildEntry(modID string, entries []*journal.Entry, opts Options) (*journal.Entry, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = DefaultTitle
	}

	body, err := RenderHTML(title, CollectMetadata(entries))
	if err != nil {
		return nil, err
	}

	gen := opts.IDs
	if gen == nil || gen.ModID() != modID {
		gen = ids.NewGenerator(modID, 2)
	}

	page, err := journal.NewTextPage(gen.Page(Path, title), title, 1, body, journal.SortStep)
	if err != nil {
		return nil, err
	}
	pageNS := page.Flags.Namespace(modID)
	pageNS[journal.FlagCanonicalPath] = append(append([]string{}, Path...), title)
	pageNS[journal.FlagCanonicalPathStr] = strings.Join(append(append([]string{}, Path...), title), "/")
	pageNS[journal.FlagSectionOrder] = 0

	var flags journal.Flags
	if len(opts.FolderPath) > 0 {
		flags = journal.FolderFlags(opts.FolderPath)
	} else {
		flags = journal.Flags{}
	}
	ns := flags.Namespace(modID)
	ns[journal.FlagCanonicalPath] = append([]string{}, Path...)
	ns[journal.FlagCanonicalPathStr] = strings.Join(Path, "/")
	ns[journal.FlagNameSlug] = Path[len(Path)-1]

	return journal.NewEntry(gen.Entry(Path), title, []*journal.Page{page}, flags), nil
}

// ExtractTargets parses body and returns every link token found in its text,
// in document order. Malformed tokens are skipped.
func ExtractTargets(body string) ([]Target, error) {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse toc html: %w", err)
	}

	var targets []Target
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			for _, m := range linkToken.FindAllStringSubmatch(n.Data, -1) {
				targets = append(targets, Target{EntryID: m[1], PageID: m[2], Label: m[3]})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return targets, nil
}

// Validate cross-checks every link in the TOC entry's pages against entries.
// It returns one issue per broken link and never modifies its inputs.
func Validate(tocEntry *journal.Entry, entries []*journal.Entry) []string {
	known := make(map[string]map[string]bool, len(entries))
	for _, e := range entries {
		pages := make(map[string]bool, len(e.Pages))
		for _, p := range e.Pages {
			pages[p.ID] = true
		}
		known[e.ID] = pages
	}

	var issues []string
	if tocEntry == nil {
		return issues
	}
	for _, page := range tocEntry.Pages {
		targets, err := ExtractTargets(page.Text.Content)
		if err != nil {
			issues = append(issues, fmt.Sprintf("TOC page %s could not be parsed: %v", page.ID, err))
			continue
		}
		for _, t := range targets {
			pages, ok := known[t.EntryID]
			if !ok {
				issues = append(issues, fmt.Sprintf("TOC link %q references missing entry %s", t.Label, t.EntryID))
				continue
			}
			if !pages[t.PageID] {
				issues = append(issues, fmt.Sprintf("TOC link %q references missing page %s in entry %s", t.Label, t.PageID, t.EntryID))
			}
		}
	}
	return issues
}

func element(a atom.Atom, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
