package outline

import "sort"

// Document is the already-parsed input of one conversion: an outline plus
// per-page HTML fragments.
type Document struct {
	Title     string  `json:"title"`      // Document title (from metadata or filename)
	PageCount int     `json:"page_count"` // 0 when unknown
	Outline   []*Node `json:"outline"`    // Top-level outline nodes, document order
	Pages     []Page  `json:"pages"`
	AssetsDir string  `json:"assets_dir,omitempty"`
}

// Item is a flat outline entry as produced by bookmark or heading extraction.
type Item struct {
	Title string `json:"title"`
	Level int    `json:"level"` // 1-based
	Page  int    `json:"page"`  // 1-based start page
}

// Node is a recursive outline entry with a resolved page range.
type Node struct {
	Title     string   `json:"title"`
	Level     int      `json:"level"`
	PageStart int      `json:"page_start"`
	PageEnd   *int     `json:"page_end"` // nil when unresolved
	Children  []*Node  `json:"children,omitempty"`
	Path      []string `json:"path,omitempty"` // Canonical slug segments
}

// Page is the HTML produced for one source page.
type Page struct {
	Number int    `json:"page_no"` // 1-based
	HTML   string `json:"html"`
}

// LastPage returns the highest page number known to the document.
func (d *Document) LastPage() int {
	last := d.PageCount
	for _, p := range d.Pages {
		if p.Number > last {
			last = p.Number
		}
	}
	return last
}

// SortedPages returns the pages ordered by ascending page number.
func (d *Document) SortedPages() []Page {
	out := make([]Page, len(d.Pages))
	copy(out, d.Pages)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Walk visits nodes in pre-order.
func Walk(nodes []*Node, fn func(n *Node)) {
	for _, n := range nodes {
		fn(n)
		Walk(n.Children, fn)
	}
}

// Flatten returns the nodes as flat items in pre-order.
func Flatten(nodes []*Node) []Item {
	var items []Item
	Walk(nodes, func(n *Node) {
		items = append(items, Item{Title: n.Title, Level: n.Level, Page: n.PageStart})
	})
	return items
}

// IntPtr is a convenience for building optional page ends.
func IntPtr(v int) *int {
	return &v
}
