// Package structure maps a flat, document-ordered outline onto a chapter and
// section tree with resolved page ranges and canonical paths.
package structure

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/docjournal/internal/outline"
	"github.com/dgallion1/docjournal/internal/slug"
)

var (
	// ErrInvalidItem is returned for outline entries with a level or page below 1.
	ErrInvalidItem = errors.New("invalid outline item")
	// ErrNonMonotonic is returned when a node starts before its predecessor
	// and the reject policy is in effect.
	ErrNonMonotonic = errors.New("non-monotonic page numbers")
)

// Policy selects how page numbers that go backwards are handled.
type Policy string

const (
	// PolicyReject fails the build.
	PolicyReject Policy = "reject"
	// PolicyClamp raises the offending start page to the previous start page.
	PolicyClamp Policy = "clamp"
)

// ParsePolicy converts a string to a Policy. Unknown values are an error.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyReject:
		return PolicyReject, nil
	case PolicyClamp:
		return PolicyClamp, nil
	default:
		return "", fmt.Errorf("unknown page order policy %q", s)
	}
}

// Options controls structure mapping.
type Options struct {
	Policy Policy
}

// implicitChapterTitle names the chapter synthesized when sections precede
// any level-1 entry and carry no title of their own.
const implicitChapterTitle = "Chapter"

// Build nests flat items into chapters and resolves them. pageCount is the
// document's last page, or 0 when unknown.
func Build(items []outline.Item, pageCount int, opts Options) ([]*outline.Node, error) {
	roots, err := Nest(items)
	if err != nil {
		return nil, err
	}
	return resolveInPlace(roots, pageCount, opts)
}

// Nest turns flat items into a node tree without resolving page ends. Level-1
// items start a chapter; deeper items attach to the closest preceding
// shallower node, so level gaps still land inside the current chapter.
func Nest(items []outline.Item) ([]*outline.Node, error) {
	var roots []*outline.Node
	var stack []*outline.Node

	for i, it := range items {
		if it.Level < 1 || it.Page < 1 {
			return nil, fmt.Errorf("%w: item %d %q has level %d page %d", ErrInvalidItem, i, it.Title, it.Level, it.Page)
		}
		title := strings.TrimSpace(it.Title)
		node := &outline.Node{Title: title, Level: it.Level, PageStart: it.Page}

		if it.Level == 1 {
			roots = append(roots, node)
			stack = []*outline.Node{node}
			continue
		}

		if len(roots) == 0 {
			chTitle := title
			if chTitle == "" {
				chTitle = implicitChapterTitle
			}
			chapter := &outline.Node{Title: chTitle, Level: 1, PageStart: it.Page}
			roots = append(roots, chapter)
			stack = []*outline.Node{chapter}
		}

		for len(stack) > 1 && stack[len(stack)-1].Level >= it.Level {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1]
		parent.Children = append(parent.Children, node)
		stack = append(stack, node)
	}
	return roots, nil
}

// Resolve returns a copy of nodes with every missing page end and canonical
// path filled in. Explicit page ends and paths are kept.
func Resolve(nodes []*outline.Node, pageCount int, opts Options) ([]*outline.Node, error) {
	cloned := clone(nodes)
	var err error
	outline.Walk(cloned, func(n *outline.Node) {
		if err == nil && (n.Level < 1 || n.PageStart < 1) {
			err = fmt.Errorf("%w: %q has level %d page %d", ErrInvalidItem, n.Title, n.Level, n.PageStart)
		}
	})
	if err != nil {
		return nil, err
	}
	return resolveInPlace(cloned, pageCount, opts)
}

type flatNode struct {
	node   *outline.Node
	parent int // index into the flat list, -1 for roots
}

func resolveInPlace(roots []*outline.Node, pageCount int, opts Options) ([]*outline.Node, error) {
	flat := flatten(roots)

	if err := checkOrder(flat, opts.Policy); err != nil {
		return nil, err
	}

	for i, f := range flat {
		n := f.node
		var parentEnd *int
		if f.parent >= 0 {
			parentEnd = flat[f.parent].node.PageEnd
		}

		if n.PageEnd == nil {
			n.PageEnd = resolveEnd(flat, i, parentEnd, pageCount)
		}
		if parentEnd != nil && n.PageEnd != nil && *n.PageEnd > *parentEnd && *parentEnd >= n.PageStart {
			n.PageEnd = outline.IntPtr(*parentEnd)
		}
	}

	reg := slug.NewRegistry()
	for _, f := range flat {
		n := f.node
		if len(n.Path) > 0 {
			continue
		}
		var prefix []string
		if f.parent >= 0 {
			prefix = flat[f.parent].node.Path
		}
		seg := reg.Unique(n.Level, slug.Make(n.Title))
		n.Path = append(append([]string{}, prefix...), seg)
	}

	return roots, nil
}

// resolveEnd scans forward for the next node at the same or a shallower level.
func resolveEnd(flat []flatNode, i int, parentEnd *int, pageCount int) *int {
	n := flat[i].node
	for j := i + 1; j < len(flat); j++ {
		next := flat[j].node
		if next.Level <= n.Level {
			end := next.PageStart - 1
			if end < n.PageStart {
				end = n.PageStart
			}
			return outline.IntPtr(end)
		}
	}
	if parentEnd != nil {
		return outline.IntPtr(*parentEnd)
	}
	if pageCount > 0 {
		end := pageCount
		if end < n.PageStart {
			end = n.PageStart
		}
		return outline.IntPtr(end)
	}
	return nil
}

func checkOrder(flat []flatNode, policy Policy) error {
	for i := 1; i < len(flat); i++ {
		prev := flat[i-1].node
		cur := flat[i].node
		if cur.PageStart >= prev.PageStart {
			continue
		}
		if policy == PolicyClamp {
			cur.PageStart = prev.PageStart
			continue
		}
		return fmt.Errorf("%w: %q starts on page %d after %q on page %d",
			ErrNonMonotonic, cur.Title, cur.PageStart, prev.Title, prev.PageStart)
	}
	return nil
}

func flatten(roots []*outline.Node) []flatNode {
	var out []flatNode
	var walk func(nodes []*outline.Node, parent int)
	walk = func(nodes []*outline.Node, parent int) {
		for _, n := range nodes {
			out = append(out, flatNode{node: n, parent: parent})
			walk(n.Children, len(out)-1)
		}
	}
	walk(roots, -1)
	return out
}

func clone(nodes []*outline.Node) []*outline.Node {
	if nodes == nil {
		return nil
	}
	out := make([]*outline.Node, len(nodes))
	for i, n := range nodes {
		c := *n
		if n.PageEnd != nil {
			c.PageEnd = outline.IntPtr(*n.PageEnd)
		}
		if n.Path != nil {
			c.Path = append([]string(nil), n.Path...)
		}
		c.Children = clone(n.Children)
		out[i] = &c
	}
	return out
}

// Chapter is a flattened view of one level-1 node and its sections.
type Chapter struct {
	Node     *outline.Node
	Sections []*outline.Node
}

// Chapters flattens every level-1 node's descendants into a pre-order section
// list. Nodes at other levels found at the root are skipped.
func Chapters(roots []*outline.Node) []Chapter {
	var out []Chapter
	for _, r := range roots {
		if r.Level != 1 {
			continue
		}
		ch := Chapter{Node: r}
		outline.Walk(r.Children, func(n *outline.Node) {
			if n.Level >= 2 {
				ch.Sections = append(ch.Sections, n)
			}
		})
		out = append(out, ch)
	}
	return out
}
