// Package convert runs one document through the whole assembly: outline
// resolution, IR, journal entries, table of contents and link validation.
package convert

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docjournal/internal/ids"
	"github.com/dgallion1/docjournal/internal/ir"
	"github.com/dgallion1/docjournal/internal/journal"
	"github.com/dgallion1/docjournal/internal/outline"
	"github.com/dgallion1/docjournal/internal/structure"
	"github.com/dgallion1/docjournal/internal/toc"
)

// ErrMissingModID is returned when a request has no module id.
var ErrMissingModID = errors.New("mod_id is required")

// Options tunes a conversion.
type Options struct {
	TOCTitle  string
	Policy    structure.Policy
	CacheSize int // id memo size, 0 for the default
}

// Request is one document to convert.
type Request struct {
	ModID    string
	Title    string // falls back to Document.Title
	Document *outline.Document
	Options  Options
}

// Result is everything one conversion produces.
type Result struct {
	IR      *ir.Document     `json:"ir"`
	Entries []*journal.Entry `json:"entries"`
	TOC     *journal.Entry   `json:"toc"`
	Issues  []string         `json:"issues"`
}

// All returns the chapter entries followed by the TOC entry.
func (r *Result) All() []*journal.Entry {
	out := make([]*journal.Entry, 0, len(r.Entries)+1)
	out = append(out, r.Entries...)
	if r.TOC != nil {
		out = append(out, r.TOC)
	}
	return out
}

// PageCount returns the number of pages across chapter entries.
func (r *Result) PageCount() int {
	n := 0
	for _, e := range r.Entries {
		n += len(e.Pages)
	}
	return n
}

// Run converts req. obs may be nil. TOC issues are reported in the result,
// never as an error.
func Run(req Request, obs ir.Observer) (*Result, error) {
	if req.ModID == "" {
		return nil, ErrMissingModID
	}
	if req.Document == nil {
		return nil, errors.New("document is required")
	}
	title := req.Title
	if title == "" {
		title = req.Document.Title
	}

	resolved, err := structure.Resolve(req.Document.Outline, req.Document.LastPage(), structure.Options{Policy: req.Options.Policy})
	if err != nil {
		return nil, fmt.Errorf("resolve outline: %w", err)
	}
	doc := *req.Document
	doc.Outline = resolved

	irDoc := ir.Build(&doc, req.ModID, title, obs)

	gen := ids.NewGenerator(req.ModID, req.Options.CacheSize)
	entries, err := journal.MapEntries(irDoc, gen)
	if err != nil {
		return nil, fmt.Errorf("map entries: %w", err)
	}

	tocEntry, err := toc.BuildEntry(req.ModID, entries, toc.Options{
		Title:      req.Options.TOCTitle,
		FolderPath: []string{title},
		IDs:        gen,
	})
	if err != nil {
		return nil, fmt.Errorf("build toc: %w", err)
	}

	return &Result{
		IR:      irDoc,
		Entries: entries,
		TOC:     tocEntry,
		Issues:  toc.Validate(tocEntry, entries),
	}, nil
}

// RunLogged is Run with a debug observer and one summary line on logger.
func RunLogged(logger *slog.Logger, req Request) (*Result, error) {
	start := time.Now()
	res, err := Run(req, LogObserver(logger))
	if err != nil {
		logger.Error("conversion failed", "mod_id", req.ModID, "error", err)
		return nil, err
	}
	logger.Info("conversion complete",
		"mod_id", req.ModID,
		"title", res.IR.Title,
		"entries", len(res.Entries),
		"pages", res.PageCount(),
		"issues", len(res.Issues),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	for _, issue := range res.Issues {
		logger.Warn("toc issue", "mod_id", req.ModID, "issue", issue)
	}
	return res, nil
}

// LogObserver reports IR progress as debug log lines.
func LogObserver(logger *slog.Logger) ir.Observer {
	return func(e ir.Event) {
		switch e.Kind {
		case ir.EventStart:
			logger.Debug("ir build started", "title", e.DocTitle)
		case ir.EventChapterAssembled:
			logger.Debug("chapter assembled", "chapter", e.Chapter)
		case ir.EventSectionAssembled:
			logger.Debug("section assembled", "chapter", e.Chapter, "section", e.Section)
		case ir.EventFinalized:
			logger.Debug("ir build finished", "chapters", e.Chapters, "sections", e.Sections)
		}
	}
}
