package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dgallion1/docjournal/internal/ids"
	"github.com/dgallion1/docjournal/internal/journal"
	"github.com/dgallion1/docjournal/internal/toc"
)

// Verify re-reads a module written by Publish and reports every problem:
// manifest fields, entry invariants, duplicate entry ids and dangling table
// of contents links.
// The error is only set when the module cannot be read at all.
func (s *FileSink) Verify(modID string) ([]string, error) {
	var issues []string

	data, err := os.ReadFile(filepath.Join(s.ModuleDir(modID), "module.json"))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var manifest map[string]any
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	issues = append(issues, ValidateManifest(manifest)...)

	files, err := filepath.Glob(filepath.Join(s.JournalsDir(modID), "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	tocID := ids.EntryID(modID, toc.Path)
	var tocEntry *journal.Entry
	var entries []*journal.Entry
	owners := make(map[string]string, len(files))
	for _, path := range files {
		e, err := readEntry(path)
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			continue
		}
		if err := journal.ValidateEntry(e); err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", filepath.Base(path), err))
		}
		if prev, ok := owners[e.ID]; ok {
			issues = append(issues, fmt.Sprintf("duplicate entry id %s in %s and %s", e.ID, prev, filepath.Base(path)))
			continue
		}
		owners[e.ID] = filepath.Base(path)
		if e.ID == tocID {
			tocEntry = e
			continue
		}
		entries = append(entries, e)
	}

	if tocEntry == nil {
		issues = append(issues, "missing table of contents entry "+tocID)
		return issues, nil
	}
	return append(issues, toc.Validate(tocEntry, entries)...), nil
}

func readEntry(path string) (*journal.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var e journal.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parse entry: %w", err)
	}
	return &e, nil
}
