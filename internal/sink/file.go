package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docjournal/internal/journal"
	"github.com/dgallion1/docjournal/internal/slug"
)

// FileSink writes a module directory:
//
//	<Root>/<mod>/module.json
//	<Root>/<mod>/sources/journals/<name-slug>_<id>.json
type FileSink struct {
	Root    string
	Version string
}

// ModuleDir returns the directory a module is written to.
func (s *FileSink) ModuleDir(modID string) string {
	return filepath.Join(s.Root, modID)
}

// JournalsDir returns the directory holding one JSON file per entry.
func (s *FileSink) JournalsDir(modID string) string {
	return filepath.Join(s.ModuleDir(modID), "sources", "journals")
}

// EntryFilename names the file for one entry.
func EntryFilename(e *journal.Entry) string {
	return slug.Make(e.Name) + "_" + e.ID + ".json"
}

func (s *FileSink) Publish(ctx context.Context, pub Publication) error {
	if err := pub.Validate(); err != nil {
		return err
	}
	if strings.ContainsAny(pub.ModID, `/\`) || pub.ModID == "." || pub.ModID == ".." {
		return fmt.Errorf("invalid mod id %q", pub.ModID)
	}

	dir := s.JournalsDir(pub.ModID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create journals dir: %w", err)
	}

	for _, e := range pub.Entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeJSON(filepath.Join(dir, EntryFilename(e)), e); err != nil {
			return err
		}
	}

	manifest := BuildManifest(pub.ModID, pub.Title, s.Version)
	if issues := validateTyped(manifest); len(issues) > 0 {
		return fmt.Errorf("invalid manifest: %s", strings.Join(issues, "; "))
	}
	return writeJSON(filepath.Join(s.ModuleDir(pub.ModID), "module.json"), manifest)
}

func validateTyped(m Manifest) []string {
	data, err := json.Marshal(m)
	if err != nil {
		return []string{err.Error()}
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return []string{err.Error()}
	}
	return ValidateManifest(raw)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
