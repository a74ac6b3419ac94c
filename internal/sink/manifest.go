package sink

import (
	"fmt"
	"strconv"
)

// MinimumCompatibility is the oldest host generation the output targets.
const MinimumCompatibility = "13"

// DefaultVersion is written when no module version is supplied.
const DefaultVersion = "1.0.0"

// Manifest is the module.json descriptor.
type Manifest struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Version       string        `json:"version"`
	Compatibility Compatibility `json:"compatibility"`
	Packs         []Pack        `json:"packs"`
	Styles        []string      `json:"styles"`
}

// Compatibility bounds the host versions the module runs on.
type Compatibility struct {
	Minimum  string `json:"minimum"`
	Verified string `json:"verified"`
}

// Pack declares one compendium pack.
type Pack struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Label string `json:"label"`
	Path  string `json:"path"`
}

// PackName is the journal pack name for a module.
func PackName(modID string) string {
	return modID + "-journals"
}

// BuildManifest returns the manifest for a module with one journal pack.
func BuildManifest(modID, title, version string) Manifest {
	if version == "" {
		version = DefaultVersion
	}
	pack := PackName(modID)
	return Manifest{
		ID:            modID,
		Title:         title,
		Version:       version,
		Compatibility: Compatibility{Minimum: MinimumCompatibility, Verified: MinimumCompatibility},
		Packs: []Pack{{
			Type:  "JournalEntry",
			Name:  pack,
			Label: title,
			Path:  "packs/" + pack,
		}},
		Styles: []string{"styles/" + modID + ".css"},
	}
}

// ValidateManifest checks a decoded module.json and returns every problem
// found. An empty result means the manifest is usable.
func ValidateManifest(m map[string]any) []string {
	var issues []string

	required := []struct {
		field string
		kind  string
		ok    func(any) bool
	}{
		{"id", "str", isString},
		{"title", "str", isString},
		{"version", "str", isString},
		{"compatibility", "dict", isMap},
		{"packs", "list", isList},
		{"styles", "list", isList},
	}
	for _, r := range required {
		v, present := m[r.field]
		if !present {
			issues = append(issues, "Missing required field: "+r.field)
			continue
		}
		if !r.ok(v) {
			issues = append(issues, fmt.Sprintf("Field '%s' must be %s", r.field, r.kind))
		}
	}

	if compat, ok := m["compatibility"].(map[string]any); ok {
		minimum, _ := compat["minimum"].(string)
		if n, err := strconv.Atoi(minimum); err != nil || n < 13 {
			issues = append(issues, "compatibility.minimum must be '13' or higher")
		}
	}

	if packs, ok := m["packs"].([]any); ok {
		if len(packs) == 0 {
			issues = append(issues, "packs must not be empty")
		} else if first, ok := packs[0].(map[string]any); !ok || first["type"] != "JournalEntry" {
			issues = append(issues, "first pack must have type 'JournalEntry'")
		}
	}
	return issues
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isMap(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

func isList(v any) bool {
	_, ok := v.([]any)
	return ok
}
