// Package ids derives deterministic content-addressed identifiers.
//
// An id is the first 16 hex characters of sha1("<mod>|<seg>|...|<disambiguator>").
// Identical inputs give identical ids across processes, so cross references can
// be written before anything is persisted.
package ids

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Length is the number of hex characters kept from the digest.
const Length = 16

const separator = "|"

var validID = regexp.MustCompile(`^[0-9a-f]{16}$`)

// SHA1Hex16 hashes s and returns the first 16 lowercase hex characters.
func SHA1Hex16(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:Length]
}

// Seed returns the canonical string hashed for (modID, path, disambiguator).
// An empty disambiguator is omitted along with its separator.
func Seed(modID string, path []string, disambiguator string) string {
	parts := make([]string, 0, len(path)+2)
	parts = append(parts, modID)
	parts = append(parts, path...)
	if disambiguator != "" {
		parts = append(parts, disambiguator)
	}
	return strings.Join(parts, separator)
}

// Make computes the id for (modID, path, disambiguator).
func Make(modID string, path []string, disambiguator string) string {
	return SHA1Hex16(Seed(modID, path, disambiguator))
}

// EntryID is the id of the journal entry at path.
func EntryID(modID string, path []string) string {
	return Make(modID, path, "")
}

// PageID is the id of the page named name inside the entry at entryPath.
func PageID(modID string, entryPath []string, name string) string {
	return Make(modID, entryPath, name)
}

// Valid reports whether id looks like an id produced by this package.
func Valid(id string) bool {
	return validID.MatchString(id)
}

// DefaultCacheSize bounds a Generator's memo when no size is given.
const DefaultCacheSize = 4096

// Generator memoizes ids for one module during one build.
type Generator struct {
	modID string
	cache *lru.Cache[string, string]
}

// NewGenerator returns a generator for modID. size <= 0 uses DefaultCacheSize.
func NewGenerator(modID string, size int) *Generator {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(err)
	}
	return &Generator{modID: modID, cache: cache}
}

// ModID returns the module id the generator hashes with.
func (g *Generator) ModID() string {
	return g.modID
}

// Entry returns EntryID(modID, path).
func (g *Generator) Entry(path []string) string {
	return g.lookup(Seed(g.modID, path, ""))
}

// Page returns PageID(modID, entryPath, name).
func (g *Generator) Page(entryPath []string, name string) string {
	return g.lookup(Seed(g.modID, entryPath, name))
}

// Len returns the number of memoized ids.
func (g *Generator) Len() int {
	return g.cache.Len()
}

func (g *Generator) lookup(seed string) string {
	if id, ok := g.cache.Get(seed); ok {
		return id
	}
	id := SHA1Hex16(seed)
	g.cache.Add(seed, id)
	return id
}
