package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/dgallion1/docjournal/internal/outline"
	"github.com/dgallion1/docjournal/internal/structure"
)

// BundleSchema describes a pre-parsed document bundle: an outline (nested
// nodes or flat items) plus per-page HTML or Markdown.
const BundleSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["pages"],
  "properties": {
    "title": {"type": "string"},
    "page_count": {"type": "integer", "minimum": 0},
    "assets_dir": {"type": "string"},
    "outline": {"type": "array", "items": {"$ref": "#/$defs/node"}},
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "level", "page"],
        "properties": {
          "title": {"type": "string"},
          "level": {"type": "integer", "minimum": 1},
          "page": {"type": "integer", "minimum": 1}
        }
      }
    },
    "pages": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["page_no"],
        "properties": {
          "page_no": {"type": "integer", "minimum": 1},
          "html": {"type": "string"},
          "markdown": {"type": "string"}
        }
      }
    }
  },
  "$defs": {
    "node": {
      "type": "object",
      "required": ["title", "level", "page_start"],
      "properties": {
        "title": {"type": "string"},
        "level": {"type": "integer", "minimum": 1},
        "page_start": {"type": "integer", "minimum": 1},
        "page_end": {"type": ["integer", "null"], "minimum": 1},
        "children": {"type": "array", "items": {"$ref": "#/$defs/node"}},
        "path": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func bundleSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("bundle.json", bytes.NewReader([]byte(BundleSchema))); err != nil {
			schemaErr = fmt.Errorf("load bundle schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("bundle.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile bundle schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// Bundle is the wire form of a pre-parsed document.
type Bundle struct {
	Title     string          `json:"title"`
	PageCount int             `json:"page_count"`
	AssetsDir string          `json:"assets_dir,omitempty"`
	Outline   []*outline.Node `json:"outline,omitempty"`
	Items     []outline.Item  `json:"items,omitempty"`
	Pages     []BundlePage    `json:"pages"`
}

// BundlePage carries one page as HTML or Markdown.
type BundlePage struct {
	Number   int    `json:"page_no"`
	HTML     string `json:"html,omitempty"`
	Markdown string `json:"markdown,omitempty"`
}

// BundleSource handles JSON and YAML bundles.
type BundleSource struct {
	YAML bool
}

func (s *BundleSource) Load(r io.Reader, filename string) (*outline.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	if s.YAML {
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parse yaml bundle: %w", err)
		}
		if data, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("convert yaml bundle: %w", err)
		}
	}

	doc, err := DecodeBundle(data)
	if err != nil {
		return nil, err
	}
	if doc.Title == "" {
		doc.Title = titleFromFilename(filename)
	}
	return doc, nil
}

// DecodeBundle validates JSON bundle bytes and converts them to a document.
func DecodeBundle(data []byte) (*outline.Document, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse bundle: %w", err)
	}
	schema, err := bundleSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("bundle does not match schema: %w", err)
	}

	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	return b.Document()
}

// Document converts the bundle, rendering Markdown pages to HTML and nesting
// flat items when no outline tree is given.
func (b *Bundle) Document() (*outline.Document, error) {
	doc := &outline.Document{
		Title:     b.Title,
		PageCount: b.PageCount,
		AssetsDir: b.AssetsDir,
		Outline:   b.Outline,
	}
	if len(doc.Outline) == 0 && len(b.Items) > 0 {
		nodes, err := structure.Nest(b.Items)
		if err != nil {
			return nil, err
		}
		doc.Outline = nodes
	}
	for _, p := range b.Pages {
		body := p.HTML
		if body == "" && p.Markdown != "" {
			rendered, err := RenderMarkdown(p.Markdown)
			if err != nil {
				return nil, fmt.Errorf("page %d: %w", p.Number, err)
			}
			body = rendered
		}
		doc.Pages = append(doc.Pages, outline.Page{Number: p.Number, HTML: body})
	}
	return doc, nil
}
