package source

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/docjournal/internal/outline"
)

// TextSource handles plain text files. Form feeds separate pages; blank lines
// separate paragraphs. The whole file is one chapter with one section.
type TextSource struct{}

func (s *TextSource) Load(r io.Reader, filename string) (*outline.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pages []string
	var current strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		for {
			i := strings.IndexByte(line, '\f')
			if i < 0 {
				break
			}
			current.WriteString(line[:i])
			pages = append(pages, current.String())
			current.Reset()
			line = line[i+1:]
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(current.String()) != "" || len(pages) == 0 {
		pages = append(pages, current.String())
	}

	b := newPageBuilder()
	title := titleFromFilename(filename)
	for i, text := range pages {
		if i > 0 {
			b.flush()
			b.pageNo++
		}
		b.open = true
		b.block(textToHTML(text))
	}
	if strings.TrimSpace(strings.Join(pages, "")) == "" {
		return &outline.Document{Title: title}, nil
	}
	return b.document(title)
}
