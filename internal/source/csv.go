package source

import (
	"encoding/csv"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/dgallion1/docjournal/internal/outline"
	"github.com/dgallion1/docjournal/internal/structure"
)

// csvRowsPerPage groups data rows so each page holds a manageable table.
const csvRowsPerPage = 20

// CSVSource handles CSV files. The first row is the header; data rows are
// split into pages of tables, one section per page.
type CSVSource struct{}

func (s *CSVSource) Load(r io.Reader, filename string) (*outline.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	title := titleFromFilename(filename)
	doc := &outline.Document{Title: title}
	if len(records) < 2 {
		return doc, nil
	}

	headers := records[0]
	dataRows := records[1:]
	items := []outline.Item{{Title: title, Level: 1, Page: 1}}
	for i := 0; i < len(dataRows); i += csvRowsPerPage {
		end := min(i+csvRowsPerPage, len(dataRows))
		pageNo := len(doc.Pages) + 1
		doc.Pages = append(doc.Pages, outline.Page{Number: pageNo, HTML: csvTable(headers, dataRows[i:end])})
		items = append(items, outline.Item{
			Title: fmt.Sprintf("Rows %d-%d", i+2, end+1), // 1-indexed, skip header
			Level: 2,
			Page:  pageNo,
		})
	}
	doc.PageCount = len(doc.Pages)

	doc.Outline, err = structure.Nest(items)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func csvTable(headers []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("<table>\n<thead><tr>")
	for _, h := range headers {
		b.WriteString("<th>" + html.EscapeString(h) + "</th>")
	}
	b.WriteString("</tr></thead>\n<tbody>\n")
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			b.WriteString("<td>" + html.EscapeString(cell) + "</td>")
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</tbody>\n</table>")
	return b.String()
}
