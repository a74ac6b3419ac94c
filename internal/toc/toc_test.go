package toc

import (
	"strings"
	"testing"

	"github.com/dgallion1/docjournal/internal/ids"
	"github.com/dgallion1/docjournal/internal/journal"
)

func page(id, name string, sort int) *journal.Page {
	p, err := journal.NewTextPage(id, name, 1, "", sort)
	if err != nil {
		panic(err)
	}
	return p
}

func sampleEntries() []*journal.Entry {
	return []*journal.Entry{
		journal.NewEntry("ch_id", "Chapter", []*journal.Page{
			page("p1_id", "Overview", 1000),
			page("p2_id", "Usage", 2000),
		}, nil),
		journal.NewEntry("empty_id", "Empty", nil, nil),
	}
}

func TestUUIDLink(t *testing.T) {
	got := UUIDLink("ch_id", "p1_id", "Overview")
	want := "@UUID[JournalEntry.ch_id.JournalEntryPage.p1_id]{Overview}"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestBuildEntry_TokensInOrder(t *testing.T) {
	entry, err := BuildEntry("mod", sampleEntries(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := entry.Pages[0].Text.Content

	first := strings.Index(body, "@UUID[JournalEntry.ch_id.JournalEntryPage.p1_id]{Overview}")
	second := strings.Index(body, "@UUID[JournalEntry.ch_id.JournalEntryPage.p2_id]{Usage}")
	if first < 0 || second < 0 {
		t.Fatalf("expected both tokens in body, got %s", body)
	}
	if first > second {
		t.Errorf("expected Overview before Usage")
	}
	if !strings.Contains(body, "<h1>Table of Contents</h1>") {
		t.Errorf("expected default title heading, got %s", body)
	}
	if !strings.Contains(body, "<h2>Empty</h2>") {
		t.Errorf("expected empty chapter heading, got %s", body)
	}
	if strings.Count(body, "<ul>") != 1 {
		t.Errorf("expected exactly one list, got %s", body)
	}
}

func TestBuildEntry_IDs(t *testing.T) {
	entry, err := BuildEntry("mod", sampleEntries(), Options{Title: "Contents", FolderPath: []string{"Doc"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.ID != ids.EntryID("mod", []string{"toc"}) {
		t.Errorf("unexpected toc entry id %s", entry.ID)
	}
	if entry.Pages[0].ID != ids.PageID("mod", []string{"toc"}, "Contents") {
		t.Errorf("unexpected toc page id %s", entry.Pages[0].ID)
	}
	if entry.Name != "Contents" {
		t.Errorf("expected name Contents, got %q", entry.Name)
	}
	if err := journal.ValidateEntry(entry); err != nil {
		t.Errorf("expected valid toc entry, got %v", err)
	}
}

func TestCollectMetadata_SortsBySortValue(t *testing.T) {
	e := journal.NewEntry("e", "E", []*journal.Page{
		page("b", "B", 2000),
		page("a", "A", 1000),
		page("c", "C", 3000),
	}, nil)
	refs := CollectMetadata([]*journal.Entry{e})
	var got []string
	for _, p := range refs[0].Pages {
		got = append(got, p.ID)
	}
	if strings.Join(got, ",") != "a,b,c" {
		t.Errorf("expected a,b,c, got %v", got)
	}
	if e.Pages[0].ID != "b" {
		t.Errorf("expected source entry to be left untouched")
	}
}

func TestValidate_Clean(t *testing.T) {
	entries := sampleEntries()
	entry, err := BuildEntry("mod", entries, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if issues := Validate(entry, entries); len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}

func TestValidate_CorruptedLinks(t *testing.T) {
	entries := sampleEntries()
	entry, err := BuildEntry("mod", entries, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	orig := entry.Pages[0].Text.Content

	entry.Pages[0].Text.Content = strings.Replace(orig, "JournalEntry.ch_id.JournalEntryPage.p1_id", "JournalEntry.bogus.JournalEntryPage.p1_id", 1)
	issues := Validate(entry, entries)
	if len(issues) != 1 || !strings.Contains(issues[0], "missing entry") {
		t.Errorf("expected one missing entry issue, got %v", issues)
	}

	entry.Pages[0].Text.Content = strings.Replace(orig, "JournalEntryPage.p2_id", "JournalEntryPage.nope", 1)
	issues = Validate(entry, entries)
	if len(issues) != 1 || !strings.Contains(issues[0], "missing page") {
		t.Errorf("expected one missing page issue, got %v", issues)
	}
	if !strings.Contains(issues[0], `"Usage"`) {
		t.Errorf("expected issue to name the label, got %q", issues[0])
	}
}

func TestExtractTargets(t *testing.T) {
	body := `<ul><li>@UUID[JournalEntry.e1.JournalEntryPage.p1]{A &amp; B}</li>` +
		`<li>@UUID[JournalEntry.broken]{x}</li>` +
		`<li>see @UUID[JournalEntry.e2.JournalEntryPage.p2]{Two} and more</li></ul>`
	targets, err := ExtractTargets(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %+v", targets)
	}
	if targets[0] != (Target{EntryID: "e1", PageID: "p1", Label: "A & B"}) {
		t.Errorf("unexpected first target %+v", targets[0])
	}
	if targets[1].EntryID != "e2" || targets[1].Label != "Two" {
		t.Errorf("unexpected second target %+v", targets[1])
	}
}

func TestBuildEntry_EscapesLabels(t *testing.T) {
	entries := []*journal.Entry{
		journal.NewEntry("e", "Tom & Jerry", []*journal.Page{page("p", "<b>", 1000)}, nil),
	}
	entry, err := BuildEntry("mod", entries, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := entry.Pages[0].Text.Content
	if strings.Contains(body, "<b>") {
		t.Errorf("expected label to be escaped, got %s", body)
	}
	if issues := Validate(entry, entries); len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}

func TestRenderHTML_Wrapped(t *testing.T) {
	body, err := RenderHTML("Contents", CollectMetadata(sampleEntries()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(body, `<div class="docjournal toc">`) || !strings.HasSuffix(body, "</div>") {
		t.Errorf("expected body wrapped in the toc div, got %s", body)
	}
	if strings.Count(body, "<div") != 1 {
		t.Errorf("expected a single wrapper, got %s", body)
	}
}

func TestUUIDLink_BracesInLabel(t *testing.T) {
	got := UUIDLink("e", "p", "Setup {advanced}")
	want := "@UUID[JournalEntry.e.JournalEntryPage.p]{Setup (advanced)}"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	targets, err := ExtractTargets("<p>" + got + "</p>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(targets) != 1 || targets[0].Label != "Setup (advanced)" {
		t.Errorf("expected the whole label back, got %+v", targets)
	}
}

func TestBuildEntry_SharedGenerator(t *testing.T) {
	gen := ids.NewGenerator("mod", 16)
	shared, err := BuildEntry("mod", sampleEntries(), Options{IDs: gen})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	plain, err := BuildEntry("mod", sampleEntries(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shared.ID != plain.ID || shared.Pages[0].ID != plain.Pages[0].ID {
		t.Errorf("expected identical ids with and without a generator")
	}
	if gen.Len() != 2 {
		t.Errorf("expected entry and page ids memoized, got %d", gen.Len())
	}

	other, err := BuildEntry("other", sampleEntries(), Options{IDs: gen})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.ID != ids.EntryID("other", Path) {
		t.Errorf("expected a generator for another module to be ignored")
	}
}
