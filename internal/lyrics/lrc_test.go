package lyrics

import (
	"strings"
	"testing"
)

const sampleLRC = `[ti:Test Song]
[ar:Test Artist]
[la:en]
[00:12.34]First line
[00:15.00]Second line
[00:01.00]Earlier line out of order
`

func TestParse(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleLRC))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Metadata.Title != "Test Song" {
		t.Errorf("title = %q", doc.Metadata.Title)
	}
	if len(doc.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(doc.Lines))
	}
	if doc.Lines[0].TimeMS != 1000 {
		t.Errorf("expected lines sorted by time, first = %d", doc.Lines[0].TimeMS)
	}
	if !doc.Synced() {
		t.Error("expected Synced() true")
	}
}

func TestParseTimestampFormula(t *testing.T) {
	l, ok := parseTimestampLine("[01:23.45]hello")
	if !ok {
		t.Fatal("expected timestamp to parse")
	}
	want := (1*60+23)*1000 + 45*10
	if l.TimeMS != want {
		t.Errorf("TimeMS = %d, want %d", l.TimeMS, want)
	}
}

func TestDetectLanguageFromTag(t *testing.T) {
	doc := &Document{Metadata: Metadata{Language: "en"}}
	if got := doc.DetectLanguage(); got != "eng" {
		t.Errorf("DetectLanguage() = %q, want eng", got)
	}
}
