// Package lyrics parses LRC-format lyrics, embedded or as a sidecar
// file, and auto-detects language when the LRC has no [la:] tag.
// Grounded on the teacher's internal/services/lrc_parser.go.
package lyrics

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pemistahl/lingua-go"

	"github.com/nghego/nghego/internal/tagext"
)

type Line struct {
	TimeMS int
	Text   string
}

// Metadata is the [tag:value] header block of an LRC file. Description
// is the identifying key used alongside language to key the Lyric
// entity's composite (song, description, language, external) constraint;
// it is not part of the original LRC spec, so teacher's parser never
// recognized it.
type Metadata struct {
	Title       string
	Artist      string
	Album       string
	By          string
	Offset      int
	Length      string
	Language    string
	Description string
}

type Document struct {
	Metadata Metadata
	Lines    []Line
}

var (
	metadataRegex  = regexp.MustCompile(`^\[([a-zA-Z]+):(.+?)\]$`)
	timestampRegex = regexp.MustCompile(`^\[(\d{1,2}):(\d{2})\.(\d{2})\](.*)$`)
)

func Parse(r io.Reader) (*Document, error) {
	doc := &Document{}
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if parseMetadataLine(line, &doc.Metadata) {
			continue
		}
		if l, ok := parseTimestampLine(line); ok {
			doc.Lines = append(doc.Lines, l)
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			continue
		}
		doc.Lines = append(doc.Lines, Line{TimeMS: 0, Text: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lrc: %w", err)
	}

	sort.SliceStable(doc.Lines, func(i, j int) bool { return doc.Lines[i].TimeMS < doc.Lines[j].TimeMS })
	return doc, nil
}

func parseMetadataLine(line string, md *Metadata) bool {
	m := metadataRegex.FindStringSubmatch(line)
	if len(m) != 3 {
		return false
	}
	tag := strings.ToLower(m[1])
	value := strings.TrimSpace(m[2])
	switch tag {
	case "ti", "title":
		md.Title = value
	case "ar", "artist":
		md.Artist = value
	case "al", "album":
		md.Album = value
	case "by":
		md.By = value
	case "offset":
		if off, err := strconv.Atoi(value); err == nil {
			md.Offset = off
		}
	case "length":
		md.Length = value
	case "la", "lang", "language":
		md.Language = value
	case "desc":
		md.Description = value
	}
	return true
}

// parseTimestampLine converts [mm:ss.xx]text into milliseconds using
// (min*60+sec)*1000 + centi*10, the exact formula the teacher's parser
// uses.
func parseTimestampLine(line string) (Line, bool) {
	m := timestampRegex.FindStringSubmatch(line)
	if len(m) != 5 {
		return Line{}, false
	}
	minutes, err1 := strconv.Atoi(m[1])
	seconds, err2 := strconv.Atoi(m[2])
	centi, err3 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return Line{}, false
	}
	totalMS := (minutes*60+seconds)*1000 + centi*10
	return Line{TimeMS: totalMS, Text: strings.TrimSpace(m[4])}, true
}

var detectorLanguages = []lingua.Language{
	lingua.English, lingua.Arabic, lingua.Urdu, lingua.Hindi, lingua.Spanish,
	lingua.French, lingua.German, lingua.Japanese, lingua.Korean, lingua.Chinese,
	lingua.Portuguese, lingua.Italian, lingua.Russian,
}

// DetectLanguage returns an ISO 639-2 code: the document's own [la:] tag
// if present and recognized, otherwise a lingua-go guess from the lyric
// text, defaulting to "eng" when neither yields a confident result.
func (d *Document) DetectLanguage() string {
	if d.Metadata.Language != "" {
		if canon, ok := tagext.NormalizeLanguage(d.Metadata.Language); ok {
			return canon
		}
	}

	var sb strings.Builder
	for _, l := range d.Lines {
		if strings.TrimSpace(l.Text) != "" {
			sb.WriteString(l.Text)
			sb.WriteString(" ")
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "eng"
	}

	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(detectorLanguages...).
		WithMinimumRelativeDistance(0.9).
		Build()

	lang, exists := detector.DetectLanguageOf(text)
	if !exists {
		return "eng"
	}
	switch lang {
	case lingua.English:
		return "eng"
	case lingua.Arabic:
		return "ara"
	case lingua.Urdu:
		return "urd"
	case lingua.Hindi:
		return "hin"
	case lingua.Spanish:
		return "spa"
	case lingua.French:
		return "fre"
	case lingua.German:
		return "ger"
	case lingua.Japanese:
		return "jpn"
	case lingua.Korean:
		return "kor"
	case lingua.Chinese:
		return "chi"
	case lingua.Portuguese:
		return "por"
	case lingua.Italian:
		return "ita"
	case lingua.Russian:
		return "rus"
	default:
		return "eng"
	}
}

// Synced reports whether any line carries a real timestamp.
func (d *Document) Synced() bool {
	for _, l := range d.Lines {
		if l.TimeMS > 0 {
			return true
		}
	}
	return false
}

// PlainText joins every line with newlines, discarding timestamps, for
// storage when the caller wants the unsynced Lyric.Content form.
func (d *Document) PlainText() string {
	parts := make([]string, 0, len(d.Lines))
	for _, l := range d.Lines {
		parts = append(parts, l.Text)
	}
	return strings.Join(parts, "\n")
}

// SyncedText renders every line back into "[mm:ss.xx]text" form for
// storage as Lyric.Content when Synced() is true.
func (d *Document) SyncedText() string {
	parts := make([]string, 0, len(d.Lines))
	for _, l := range d.Lines {
		min := l.TimeMS / 60000
		sec := (l.TimeMS / 1000) % 60
		centi := (l.TimeMS / 10) % 100
		parts = append(parts, fmt.Sprintf("[%02d:%02d.%02d]%s", min, sec, centi, l.Text))
	}
	return strings.Join(parts, "\n")
}
