package tagext

import (
	"fmt"
	"strings"

	"github.com/dhowden/tag"
)

// id3Separators lists separators tried, in order, for id3v2 multi-
// value frames (TPE1/TPE2). NUL is handled separately since it only
// applies to id3v2.4 and is a true multi-value delimiter rather than a
// textual one.
var id3Separators = []string{";", "/"}

// id3v2Extractor is scoped to one id3v2 minor version per extraction,
// since the NUL multi-value separator is only valid in id3v2.4 frames.
type id3v2Extractor struct {
	version tag.Format
}

func (e id3v2Extractor) Extract(m tag.Metadata) (Metadata, error) {
	raw := m.Raw()

	md := Metadata{
		Title: m.Title(),
		Album: m.Album(),
	}

	artistRaw := firstString(raw, "TPE1")
	if artistRaw == "" {
		artistRaw = m.Artist()
	}
	md.Artists = e.splitID3Multi(artistRaw)

	albumArtistRaw := firstString(raw, "TPE2")
	if albumArtistRaw == "" {
		albumArtistRaw = m.AlbumArtist()
	}
	md.AlbumArtists = e.splitID3Multi(albumArtistRaw)

	if v, ok := raw["TCMP"]; ok {
		md.Compilation = truthy(v)
	}

	track, trackTotal := m.Track()
	if track > 0 {
		md.TrackNumber = intPtr(track)
	}
	if trackTotal > 0 {
		md.TrackTotal = intPtr(trackTotal)
	}
	if md.TrackNumber == nil {
		if n, t := parsePosition(firstString(raw, "TRCK")); n != nil {
			md.TrackNumber = n
			if t != nil {
				md.TrackTotal = t
			}
		}
	}

	disc, _ := m.Disc()
	if disc > 0 {
		md.DiscNumber = intPtr(disc)
	}
	if md.DiscNumber == nil {
		if n, _ := parsePosition(firstString(raw, "TPOS")); n != nil {
			md.DiscNumber = n
		}
	}
	md.DiscSubtitle = firstString(raw, "TSST")

	dateRaw := firstString(raw, "TDRC")
	if dateRaw == "" {
		dateRaw = firstString(raw, "TYER")
	}
	if dateRaw == "" && m.Year() > 0 {
		dateRaw = fmt.Sprintf("%d", m.Year())
	}
	if y, mo, d, ok := parseDate(dateRaw); ok {
		md.Year, md.Month, md.Day = y, mo, d
	}

	md.MusicBrainzID = firstString(raw, "UFID")
	if md.MusicBrainzID == "" {
		md.MusicBrainzID = txxx(raw, "MusicBrainz Release Track Id")
	}

	if lang := firstString(raw, "TLAN"); lang != "" {
		for _, part := range strings.FieldsFunc(lang, func(r rune) bool { return r == ';' || r == '/' }) {
			if canon, ok := NormalizeLanguage(part); ok {
				md.Languages = append(md.Languages, canon)
			}
		}
	}

	if genre := m.Genre(); genre != "" {
		md.Genres = e.splitID3Multi(genre)
	}

	if pic := m.Picture(); pic != nil {
		md.Picture = &Picture{MIMEType: pic.MIMEType, Data: pic.Data}
	}

	return md, nil
}

// splitID3Multi splits on NUL first (id3v2.4's native multi-value
// delimiter; id3v2.2/.3 frames never carry one), then on the configured
// textual separators within each resulting segment.
func (e id3v2Extractor) splitID3Multi(raw string) []string {
	if raw == "" {
		return nil
	}
	segments := []string{raw}
	if e.version == tag.ID3v2_4 {
		segments = strings.Split(raw, "\x00")
	}
	var out []string
	for _, seg := range segments {
		out = append(out, splitArtists(seg, id3Separators)...)
	}
	return out
}

func firstString(raw map[string]interface{}, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

// txxx looks up a TXXX user-defined text frame by its description.
func txxx(raw map[string]interface{}, desc string) string {
	v, ok := raw["TXXX:"+desc]
	if !ok {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "1" || strings.EqualFold(t, "true")
	case int:
		return t != 0
	default:
		return false
	}
}

func intPtr(i int) *int { return &i }
