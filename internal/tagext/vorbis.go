package tagext

import (
	"fmt"
	"strings"

	"github.com/dhowden/tag"
)

var vorbisSeparators = []string{";"}

type vorbisExtractor struct{}

func (vorbisExtractor) Extract(m tag.Metadata) (Metadata, error) {
	raw := m.Raw()

	md := Metadata{
		Title: m.Title(),
		Album: m.Album(),
	}

	artistVals := rawValues(raw, "ARTIST")
	if len(artistVals) == 0 {
		artistVals = []string{m.Artist()}
	}
	md.Artists = mergeArtistValues(artistVals, vorbisSeparators)

	albumArtistVals := rawValues(raw, "ALBUMARTIST")
	if len(albumArtistVals) == 0 {
		albumArtistVals = rawValues(raw, "ALBUM ARTIST")
	}
	if len(albumArtistVals) == 0 && m.AlbumArtist() != "" {
		albumArtistVals = []string{m.AlbumArtist()}
	}
	md.AlbumArtists = mergeArtistValues(albumArtistVals, vorbisSeparators)

	if v := rawSingle(raw, "COMPILATION"); v != "" {
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
		if n, t := parsePosition(rawSingle(raw, "TRACKNUMBER")); n != nil {
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
		if n, _ := parsePosition(rawSingle(raw, "DISCNUMBER")); n != nil {
			md.DiscNumber = n
		}
	}
	md.DiscSubtitle = rawSingle(raw, "DISCSUBTITLE")

	dateRaw := rawSingle(raw, "DATE")
	if dateRaw == "" && m.Year() > 0 {
		dateRaw = fmt.Sprintf("%d", m.Year())
	}
	if y, mo, d, ok := parseDate(dateRaw); ok {
		md.Year, md.Month, md.Day = y, mo, d
	}

	md.MusicBrainzID = rawSingle(raw, "MUSICBRAINZ_RELEASETRACKID")
	if md.MusicBrainzID == "" {
		md.MusicBrainzID = rawSingle(raw, "MUSICBRAINZ_TRACKID")
	}

	if lang := rawSingle(raw, "LANGUAGE"); lang != "" {
		for _, part := range strings.FieldsFunc(lang, func(r rune) bool { return r == ';' || r == '/' }) {
			if canon, ok := NormalizeLanguage(part); ok {
				md.Languages = append(md.Languages, canon)
			}
		}
	}

	if genres := rawValues(raw, "GENRE"); len(genres) > 0 {
		md.Genres = mergeArtistValues(genres, vorbisSeparators)
	} else if g := m.Genre(); g != "" {
		md.Genres = splitArtists(g, vorbisSeparators)
	}

	if pic := m.Picture(); pic != nil {
		md.Picture = &Picture{MIMEType: pic.MIMEType, Data: pic.Data}
	}

	return md, nil
}

// rawValues returns every value stored under key, handling both the
// single-string and repeated-comment ([]string) shapes dhowden/tag may
// surface for a vorbis comment key.
func rawValues(raw map[string]interface{}, key string) []string {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return t
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprintf("%v", e))
		}
		return out
	default:
		return []string{fmt.Sprintf("%v", t)}
	}
}

func rawSingle(raw map[string]interface{}, key string) string {
	vals := rawValues(raw, key)
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
