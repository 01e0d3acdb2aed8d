// Package tagext extracts and normalizes audio tag metadata across the
// id3v2 and vorbis-comment dialects into one Metadata schema, grounded
// on github.com/dhowden/tag (teacher's tag-parsing dependency).
package tagext

import (
	"fmt"

	"github.com/dhowden/tag"

	"github.com/nghego/nghego/internal/apperr"
)

// Picture is an embedded cover image.
type Picture struct {
	MIMEType string
	Data     []byte
}

// Metadata is the normalized, dialect-independent view of one audio
// file's tags.
type Metadata struct {
	Title         string
	Album         string
	Artists       []string
	AlbumArtists  []string
	Compilation   bool // raw indicator from the tag, before normalization
	TrackNumber   *int
	TrackTotal    *int
	DiscNumber    *int
	DiscSubtitle  string
	Year          *int
	Month         *int
	Day           *int
	MusicBrainzID string
	Languages     []string
	Genres        []string
	Picture       *Picture
}

// Extractor is implemented once per tag dialect.
type Extractor interface {
	Extract(m tag.Metadata) (Metadata, error)
}

// ExtractFrom reads metadata from m and picks the extractor matching
// the detected format.
func ExtractFrom(m tag.Metadata) (Metadata, error) {
	if m == nil {
		return Metadata{}, apperr.New(apperr.KindMediaParse, "no tag metadata")
	}
	switch m.Format() {
	case tag.ID3v2_2, tag.ID3v2_3, tag.ID3v2_4:
		return (id3v2Extractor{version: m.Format()}).Extract(m)
	case tag.VORBIS:
		return (vorbisExtractor{}).Extract(m)
	case tag.ID3v1:
		// ID3v1 has no multi-valued raw frames; fall back to the
		// high-level accessors only, through the vorbis-shaped path
		// since both treat Raw() values as plain strings.
		return (vorbisExtractor{}).Extract(m)
	default:
		return Metadata{}, apperr.New(apperr.KindMediaParse, fmt.Sprintf("unsupported tag format %q", m.Format()))
	}
}

// Normalize applies the compilation-flag and album-artist defaulting
// rules shared by both dialects. It mutates and returns md.
func Normalize(md Metadata) Metadata {
	if len(md.AlbumArtists) == 0 {
		md.AlbumArtists = append([]string(nil), md.Artists...)
	}
	md.Compilation = normalizeCompilation(md.Compilation, md.Artists, md.AlbumArtists)
	return md
}

// normalizeCompilation is true only when the tag's own indicator is
// set AND the song artists are not a subset of the album artists AND
// the album artists are non-empty. A compilation indicator on a song
// whose artist already matches its album artist is not a "various
// artists" compilation track, just a normally-tagged song.
func normalizeCompilation(indicator bool, songArtists, albumArtists []string) bool {
	if !indicator || len(albumArtists) == 0 {
		return false
	}
	albumSet := make(map[string]struct{}, len(albumArtists))
	for _, a := range albumArtists {
		albumSet[a] = struct{}{}
	}
	for _, a := range songArtists {
		if _, ok := albumSet[a]; !ok {
			return true
		}
	}
	return false
}
