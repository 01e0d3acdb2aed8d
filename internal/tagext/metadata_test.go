package tagext

import "testing"

func TestNormalizeCompilation(t *testing.T) {
	cases := []struct {
		name       string
		indicator  bool
		artists    []string
		albumArtists []string
		want       bool
	}{
		{"no indicator", false, []string{"A"}, []string{"Various"}, false},
		{"subset of album artists", true, []string{"A"}, []string{"A", "B"}, false},
		{"not subset", true, []string{"A"}, []string{"Various"}, true},
		{"empty album artists", true, []string{"A"}, nil, false},
	}
	for _, c := range cases {
		got := normalizeCompilation(c.indicator, c.artists, c.albumArtists)
		if got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestNormalizeDefaultsAlbumArtists(t *testing.T) {
	md := Metadata{Artists: []string{"Solo Artist"}}
	out := Normalize(md)
	if len(out.AlbumArtists) != 1 || out.AlbumArtists[0] != "Solo Artist" {
		t.Fatalf("expected album artists to default to artists, got %v", out.AlbumArtists)
	}
}
