package tagext

import "testing"

func TestArtistIndex(t *testing.T) {
	ignored := []string{"the", "a", "an"}
	cases := []struct {
		name string
		want rune
	}{
		{"The Beatles", 'B'},
		{"Air", 'A'},
		{"An Album Artist", 'A'},
		{"2Pac", '#'},
		{"!!!", '*'},
		{"Ünlü", 'Ü'},
		{"", '*'},
	}
	for _, c := range cases {
		got := ArtistIndex(c.name, ignored)
		if got != c.want {
			t.Errorf("ArtistIndex(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}
