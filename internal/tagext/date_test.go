package tagext

import "testing"

func TestParseDate(t *testing.T) {
	cases := []struct {
		raw             string
		wantY, wantM, wantD int
		wantOK          bool
	}{
		{"2004-03-02", 2004, 3, 2, true},
		{"2004/03/02", 2004, 3, 2, true},
		{"2004.03.02", 2004, 3, 2, true},
		{"2004-03", 2004, 3, 0, true},
		{"2004", 2004, 0, 0, true},
		{"2004-03-02T00:00:00Z", 2004, 3, 2, true},
		{"2000-31", 0, 0, 0, false},
		{"", 0, 0, 0, false},
		{"not-a-date", 0, 0, 0, false},
	}

	for _, c := range cases {
		y, m, d, ok := parseDate(c.raw)
		if ok != c.wantOK {
			t.Errorf("parseDate(%q) ok = %v, want %v", c.raw, ok, c.wantOK)
			continue
		}
		if !ok {
			continue
		}
		gotY := 0
		if y != nil {
			gotY = *y
		}
		gotM := 0
		if m != nil {
			gotM = *m
		}
		gotD := 0
		if d != nil {
			gotD = *d
		}
		if gotY != c.wantY || gotM != c.wantM || gotD != c.wantD {
			t.Errorf("parseDate(%q) = (%d,%d,%d), want (%d,%d,%d)", c.raw, gotY, gotM, gotD, c.wantY, c.wantM, c.wantD)
		}
	}
}
