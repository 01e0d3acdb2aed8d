package tagext

import "strings"

// iso639 maps the common two- and three-letter codes encountered in
// TLAN/LANGUAGE tags to a canonical ISO 639-2 code. Kept deliberately
// small: only codes that actually show up in the wild on tagged music
// files, not the full registry.
var iso639 = map[string]string{
	"en": "eng", "eng": "eng",
	"es": "spa", "spa": "spa",
	"fr": "fre", "fre": "fre", "fra": "fre",
	"de": "ger", "ger": "ger", "deu": "ger",
	"it": "ita", "ita": "ita",
	"pt": "por", "por": "por",
	"ru": "rus", "rus": "rus",
	"ja": "jpn", "jpn": "jpn",
	"ko": "kor", "kor": "kor",
	"zh": "chi", "chi": "chi", "zho": "chi",
	"ar": "ara", "ara": "ara",
	"ur": "urd", "urd": "urd",
	"hi": "hin", "hin": "hin",
	"nl": "dut", "dut": "dut", "nld": "dut",
	"sv": "swe", "swe": "swe",
	"pl": "pol", "pol": "pol",
	"tr": "tur", "tur": "tur",
	"und": "und",
}

// NormalizeLanguage validates and canonicalizes a language code,
// returning ok=false for anything not in the table rather than
// guessing.
func NormalizeLanguage(code string) (string, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return "", false
	}
	canon, ok := iso639[code]
	return canon, ok
}
