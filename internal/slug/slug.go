// Package slug derives URL-safe keys from note titles and wiki-link text.
//
// The same function must be used when a note is created and when a link
// is resolved; any divergence makes otherwise identical notes unreachable.
package slug

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// removed lists characters dropped outright instead of becoming separators.
const removed = `*+~.()'"!:@`

// symbols are spelled out before transliteration.
var symbols = map[rune]string{
	'&': "and",
	'$': "dollar",
	'%': "percent",
	'<': "less",
	'>': "greater",
	'|': "or",
	'♥': "love",
	'∞': "infinity",
	'¢': "cent",
	'₹': "indian rupee",
	'₽': "russian ruble",
	'₩': "won",
	'₿': "bitcoin",
	'€': "euro",
	'£': "pound",
	'¥': "yen",
	'ß': "ss",
	'æ': "ae",
	'Æ': "AE",
	'ø': "o",
	'Ø': "O",
	'œ': "oe",
	'Œ': "OE",
	'đ': "d",
	'Đ': "D",
	'ł': "l",
	'Ł': "L",
	'þ': "th",
	'Þ': "TH",
}

// Make returns the slug for s: lowercase ASCII letters and digits joined by
// single hyphens. Letters outside Latin are transliterated, so "Привет мир"
// becomes "privet-mir". Make is idempotent.
func Make(s string) string {
	folded := fold(s)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r == '-' || unicode.IsSpace(r) {
			b.WriteByte(' ')
			continue
		}
		if strings.ContainsRune(removed, r) {
			continue
		}
		if rep, ok := symbols[r]; ok {
			b.WriteString(rep)
			continue
		}
		if r >= unicode.MaxASCII {
			b.WriteString(strings.ReplaceAll(unidecode.Unidecode(string(r)), "-", " "))
			continue
		}
		b.WriteRune(r)
	}

	// Strict mode: only ASCII alphanumerics and whitespace survive.
	var strict strings.Builder
	strict.Grow(b.Len())
	for _, r := range b.String() {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			strict.WriteRune(r)
		case unicode.IsSpace(r):
			strict.WriteRune(r)
		}
	}

	return strings.ToLower(strings.Join(strings.Fields(strict.String()), "-"))
}

// WithSuffix returns base disambiguated by n. n below 2 returns base.
func WithSuffix(base string, n int) string {
	if n < 2 {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}

// fold decomposes s and drops combining marks so accented letters keep
// their base letter.
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
