package store

import (
	"strings"
	"unicode"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps q for a substring LIKE match with `\` as the escape
// character, so % and _ in q match literally.
func likePattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

// ftsQuery turns free user input into an FTS5 MATCH expression: every
// whitespace-separated term becomes a quoted phrase and the phrases are
// ANDed. Terms without letters or digits are dropped; an empty result
// means nothing can match.
func ftsQuery(q string) string {
	var terms []string
	for _, f := range strings.Fields(q) {
		if !strings.ContainsFunc(f, isWordRune) {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(f, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
