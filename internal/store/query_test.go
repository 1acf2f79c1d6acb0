package store

import "testing"

func TestLikePattern(t *testing.T) {
	cases := map[string]string{
		"plain":   "%plain%",
		"100%":    `%100\%%`,
		"snake_c": `%snake\_c%`,
		`back\sl`: `%back\\sl%`,
	}
	for in, want := range cases {
		if got := likePattern(in); got != want {
			t.Errorf("likePattern(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFTSQuery(t *testing.T) {
	cases := map[string]string{
		"attention":       `"attention"`,
		"c++ foo-bar":     `"c++" "foo-bar"`,
		`say "hi`:         `"say" """hi"`,
		`"`:               "",
		"  ***  +  ":      "",
		"deep   learning": `"deep" "learning"`,
	}
	for in, want := range cases {
		if got := ftsQuery(in); got != want {
			t.Errorf("ftsQuery(%q) = %q, want %q", in, got, want)
		}
	}
}
