package voice

import (
	"strings"
	"unicode"
)

// ContainsKeyword reports whether keyword occurs in text as whole words,
// ignoring case and punctuation: "Yes, please." matches "yes", "yesterday"
// does not.
func ContainsKeyword(text, keyword string) bool {
	want := words(keyword)
	if len(want) == 0 {
		return false
	}
	got := words(text)
	for i := 0; i+len(want) <= len(got); i++ {
		match := true
		for j, w := range want {
			if !strings.EqualFold(got[i+j], w) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
