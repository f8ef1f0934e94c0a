package core

import "strings"

// CleanCell removes common spreadsheet artifacts from a header cell:
// surrounding whitespace, an Excel formula prefix (="...") and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"'`)
}

// equalHeaders reports whether got names the same columns as want, in
// order, ignoring case and spreadsheet artifacts.
func equalHeaders(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if !strings.EqualFold(CleanCell(got[i]), want[i]) {
			return false
		}
	}
	return true
}
