package router

import "unicode"

// DetectLanguage labels a query "zh", "en", or "other" from its character
// ranges. Any Han run marks the query Chinese; a Latin-letter majority
// marks it English.
func DetectLanguage(query string) string {
	var han, latin, letters int
	for _, r := range query {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch {
		case unicode.Is(unicode.Han, r):
			han++
		case r < 128:
			latin++
		}
	}

	switch {
	case han > 0:
		return "zh"
	case letters > 0 && latin*2 > letters:
		return "en"
	default:
		return "other"
	}
}
