package main

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"rasterkit/internal/issues"
)

var titleCaser = cases.Title(language.English)

// issueLabel turns an issue kind such as "MissingNoData" into "Missing No
// Data" for display.
func issueLabel(kind issues.Kind) string {
	var words []string
	var word []rune
	runes := []rune(string(kind))
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			words = append(words, string(word))
			word = word[:0]
		}
		word = append(word, r)
	}
	if len(word) > 0 {
		words = append(words, string(word))
	}
	return titleCaser.String(strings.ToLower(strings.Join(words, " ")))
}

// actionLabel renders a recommended action for display.
func actionLabel(issue issues.Issue) string {
	switch issue.Action {
	case issues.CastDType:
		return "cast to " + issue.Target.String()
	case issues.SetNoData:
		return "set NoData " + formatFloat(issue.NoData) + " (" + issue.Target.String() + ")"
	default:
		return string(issue.Action)
	}
}
