package taskmaster

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\[([^\[\]]+)\]`)

// Placeholders returns the distinct [Name] placeholders of text in order of
// first occurrence.
func Placeholders(text string) []string {
	names := []string{}
	seen := map[string]bool{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// ApplyPlaceholders replaces every occurrence of every placeholder in text
// with its value, or with the empty string when values has none. Values are
// inserted literally and are not scanned again.
func ApplyPlaceholders(text string, values map[string]string) string {
	names := Placeholders(text)
	if len(names) == 0 {
		return text
	}
	pairs := make([]string, 0, len(names)*2)
	for _, name := range names {
		pairs = append(pairs, "["+name+"]", values[name])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
