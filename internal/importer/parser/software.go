package parser

import (
	"regexp"
	"strings"
)

// SoftwareItem is one installed program parsed from an inventory file.
type SoftwareItem struct {
	Name    string
	Version string
}

var (
	// "Program Name [1.2.3]": version in trailing brackets.
	bracketVersion = regexp.MustCompile(`^(.*\S)\s*\[([^\[\]]+)\]\s*$`)
	// "Program Name (1.2.3)": version in trailing parentheses, digits first.
	parenVersion = regexp.MustCompile(`^(.*\S)\s*\((\d[^()]*)\)\s*$`)
	// Decorative separator lines.
	separatorLine = regexp.MustCompile(`^[-=*_]{3,}$`)
)

// ParseSoftware parses a line-oriented installed-software list. Blank and
// separator lines are skipped; a trailing bracketed or parenthesized token
// is treated as the version.
func ParseSoftware(text string) []SoftwareItem {
	var items []SoftwareItem
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if line == "" || separatorLine.MatchString(line) {
			continue
		}

		if m := bracketVersion.FindStringSubmatch(line); m != nil {
			items = append(items, SoftwareItem{Name: strings.TrimSpace(m[1]), Version: strings.TrimSpace(m[2])})
			continue
		}
		if m := parenVersion.FindStringSubmatch(line); m != nil {
			items = append(items, SoftwareItem{Name: strings.TrimSpace(m[1]), Version: strings.TrimSpace(m[2])})
			continue
		}
		items = append(items, SoftwareItem{Name: line})
	}
	return items
}
