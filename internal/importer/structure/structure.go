// Package structure infers how devices are laid out inside a stealer-log
// archive and groups entries per device. Archives arrive from heterogeneous
// producers with no fixed convention, so layout detection is a threshold
// heuristic that degrades gracefully instead of rejecting unknown shapes.
package structure

import "strings"

// Layout classifies the archive's directory shape.
type Layout string

const (
	// LayoutFlat means each top-level name is itself a device.
	LayoutFlat Layout = "flat"
	// LayoutWrapped means all devices sit one level under a single
	// enclosing directory.
	LayoutWrapped Layout = "wrapped"
	// LayoutIrregular means too few top-level names to be confidently flat
	// but more than one, so not wrapped. Grouping falls back to flat and
	// the archive is flagged for review.
	LayoutIrregular Layout = "irregular"
)

// flatThreshold is the minimum top-level name count treated as confidently
// flat.
const flatThreshold = 10

// Structure describes the inferred archive layout.
type Structure struct {
	Layout        Layout
	WrapperName   string
	TopLevelNames []string
}

// OS metadata noise that never counts toward layout inference; entries under
// these names are skipped outright.
var noiseNames = map[string]struct{}{
	"__macosx":                  {},
	".ds_store":                 {},
	"thumbs.db":                 {},
	"desktop.ini":               {},
	"system volume information": {},
	"$recycle.bin":              {},
	".spotlight-v100":           {},
	".trashes":                  {},
	".fseventsd":                {},
}

// IsNoise reports whether a path segment is OS metadata noise. Hidden
// dotfiles are noise as well.
func IsNoise(segment string) bool {
	lower := strings.ToLower(segment)
	if _, ok := noiseNames[lower]; ok {
		return true
	}
	return strings.HasPrefix(segment, ".")
}

// splitSegments splits an archive path into clean segments.
func splitSegments(path string) []string {
	normalized := strings.ReplaceAll(path, "\\", "/")
	parts := strings.Split(normalized, "/")
	segments := parts[:0]
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

// Analyze inspects the full set of entry paths and classifies the layout:
// exactly one filtered top-level name is wrapped, more than ten is flat,
// anything in between is irregular.
func Analyze(paths []string) Structure {
	seen := make(map[string]struct{})
	var names []string
	for _, path := range paths {
		segments := splitSegments(path)
		if len(segments) == 0 {
			continue
		}
		top := segments[0]
		if IsNoise(top) {
			continue
		}
		if _, ok := seen[top]; !ok {
			seen[top] = struct{}{}
			names = append(names, top)
		}
	}

	switch {
	case len(names) == 1:
		return Structure{Layout: LayoutWrapped, WrapperName: names[0], TopLevelNames: names}
	case len(names) > flatThreshold:
		return Structure{Layout: LayoutFlat, TopLevelNames: names}
	default:
		return Structure{Layout: LayoutIrregular, TopLevelNames: names}
	}
}
