package filestore

import (
	"path"
	"strings"
)

// Extensions whose content is parsed or stored inline as text.
var textExtensions = map[string]struct{}{
	".txt":  {},
	".log":  {},
	".ini":  {},
	".cfg":  {},
	".conf": {},
	".json": {},
	".xml":  {},
	".csv":  {},
	".tsv":  {},
	".md":   {},
	".html": {},
	".htm":  {},
	".js":   {},
	".vbs":  {},
	".bat":  {},
	".ps1":  {},
	".yml":  {},
	".yaml": {},
}

// Filename substrings that force text treatment regardless of extension;
// credential exports are frequently misnamed.
var textHints = []string{"password", "login", "credential"}

// IsText classifies an archive entry by filename heuristic: a recognized
// text extension, a credential-looking name, or no extension at all means
// text; everything else is binary.
func IsText(name string) bool {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	lower := strings.ToLower(base)

	for _, hint := range textHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}

	ext := path.Ext(lower)
	if ext == "" {
		return true
	}
	_, ok := textExtensions[ext]
	return ok
}
