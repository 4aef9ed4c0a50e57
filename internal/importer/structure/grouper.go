package structure

import (
	"path"
	"strings"
)

// Entry is the metadata of one archive entry. Content is read lazily during
// device processing, never during grouping, so grouping cost is bounded by
// entry count rather than archive size.
type Entry struct {
	// Path is the raw entry path inside the archive.
	Path string
	// IsDir marks directory entries.
	IsDir bool
	// Size is the uncompressed size declared in the archive directory.
	Size int64
	// Index is the entry's position in the archive's file list, used to
	// open its content later.
	Index int
}

// Name returns the base name of the entry.
func (e Entry) Name() string {
	return path.Base(strings.TrimSuffix(strings.ReplaceAll(e.Path, "\\", "/"), "/"))
}

// Parent returns the entry's parent path inside the archive.
func (e Entry) Parent() string {
	p := path.Dir(strings.TrimSuffix(strings.ReplaceAll(e.Path, "\\", "/"), "/"))
	if p == "." {
		return ""
	}
	return p
}

// DeviceGroup is one device's ordered entry list; insertion order is
// preserved for deterministic file listings.
type DeviceGroup struct {
	Name    string
	Entries []Entry
}

// Group walks the entries once and assigns each to a device according to the
// structure: first segment for flat/irregular layouts, second segment for
// wrapped layouts. Noise entries are skipped, as are wrapped-layout entries
// that sit outside the wrapper.
func Group(entries []Entry, s Structure) []DeviceGroup {
	index := make(map[string]int)
	var groups []DeviceGroup

	for _, entry := range entries {
		segments := splitSegments(entry.Path)
		if len(segments) == 0 || IsNoise(segments[0]) {
			continue
		}

		var device string
		switch s.Layout {
		case LayoutWrapped:
			if segments[0] != s.WrapperName || len(segments) < 2 {
				continue
			}
			device = segments[1]
		default:
			device = segments[0]
		}
		if IsNoise(device) {
			continue
		}

		i, ok := index[device]
		if !ok {
			i = len(groups)
			index[device] = i
			groups = append(groups, DeviceGroup{Name: device})
		}
		groups[i].Entries = append(groups[i].Entries, entry)
	}
	return groups
}
