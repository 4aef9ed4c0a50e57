package structure

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyze_Boundaries(t *testing.T) {
	makePaths := func(n int) []string {
		var paths []string
		for i := 0; i < n; i++ {
			paths = append(paths, fmt.Sprintf("%c/file.txt", 'A'+i))
		}
		return paths
	}

	tests := []struct {
		name     string
		paths    []string
		layout   Layout
		wrapper  string
		topCount int
	}{
		{
			name:     "single name is wrapped",
			paths:    []string{"A/dev1/pw.txt", "A/dev2/pw.txt"},
			layout:   LayoutWrapped,
			wrapper:  "A",
			topCount: 1,
		},
		{
			name:     "two names is irregular",
			paths:    makePaths(2),
			layout:   LayoutIrregular,
			topCount: 2,
		},
		{
			name:     "ten names is irregular",
			paths:    makePaths(10),
			layout:   LayoutIrregular,
			topCount: 10,
		},
		{
			name:     "eleven names is flat",
			paths:    makePaths(11),
			layout:   LayoutFlat,
			topCount: 11,
		},
		{
			name:     "no entries is irregular",
			paths:    nil,
			layout:   LayoutIrregular,
			topCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Analyze(tt.paths)
			assert.Equal(t, tt.layout, s.Layout)
			assert.Equal(t, tt.wrapper, s.WrapperName)
			assert.Len(t, s.TopLevelNames, tt.topCount)
		})
	}
}

func TestAnalyze_FiltersNoise(t *testing.T) {
	paths := []string{
		"__MACOSX/DeviceA/._pw.txt",
		".DS_Store",
		"Thumbs.db",
		"$RECYCLE.BIN/stuff",
		"System Volume Information/x",
		"batch1/DeviceA/pw.txt",
	}
	s := Analyze(paths)
	assert.Equal(t, LayoutWrapped, s.Layout)
	assert.Equal(t, "batch1", s.WrapperName)
}

func TestAnalyze_BackslashPaths(t *testing.T) {
	s := Analyze([]string{`wrap\DeviceA\pw.txt`, `wrap\DeviceB\pw.txt`})
	assert.Equal(t, LayoutWrapped, s.Layout)
	assert.Equal(t, "wrap", s.WrapperName)
}

func TestGroup_Wrapped(t *testing.T) {
	entries := []Entry{
		{Path: "batch1/", IsDir: true, Index: 0},
		{Path: "batch1/DeviceA/", IsDir: true, Index: 1},
		{Path: "batch1/DeviceA/pw.txt", Size: 10, Index: 2},
		{Path: "batch1/DeviceB/pw.txt", Size: 0, Index: 3},
		{Path: "stray/evil.txt", Index: 4},
		{Path: "__MACOSX/DeviceA/._pw.txt", Index: 5},
	}
	s := Structure{Layout: LayoutWrapped, WrapperName: "batch1"}

	groups := Group(entries, s)
	assert.Len(t, groups, 2)
	assert.Equal(t, "DeviceA", groups[0].Name)
	assert.Len(t, groups[0].Entries, 2)
	assert.Equal(t, "DeviceB", groups[1].Name)
	assert.Len(t, groups[1].Entries, 1)
}

func TestGroup_FlatPreservesOrder(t *testing.T) {
	entries := []Entry{
		{Path: "Zeta/a.txt", Index: 0},
		{Path: "Alpha/b.txt", Index: 1},
		{Path: "Zeta/c.txt", Index: 2},
	}
	groups := Group(entries, Structure{Layout: LayoutFlat})
	assert.Equal(t, "Zeta", groups[0].Name)
	assert.Equal(t, "Alpha", groups[1].Name)
	assert.Equal(t, []Entry{entries[0], entries[2]}, groups[0].Entries)
}

func TestEntryNameParent(t *testing.T) {
	e := Entry{Path: "batch1/DeviceA/files/note.txt"}
	assert.Equal(t, "note.txt", e.Name())
	assert.Equal(t, "batch1/DeviceA/files", e.Parent())

	dir := Entry{Path: "batch1/DeviceA/", IsDir: true}
	assert.Equal(t, "DeviceA", dir.Name())
	assert.Equal(t, "batch1", dir.Parent())
}
