package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSystemInfo(t *testing.T) {
	text := "OS: Windows 10 Pro x64\r\n" +
		"Computer Name: DESKTOP-AB12\r\n" +
		"User Name: victim\r\n" +
		"IP: 203.0.113.9\r\n" +
		"Country: DE\r\n" +
		"HWID: ABCD-1234\r\n" +
		"RAM: 16384 MB\r\n" +
		"CPU: Fake i7\r\n" +
		"Antivirus: Defender\r\n" +
		"Screen Resolution: 1920x1080\r\n"

	d := ParseSystemInfo(text)
	assert.Equal(t, "Windows 10 Pro x64", d.OS)
	assert.Equal(t, "DESKTOP-AB12", d.ComputerName)
	assert.Equal(t, "victim", d.Username)
	assert.Equal(t, "203.0.113.9", d.IP)
	assert.Equal(t, "DE", d.Country)
	assert.Equal(t, "ABCD-1234", d.HWID)
	assert.Equal(t, "Defender", d.Antivirus)
	assert.Equal(t, "1920x1080", d.Extra["screen resolution"])
	assert.Contains(t, d.ExtraJSON(), "1920x1080")
}

func TestParseSystemInfo_FirstValueWins(t *testing.T) {
	d := ParseSystemInfo("Country: DE\nCountry: FR\n")
	assert.Equal(t, "DE", d.Country)
}

func TestParseSystemInfo_Empty(t *testing.T) {
	d := ParseSystemInfo("")
	assert.Empty(t, d.OS)
	assert.Equal(t, "", d.ExtraJSON())
}

func TestParseSoftware(t *testing.T) {
	text := "=========\n" +
		"Google Chrome [109.0.5414]\n" +
		"7-Zip 22.01 (x64)\n" +
		"Some Tool (2.4.1)\n" +
		"\n" +
		"Bare Entry\n"

	items := ParseSoftware(text)
	require.Len(t, items, 4)
	assert.Equal(t, SoftwareItem{Name: "Google Chrome", Version: "109.0.5414"}, items[0])
	// "(x64)" is not a version: it does not start with a digit.
	assert.Equal(t, SoftwareItem{Name: "7-Zip 22.01 (x64)"}, items[1])
	assert.Equal(t, SoftwareItem{Name: "Some Tool", Version: "2.4.1"}, items[2])
	assert.Equal(t, SoftwareItem{Name: "Bare Entry"}, items[3])
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "plain", DecodeText([]byte("plain")))

	// UTF-8 BOM is stripped.
	assert.Equal(t, "bom", DecodeText([]byte{0xEF, 0xBB, 0xBF, 'b', 'o', 'm'}))

	// UTF-16LE with BOM.
	utf16le := []byte{0xFF, 0xFE, 'h', 0, 'i', 0}
	assert.Equal(t, "hi", DecodeText(utf16le))

	// BOM-less UTF-16LE via the NUL heuristic.
	bare := []byte{'p', 0, 'a', 0, 's', 0, 's', 0, 'w', 0, 'o', 0, 'r', 0, 'd', 0}
	assert.Equal(t, "password", DecodeText(bare))

	assert.Equal(t, "", DecodeText(nil))
}
