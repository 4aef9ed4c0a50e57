package parser

import (
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeText converts raw file bytes to a string. Stealer logs mix UTF-8,
// BOM-prefixed, and UTF-16 exports; BOMs are honored first, then a NUL-byte
// heuristic catches BOM-less UTF-16 dumps.
func DecodeText(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	if looksUTF16LE(data) {
		dec = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	} else if looksUTF16BE(data) {
		dec = unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
	}

	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		// Fall back to the raw bytes; parsers tolerate mojibake.
		return string(data)
	}
	return string(out)
}

func looksUTF16LE(data []byte) bool {
	if len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE {
		return true
	}
	return nulRatio(data, 1) > 0.4
}

func looksUTF16BE(data []byte) bool {
	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		return true
	}
	return nulRatio(data, 0) > 0.4
}

// nulRatio returns the fraction of NUL bytes at the given parity within the
// first 512 bytes.
func nulRatio(data []byte, parity int) float64 {
	sample := data
	if len(sample) > 512 {
		sample = sample[:512]
	}
	if len(sample) < 8 {
		return 0
	}
	count := 0
	half := 0
	for i := parity; i < len(sample); i += 2 {
		half++
		if sample[i] == 0 {
			count++
		}
	}
	if half == 0 {
		return 0
	}
	return float64(count) / float64(half)
}
