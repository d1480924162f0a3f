package ingest

import (
	"strings"
	"unicode/utf8"
)

// Encoding names reported in scan summaries
const (
	EncodingUTF8    = "utf-8"
	EncodingUTF8BOM = "utf-8-sig"
	EncodingCP1252  = "windows-1252"
	EncodingLatin1  = "latin-1"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// cp1252Extras maps the 0x80-0x9F range, where windows-1252 diverges
// from latin-1. Unmapped slots fall back to the replacement rune.
var cp1252Extras = map[byte]rune{
	0x80: '€', 0x82: '‚', 0x83: 'ƒ', 0x84: '„',
	0x85: '…', 0x86: '†', 0x87: '‡', 0x88: 'ˆ',
	0x89: '‰', 0x8A: 'Š', 0x8B: '‹', 0x8C: 'Œ',
	0x8E: 'Ž', 0x91: '‘', 0x92: '’', 0x93: '“',
	0x94: '”', 0x95: '•', 0x96: '–', 0x97: '—',
	0x98: '˜', 0x99: '™', 0x9A: 'š', 0x9B: '›',
	0x9C: 'œ', 0x9E: 'ž', 0x9F: 'Ÿ',
}

// decodeBytes converts raw file bytes to text, trying utf-8 first and
// falling back to the single-byte encodings the survey exports have
// shipped with over the years. Returns the text and the encoding used.
func decodeBytes(data []byte) (string, string) {
	encoding := EncodingUTF8
	if len(data) >= 3 && data[0] == utf8BOM[0] && data[1] == utf8BOM[1] && data[2] == utf8BOM[2] {
		data = data[3:]
		encoding = EncodingUTF8BOM
	}

	if utf8.Valid(data) {
		return string(data), encoding
	}

	// Not valid utf-8. Bytes in 0x80-0x9F are printable punctuation in
	// windows-1252 but control characters in latin-1, so their presence
	// picks the codepage.
	hasC1 := false
	for _, b := range data {
		if b >= 0x80 && b <= 0x9F {
			hasC1 = true
			break
		}
	}

	var sb strings.Builder
	sb.Grow(len(data))

	if hasC1 {
		for _, b := range data {
			if r, ok := cp1252Extras[b]; ok {
				sb.WriteRune(r)
			} else if b >= 0x80 && b <= 0x9F {
				sb.WriteRune(utf8.RuneError)
			} else {
				sb.WriteRune(rune(b))
			}
		}
		return sb.String(), EncodingCP1252
	}

	for _, b := range data {
		sb.WriteRune(rune(b))
	}
	return sb.String(), EncodingLatin1
}
