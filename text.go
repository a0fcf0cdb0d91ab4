// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

// Standard single-byte text encodings and the handful of string-detection
// helpers Value.Text/objfmt rely on to tell a PDFDocEncoded byte string
// apart from a UTF-16BE (BOM-prefixed) one.

import (
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// winAnsiEncoding, macRomanEncoding and pdfDocEncoding map a single byte
// (0-255) to its Unicode code point under the corresponding PDF base
// encoding (ISO 32000-1 Annex D). WinAnsi and MacRoman are taken directly
// from the matching charmap.Charmap; PDFDocEncoding starts from WinAnsi
// and overrides the handful of code points that Annex D defines
// differently (mostly punctuation in the 0x18-0x1F and 0x80-0x9F bands).
var (
	winAnsiEncoding  [256]rune
	macRomanEncoding [256]rune
	pdfDocEncoding   [256]rune
)

// nameToRune maps a glyph name used in a /Differences array (e.g.
// "bullet", "emdash") to its Unicode code point. It covers only the glyph
// names listed in glyphNameByByte below, each resolved through the WinAnsi
// table built from golang.org/x/text/encoding/charmap's Windows1252
// decoder. It is a package-level var (rather than a const table) so tests
// can swap it out.
var nameToRune map[string]rune

func init() {
	fillFromCharmap(&winAnsiEncoding, charmap.Windows1252)
	fillFromCharmap(&macRomanEncoding, charmap.Macintosh)
	pdfDocEncoding = winAnsiEncoding
	for b, r := range pdfDocEncodingOverrides {
		pdfDocEncoding[b] = r
	}
	nameToRune = buildNameToRune()
}

func fillFromCharmap(table *[256]rune, cm *charmap.Charmap) {
	for i := 0; i < 256; i++ {
		r := cm.DecodeByte(byte(i))
		if r == 0 && i != 0 {
			r = unicode.ReplacementChar
		}
		table[i] = r
	}
}

// pdfDocEncodingOverrides holds the PDFDocEncoding code points that
// diverge from Windows-1252, per ISO 32000-1 Annex D.3.
var pdfDocEncodingOverrides = map[byte]rune{
	0x18: 0x02D8, 0x19: 0x02C7, 0x1A: 0x02C6, 0x1B: 0x02D9,
	0x1C: 0x02DD, 0x1D: 0x02DB, 0x1E: 0x02DA, 0x1F: 0x02DC,
	0x80: 0x2022, 0x81: 0x2020, 0x82: 0x2021, 0x83: 0x2026,
	0x84: 0x2014, 0x85: 0x2013, 0x86: 0x0192, 0x87: 0x2044,
	0x88: 0x2039, 0x89: 0x203A, 0x8A: 0x2212, 0x8B: 0x2030,
	0x8C: 0x201E, 0x8D: 0x201C, 0x8E: 0x201D, 0x8F: 0x2018,
	0x90: 0x2019, 0x91: 0x201A, 0x92: 0x2122, 0x93: 0xFB01,
	0x94: 0xFB02, 0x95: 0x0141, 0x96: 0x0152, 0x97: 0x0160,
	0x98: 0x0178, 0x99: 0x017D, 0x9A: 0x0131, 0x9B: 0x0142,
	0x9C: 0x0153, 0x9D: 0x0161, 0x9E: 0x017E, 0x9F: unicode.ReplacementChar,
	0xA0: 0x20AC,
}

func buildNameToRune() map[string]rune {
	m := map[string]rune{}
	for b, r := range winAnsiEncoding {
		if n, ok := glyphNameByByte[byte(b)]; ok {
			m[n] = r
		}
	}
	return m
}

// glyphNameByByte is a small subset of the Adobe StandardEncoding glyph
// names commonly found in /Differences arrays, mapped to the WinAnsi code
// point at that position so nameToRune can resolve them without shipping
// the full Adobe Glyph List.
var glyphNameByByte = map[byte]string{
	0x27: "quotesingle", 0x60: "grave",
	0x91: "quoteleft", 0x92: "quoteright",
	0x93: "quotedblleft", 0x94: "quotedblright",
	0x95: "bullet", 0x96: "endash", 0x97: "emdash",
	0xA9: "copyright", 0xAE: "registered", 0xB0: "degree",
	0xE9: "eacute", 0xE8: "egrave", 0xE0: "agrave", 0xE7: "ccedilla",
}

// isPDFDocEncoded reports whether s looks like a PDFDocEncoded byte
// string rather than UTF-16: it isn't UTF-16 (no 0xFE 0xFF BOM) and every
// byte maps to a defined PDFDocEncoding code point.
func isPDFDocEncoded(s string) bool {
	if isUTF16(s) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if pdfDocEncoding[s[i]] == unicode.ReplacementChar {
			return false
		}
	}
	return true
}

// pdfDocDecode decodes s (a PDFDocEncoded byte string) to UTF-8.
func pdfDocDecode(s string) string {
	r := make([]rune, len(s))
	for i := 0; i < len(s); i++ {
		r[i] = pdfDocEncoding[s[i]]
	}
	return string(r)
}

// isUTF16 reports whether s begins with the UTF-16BE byte-order mark
// (0xFE 0xFF) and has an even length, as required for a "text string"
// encoded per ISO 32000-1 §7.9.2.2.
func isUTF16(s string) bool {
	return len(s) >= 2 && len(s)%2 == 0 && s[0] == 0xFE && s[1] == 0xFF
}

// utf16Decode decodes s, a sequence of big-endian UTF-16 code units
// (without a leading BOM), to UTF-8, combining surrogate pairs.
func utf16Decode(s string) string {
	if len(s)%2 != 0 {
		s = s[:len(s)-1]
	}
	units := make([]uint16, len(s)/2)
	for i := range units {
		units[i] = uint16(s[2*i])<<8 | uint16(s[2*i+1])
	}
	return string(utf16.Decode(units))
}

// DecodeUTF8OrPreserve decodes s as UTF-8 when it is valid UTF-8;
// otherwise it preserves each raw byte as its own rune so no information
// is lost (used as the last-resort fallback for CMap codes with no
// explicit bfchar/bfrange mapping).
func DecodeUTF8OrPreserve(s string) []rune {
	if utf8.ValidString(s) {
		return []rune(s)
	}
	r := make([]rune, len(s))
	for i := 0; i < len(s); i++ {
		r[i] = rune(s[i])
	}
	return r
}

// IsSameSentence reports whether current continues the same visual run of
// text as last: same font and size (allowing a little rounding slack),
// on (roughly) the same baseline, and non-empty.
func IsSameSentence(last, current Text) bool {
	if last.S == "" {
		return false
	}
	if last.Font != current.Font {
		return false
	}
	if abs(last.FontSize-current.FontSize) > 0.5 {
		return false
	}
	if abs(last.Y-current.Y) > last.FontSize*2+2 {
		return false
	}
	return true
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
