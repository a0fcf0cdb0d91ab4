// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

// Last-resort text decoding for a Type0/CIDFontType2 font that embeds a
// TrueType program but carries no usable /ToUnicode CMap: walk the
// embedded font's own 'cmap' table (formats 4 and 12) to recover which
// Unicode code point each glyph was designed for, then use that, composed
// with /CIDToGIDMap, to decode character codes. /ToUnicode always wins when
// present (charmapEncoding tries it first) — this only fires when a
// damaged or minimal PDF producer omitted it.

import (
	"encoding/binary"

	"github.com/sassoftware/pdf-xtract/logger"
)

// cidToUnicodeEncoder decodes 2-byte character codes (as produced by an
// Identity-H encoded Type0 font) to Unicode via a GID->rune table recovered
// from the descendant font's embedded TrueType program.
type cidToUnicodeEncoder struct {
	gidToUnicode map[uint16]rune
}

func (e *cidToUnicodeEncoder) Decode(raw string) string {
	r := make([]rune, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		gid := uint16(raw[i])<<8 | uint16(raw[i+1])
		if u, ok := e.gidToUnicode[gid]; ok {
			r = append(r, u)
		} else {
			r = append(r, 0xFFFD)
		}
	}
	return string(r)
}

// cidFontEncoder builds the last-resort encoder for a Type0 font's
// descendant CIDFontType2, returning nil if there is no embedded TrueType
// program to walk or its 'cmap' table can't be parsed.
func cidFontEncoder(font Value) TextEncoding {
	desc := font.Key("DescendantFonts")
	if desc.Kind() != Array || desc.Len() == 0 {
		return nil
	}
	cidFont := desc.Index(0)
	if cidFont.Key("Subtype").Name() != "CIDFontType2" {
		return nil
	}
	if m := cidFont.Key("CIDToGIDMap"); !m.IsNull() && m.Name() != "Identity" {
		// A CIDToGIDMap stream remaps CID->GID explicitly; without decoding
		// that stream too this fallback can't be trusted, so bail out
		// rather than guess wrong.
		return nil
	}
	fd := cidFont.Key("FontDescriptor")
	ff := fd.Key("FontFile2")
	if ff.Kind() != Stream {
		ff = fd.Key("FontFile3")
	}
	if ff.Kind() != Stream {
		return nil
	}
	rc := ff.Reader()
	defer rc.Close()
	data := readAllBestEffort(rc)
	gidToUnicode := parseTrueTypeCmap(data)
	if len(gidToUnicode) == 0 {
		return nil
	}
	return &cidToUnicodeEncoder{gidToUnicode: gidToUnicode}
}

func readAllBestEffort(rc interface {
	Read([]byte) (int, error)
}) []byte {
	var out []byte
	buf := make([]byte, 32*1024)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			break
		}
	}
	return out
}

// ttPlatformPref orders candidate 'cmap' subtables the way font-rendering
// engines typically do when looking for a Unicode subtable: Windows
// Unicode-BMP-or-full first, then the old Unicode platform, Mac Roman last.
var ttPlatformPref = []struct{ platform, encoding uint16 }{
	{3, 10}, {3, 1}, {0, 4}, {0, 3}, {0, 2}, {0, 1}, {0, 0}, {1, 0},
}

// parseTrueTypeCmap walks an embedded TrueType/OpenType font program's
// 'cmap' table and returns a glyph-ID -> Unicode rune map, built by
// inverting the (Unicode -> GID) subtable formats 4 and 12 define. Any
// parse failure (truncated/unexpected data, no 'cmap' table, no
// recognized subtable) yields an empty map rather than an error: this is
// always a best-effort fallback.
func parseTrueTypeCmap(data []byte) map[uint16]rune {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("parseTrueTypeCmap: " + errString(r))
		}
	}()
	if len(data) < 12 {
		return nil
	}
	numTables := int(binary.BigEndian.Uint16(data[4:6]))
	var cmapOff uint32
	found := false
	for i := 0; i < numTables; i++ {
		rec := 12 + i*16
		if rec+16 > len(data) {
			break
		}
		tag := string(data[rec : rec+4])
		if tag == "cmap" {
			cmapOff = binary.BigEndian.Uint32(data[rec+8 : rec+12])
			found = true
			break
		}
	}
	if !found || int(cmapOff)+4 > len(data) {
		return nil
	}
	return parseCmapTable(data, int(cmapOff))
}

func parseCmapTable(data []byte, off int) map[uint16]rune {
	if off+4 > len(data) {
		return nil
	}
	numSubtables := int(binary.BigEndian.Uint16(data[off+2 : off+4]))
	type subtable struct {
		platform, encoding uint16
		offset             uint32
	}
	var subs []subtable
	for i := 0; i < numSubtables; i++ {
		rec := off + 4 + i*8
		if rec+8 > len(data) {
			break
		}
		subs = append(subs, subtable{
			platform: binary.BigEndian.Uint16(data[rec : rec+2]),
			encoding: binary.BigEndian.Uint16(data[rec+2 : rec+4]),
			offset:   binary.BigEndian.Uint32(data[rec+4 : rec+8]),
		})
	}

	pick := func(platform, encoding uint16) int {
		for i, s := range subs {
			if s.platform == platform && s.encoding == encoding {
				return i
			}
		}
		return -1
	}
	idx := -1
	for _, p := range ttPlatformPref {
		if i := pick(p.platform, p.encoding); i >= 0 {
			idx = i
			break
		}
	}
	if idx < 0 && len(subs) > 0 {
		idx = 0
	}
	if idx < 0 {
		return nil
	}

	subOff := off + int(subs[idx].offset)
	if subOff+2 > len(data) {
		return nil
	}
	format := binary.BigEndian.Uint16(data[subOff : subOff+2])
	switch format {
	case 4:
		return parseCmapFormat4(data, subOff)
	case 12:
		return parseCmapFormat12(data, subOff)
	default:
		return nil
	}
}

func parseCmapFormat4(data []byte, off int) map[uint16]rune {
	if off+14 > len(data) {
		return nil
	}
	segCountX2 := int(binary.BigEndian.Uint16(data[off+6 : off+8]))
	segCount := segCountX2 / 2
	endCodeOff := off + 14
	if endCodeOff+segCountX2 > len(data) {
		return nil
	}
	startCodeOff := endCodeOff + segCountX2 + 2
	deltaOff := startCodeOff + segCountX2
	rangeOff := deltaOff + segCountX2
	if rangeOff+segCountX2 > len(data) {
		return nil
	}

	out := map[uint16]rune{}
	for s := 0; s < segCount; s++ {
		end := binary.BigEndian.Uint16(data[endCodeOff+2*s:])
		start := binary.BigEndian.Uint16(data[startCodeOff+2*s:])
		delta := int16(binary.BigEndian.Uint16(data[deltaOff+2*s:]))
		rangeOffset := binary.BigEndian.Uint16(data[rangeOff+2*s:])
		if start == 0xFFFF && end == 0xFFFF {
			continue
		}
		for c := uint32(start); c <= uint32(end) && c != 0x10000; c++ {
			var gid uint16
			if rangeOffset == 0 {
				gid = uint16(uint32(int32(c)+int32(delta)) & 0xFFFF)
			} else {
				glyphIndexAddr := rangeOff + 2*s + int(rangeOffset) + 2*int(uint16(c)-start)
				if glyphIndexAddr+2 > len(data) {
					continue
				}
				g := binary.BigEndian.Uint16(data[glyphIndexAddr:])
				if g == 0 {
					continue
				}
				gid = uint16(uint32(g)+uint32(delta)) & 0xFFFF
			}
			if gid == 0 {
				continue
			}
			if _, exists := out[gid]; !exists {
				out[gid] = rune(c)
			}
		}
	}
	return out
}

func parseCmapFormat12(data []byte, off int) map[uint16]rune {
	if off+16 > len(data) {
		return nil
	}
	numGroups := int(binary.BigEndian.Uint32(data[off+12 : off+16]))
	out := map[uint16]rune{}
	for g := 0; g < numGroups; g++ {
		rec := off + 16 + g*12
		if rec+12 > len(data) {
			break
		}
		startChar := binary.BigEndian.Uint32(data[rec : rec+4])
		endChar := binary.BigEndian.Uint32(data[rec+4 : rec+8])
		startGID := binary.BigEndian.Uint32(data[rec+8 : rec+12])
		count := endChar - startChar
		if count > 1<<16 {
			// Pathological group in a damaged font; skip rather than
			// allocate an enormous map entry by entry.
			continue
		}
		for c := uint32(0); c <= count; c++ {
			gid := uint16((startGID + c) & 0xFFFF)
			if _, exists := out[gid]; !exists {
				out[gid] = rune(startChar + c)
			}
		}
	}
	return out
}

func errString(r interface{}) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return "panic during cmap parse"
}
