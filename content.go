// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

// Interpret tokenizes a content stream (or any stream holding PDF
// operator/operand syntax, such as a ToUnicode CMap) and invokes do once
// per operator with the operand Stack built up since the previous
// operator. do is responsible for draining whatever it needs off the
// stack; Interpret never clears it, matching the protocol already used by
// readCmap (page.go), which leaves values on the stack across
// defineresource/findresource pairs.

import (
	"github.com/sassoftware/pdf-xtract/logger"
)

// inlineImage is the operand pushed for an inline "BI ... ID ... EI"
// image: its header uses the same abbreviated/expanded keys normalized to
// their long form, and data is the still-filter-encoded raw payload.
type inlineImage struct {
	hdr  dict
	data []byte
}

// InlineImage reports whether v holds an inline image operand, as
// produced by Interpret for the "EI" operator, and returns its header and
// raw (still filter-encoded) bytes.
func (v Value) InlineImage() (dict, []byte, bool) {
	x, ok := v.data.(inlineImage)
	if !ok {
		return nil, nil, false
	}
	return x.hdr, x.data, true
}

func newValue(data interface{}) Value {
	return Value{nil, objptr{}, data}
}

// inlineImageKeyAliases maps the abbreviated keys the PDF spec allows
// inside BI/ID dictionaries (ISO 32000-1 Table 93) to their normal
// /XObject-Image dictionary names, so downstream code (images.go) only
// ever has to look for one spelling.
var inlineImageKeyAliases = map[name]name{
	"BPC": "BitsPerComponent",
	"CS":  "ColorSpace",
	"D":   "Decode",
	"DP":  "DecodeParms",
	"F":   "Filter",
	"H":   "Height",
	"W":   "Width",
	"IM":  "ImageMask",
	"I":   "Interpolate",
	"L":   "Length",
}

func Interpret(v Value, do func(stk *Stack, op string)) {
	rc := v.Reader()
	defer rc.Close()
	b := newBuffer(rc, 0)
	b.allowEOF = true

	var stk Stack
	for {
		tok := b.readToken()
		if tok == nil {
			return
		}
		switch t := tok.(type) {
		case int64:
			stk.Push(newValue(t))
		case float64:
			stk.Push(newValue(t))
		case string:
			stk.Push(newValue(t))
		case name:
			stk.Push(newValue(t))
		case keyword:
			switch t {
			case "true":
				stk.Push(newValue(true))
			case "false":
				stk.Push(newValue(false))
			case "null":
				stk.Push(newValue(nil))
			case "<<":
				stk.Push(newValue(b.parseDict()))
			case "[":
				stk.Push(newValue(b.parseArray()))
			case ">>", "]":
				logger.Debug("unmatched container close in content stream")
			case "BI":
				img := b.readInlineImage()
				stk.Push(newValue(img))
				do(&stk, "EI")
			default:
				do(&stk, string(t))
			}
		}
	}
}

// readInlineImage reads the BI dictionary (abbreviated key/value pairs up
// to "ID"), the one mandatory whitespace byte, the raw image data up to
// the next whitespace-delimited "EI", and returns the assembled operand.
// The leading "BI" keyword has already been consumed by the caller.
func (b *buffer) readInlineImage() inlineImage {
	d := dict{}
	for {
		tok := b.readToken()
		if tok == nil {
			return inlineImage{hdr: d}
		}
		if kw, ok := tok.(keyword); ok && kw == keyword("ID") {
			break
		}
		key, ok := tok.(name)
		if !ok {
			continue
		}
		val := b.readValueForContainer()
		if full, ok := inlineImageKeyAliases[key]; ok {
			key = full
		}
		d[key] = val
	}

	if c, err := b.readByte(); err == nil && !isSpace(c) {
		b.unreadByte()
	}

	var data []byte
	const needle = "EI"
	match := 0
	sawSpace := true
	for {
		c, err := b.readByte()
		if err != nil {
			break
		}
		if match == 0 && sawSpace && c == needle[0] {
			match = 1
			continue
		}
		if match == 1 {
			if c == needle[1] {
				// confirm the terminator is whitespace-delimited (or EOF)
				c2, err2 := b.readByte()
				if err2 != nil || isSpace(c2) {
					if err2 == nil {
						b.unreadByte()
					}
					break
				}
				data = append(data, needle[0], needle[1])
				b.unreadByte()
				match = 0
				sawSpace = false
				continue
			}
			data = append(data, needle[0])
			match = 0
		}
		data = append(data, c)
		sawSpace = isSpace(c)
	}
	return inlineImage{hdr: d, data: data}
}
