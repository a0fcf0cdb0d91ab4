// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

// The underlying representation for a Value's data. A PDF object graph is
// built entirely out of these types plus the Go predeclared bool, int64,
// float64 and string. A name never carries its leading slash: readName
// (ps.go) strips it during lexing, so dict keys and Value.Name already
// agree on the same canonical form, and Value.Key strips a leading slash
// from its argument, so a lookup by "Key" or "/Key" is the same lookup.
type name string

// A dict is a PDF dictionary, keyed by name without the leading slash.
type dict map[name]interface{}

// An array is a PDF array.
type array []interface{}

// An objptr is an indirect reference, "id gen R".
type objptr struct {
	id  uint32
	gen uint16
}

// A stream is a PDF stream object: a header dictionary plus the absolute
// file offset of its raw (still filter-encoded) bytes. Value.Reader decodes
// the bytes on every call; the decoded and decodedOK fields are not
// populated.
type stream struct {
	hdr    dict
	ptr    objptr
	offset int64

	decoded   []byte
	decodedOK bool
}

// An objdef is a top-level "id gen obj ... endobj" definition.
type objdef struct {
	ptr objptr
	obj interface{}
}

// object is the loose union type returned by buffer.readObject: an
// objdef, an objptr, or any bare value (nil, bool, int64, float64,
// string, name, dict, array, stream).
type object = interface{}
