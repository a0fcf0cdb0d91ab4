// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

// Damage recovery: when the file's header, %%EOF marker, startxref pointer,
// or cross-reference table/stream can't be parsed, NewReader falls back to
// reconstructing a usable xref table by brute-force scanning the file for
// "N G obj" headers, and a trailer by scanning for the last literal
// "trailer" dictionary or, failing that, for an object with /Type /Catalog
// to use as /Root.

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/sassoftware/pdf-xtract/logger"
)

// objHeaderRe matches an indirect object header: "<num> <gen> obj".
var objHeaderRe = regexp.MustCompile(`(?:^|[\r\n\x00 \t])(\d{1,10})[ \t]+(\d{1,5})[ \t]+obj\b`)

// trailerRe matches the literal "trailer" keyword introducing a classic
// trailer dictionary.
var trailerRe = regexp.MustCompile(`(?:^|[\r\n\x00 \t])trailer\b`)

const defaultMaxReconstructionScan = 200000

// reconstruct rebuilds r.xref and r.trailer by scanning the whole file for
// object headers, used when the file's own cross-reference information is
// missing or doesn't parse. maxObjects bounds how many "obj" headers it
// will record, so a pathological file (or one that isn't really a PDF)
// can't make recovery scan forever.
func reconstruct(r *Reader, maxObjects int) error {
	if maxObjects <= 0 {
		maxObjects = defaultMaxReconstructionScan
	}
	logger.Error("reconstructing cross-reference table by scanning for object headers")

	buf := make([]byte, r.end)
	n, err := r.f.ReadAt(buf, 0)
	if n == 0 && err != nil {
		return fmt.Errorf("reconstruction: cannot read file: %w", err)
	}
	buf = buf[:n]

	xrefByID := map[uint32]xref{}
	catalogPtr := objptr{}
	count := 0
	for _, m := range objHeaderRe.FindAllSubmatchIndex(buf, -1) {
		if count >= maxObjects {
			logger.Error("reconstruction: hit MaxReconstructionScan, stopping early")
			break
		}
		count++
		numStr := buf[m[2]:m[3]]
		genStr := buf[m[4]:m[5]]
		id := parseUintBytes(numStr)
		gen := parseUintBytes(genStr)
		offset := firstNonDelimBefore(buf, m[0])
		ptr := objptr{id: uint32(id), gen: uint16(gen)}
		// A later occurrence of the same object number (an updated
		// incremental revision) wins over an earlier one.
		xrefByID[ptr.id] = xref{ptr: ptr, offset: offset}

		if looksLikeCatalog(buf, offset) {
			catalogPtr = ptr
		}
	}
	if len(xrefByID) == 0 {
		return fmt.Errorf("reconstruction: no object headers found, not a PDF")
	}

	size := uint32(0)
	for id := range xrefByID {
		if id+1 > size {
			size = id + 1
		}
	}
	table := make([]xref, size)
	for id, x := range xrefByID {
		table[id] = x
	}
	r.xref = table

	trailer, trailerptr := recoverTrailer(buf, r, catalogPtr)
	r.trailer = trailer
	r.trailerptr = trailerptr
	// A trailer with no /Root at all degrades to Trailer().Key("Root")
	// returning a null Value, which callers already treat as "not found".
	logger.Error(fmt.Sprintf("reconstruction: recovered %d objects", len(xrefByID)))
	return nil
}

// recoverTrailer looks for the last literal "trailer" dictionary in the
// file (the one an incremental-update chain would intend as authoritative)
// and falls back to a synthetic one built around a recovered /Type
// /Catalog object when no trailer keyword is found at all (e.g. the file
// only ever had a cross-reference stream, which carries its own trailer
// dict merged into the stream's header, or the trailer itself was
// truncated away).
func recoverTrailer(buf []byte, r *Reader, catalog objptr) (dict, objptr) {
	locs := trailerRe.FindAllIndex(buf, -1)
	for i := len(locs) - 1; i >= 0; i-- {
		start := locs[i][1]
		b := newBuffer(bytes.NewReader(buf[start:]), int64(start))
		b.allowEOF = true
		b.allowObjptr = true
		tok := b.readToken()
		if tok != keyword("<<") {
			continue
		}
		d := b.parseDict()
		if d != nil {
			logger.Error("reconstruction: recovered trailer dictionary")
			return d, objptr{}
		}
	}
	if catalog.id != 0 || catalog.gen != 0 {
		logger.Error("reconstruction: no trailer keyword found, synthesizing one from a recovered /Type /Catalog object")
		return dict{"Root": catalog, "Size": int64(len(r.xref))}, objptr{}
	}
	return dict{}, objptr{}
}

// looksLikeCatalog reports whether the object whose body starts just after
// offset looks like it opens with "<< ... /Type /Catalog" within the first
// few hundred bytes — enough to find the root object without fully parsing
// every recovered object during the scan.
func looksLikeCatalog(buf []byte, offset int64) bool {
	end := offset + 400
	if end > int64(len(buf)) {
		end = int64(len(buf))
	}
	if offset < 0 || offset >= int64(len(buf)) {
		return false
	}
	return bytes.Contains(buf[offset:end], []byte("/Type/Catalog")) ||
		bytes.Contains(buf[offset:end], []byte("/Type /Catalog"))
}

// firstNonDelimBefore walks forward from the start of a regexp match that
// may have consumed a leading delimiter byte (the "(?:^|[\r\n\x00 \t])"
// alternation), past that whitespace, to the actual start of the "N G obj"
// token.
func firstNonDelimBefore(buf []byte, matchStart int) int64 {
	i := matchStart
	for i < len(buf) && isSpace(buf[i]) {
		i++
	}
	return int64(i)
}

func parseUintBytes(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v*10 + uint64(c-'0')
	}
	return v
}
