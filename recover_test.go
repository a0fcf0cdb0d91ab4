// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func reconstructedReader(t *testing.T, body []byte) *Reader {
	t.Helper()
	r := &Reader{f: bytes.NewReader(body), end: int64(len(body))}
	err := reconstruct(r, 0)
	assert.NoError(t, err)
	return r
}

func TestReconstruct_FindsObjectsAndCatalog(t *testing.T) {
	body := []byte("%PDF-1.4\n" +
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n" +
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n" +
		"3 0 obj\n<< /Type /Page /Parent 2 0 R >>\nendobj\n" +
		"trailer\n<< /Root 1 0 R /Size 4 >>\n")
	r := reconstructedReader(t, body)
	assert.GreaterOrEqual(t, len(r.xref), 4)
	assert.NotZero(t, r.xref[1].ptr.id)
	assert.NotZero(t, r.xref[2].ptr.id)
	assert.NotZero(t, r.xref[3].ptr.id)
}

func TestReconstruct_NoTrailerSynthesizesFromCatalog(t *testing.T) {
	body := []byte("%PDF-1.4\n" +
		"5 0 obj\n<< /Type /Catalog /Pages 6 0 R >>\nendobj\n" +
		"6 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")
	r := reconstructedReader(t, body)
	root, ok := r.trailer["Root"].(objptr)
	assert.True(t, ok)
	assert.EqualValues(t, 5, root.id)
}

func TestReconstruct_LastOccurrenceWins(t *testing.T) {
	body := []byte("%PDF-1.4\n" +
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R /V (old) >>\nendobj\n" +
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R /V (new) >>\nendobj\n" +
		"2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n" +
		"trailer\n<< /Root 1 0 R >>\n")
	r := reconstructedReader(t, body)
	offset := r.xref[1].offset
	assert.True(t, bytes.Contains(body[offset:offset+200], []byte("/V (new)")))
}

func TestReconstruct_NotAPDF(t *testing.T) {
	r := &Reader{f: bytes.NewReader([]byte("not a pdf at all")), end: 16}
	err := reconstruct(r, 0)
	assert.Error(t, err)
}

func TestReconstruct_RespectsMaxObjects(t *testing.T) {
	body := []byte("%PDF-1.4\n" +
		"1 0 obj\n<< >>\nendobj\n" +
		"2 0 obj\n<< >>\nendobj\n" +
		"3 0 obj\n<< >>\nendobj\n")
	r := &Reader{f: bytes.NewReader(body), end: int64(len(body))}
	err := reconstruct(r, 2)
	assert.NoError(t, err)
	assert.LessOrEqual(t, len(r.xref), 3)
}

func TestLooksLikeCatalog(t *testing.T) {
	buf := []byte("<< /Type /Catalog /Pages 2 0 R >>")
	assert.True(t, looksLikeCatalog(buf, 0))
	assert.False(t, looksLikeCatalog([]byte("<< /Type /Pages >>"), 0))
}

func TestParseUintBytes(t *testing.T) {
	assert.EqualValues(t, 123, parseUintBytes([]byte("123")))
	assert.EqualValues(t, 0, parseUintBytes([]byte("0")))
}
