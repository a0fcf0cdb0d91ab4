// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

// Low-level tokenizer and object parser shared by the xref/trailer reader
// (read.go), the object-stream walker (resolve, in read.go), and the
// content-stream interpreter (content.go). A buffer wraps a byte source
// with a small pushback queue so callers can peek one token ahead (used to
// recognize "N G R" and "N G obj" as two-token and three-token lookaheads
// on top of a one-token-at-a-time reader).

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/sassoftware/pdf-xtract/logger"
)

const (
	maxParseDepth  = 50
	maxDictEntries = 1000
	maxArrayItems  = 1000
)

// keyword is a bare PDF token that isn't a number, name, or string:
// true, false, null, obj, endobj, stream, endstream, xref, trailer,
// startxref, R, and the delimiters << >> [ ].
type keyword string

type buffer struct {
	r      *bufio.Reader
	base   int64 // absolute file offset corresponding to pos==0
	pos    int64 // bytes logically consumed from r since creation
	offset int64 // base+pos, tracked alongside pos for callers that read it directly

	unread []interface{}

	key      []byte // decryption key placeholder; never populated (decryption is out of scope)
	useAES   bool
	allowEOF bool // suppress "missing endobj/endstream" warnings near a hard EOF (object-stream bodies)

	// allowObjptr/allowStream gate recognition of "N G R" / "N G obj ...
	// stream ... endstream" at the top of readObject. Both default false:
	// a buffer positioned inside an object-stream body (resolve, read.go)
	// reads bare values only, since ISO 32000-1 §7.5.7 forbids a
	// compressed object from itself being a stream or carrying its own
	// "N G obj" header. Callers that walk real file-level objects
	// (readXref and friends) set both true.
	allowObjptr bool
	allowStream bool

	depth int // current recursive parse depth, enforced against maxParseDepth
}

func newBuffer(r io.Reader, offset int64) *buffer {
	return &buffer{r: bufio.NewReaderSize(r, 4096), base: offset, offset: offset}
}

func (b *buffer) readByte() (byte, error) {
	c, err := b.r.ReadByte()
	if err != nil {
		return 0, err
	}
	b.pos++
	b.offset = b.base + b.pos
	return c, nil
}

func (b *buffer) unreadByte() {
	_ = b.r.UnreadByte()
	b.pos--
	b.offset = b.base + b.pos
}

// seekForward discards bytes until the logical position equals n.
func (b *buffer) seekForward(n int64) {
	for b.pos < n {
		if _, err := b.readByte(); err != nil {
			return
		}
	}
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isSpace(c byte) bool {
	switch c {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func (b *buffer) skipWhitespace() {
	for {
		c, err := b.readByte()
		if err != nil {
			return
		}
		if c == '%' { // comment runs to end of line
			for {
				c, err := b.readByte()
				if err != nil || c == '\n' || c == '\r' {
					break
				}
			}
			continue
		}
		if !isSpace(c) {
			b.unreadByte()
			return
		}
	}
}

// unreadToken pushes tok back so the next readToken call returns it again.
func (b *buffer) unreadToken(tok interface{}) {
	b.unread = append(b.unread, tok)
}

// readToken returns the next low-level token: int64, float64, name, string
// (decoded literal/hex bytes), or keyword (bare word or delimiter). It
// returns nil at EOF.
func (b *buffer) readToken() interface{} {
	if n := len(b.unread); n > 0 {
		tok := b.unread[n-1]
		b.unread = b.unread[:n-1]
		return tok
	}

	b.skipWhitespace()
	c, err := b.readByte()
	if err != nil {
		return nil
	}

	switch {
	case c == '/':
		return b.readName()
	case c == '(':
		return b.readLiteralString()
	case c == '<':
		c2, err := b.readByte()
		if err == nil && c2 == '<' {
			return keyword("<<")
		}
		if err == nil {
			b.unreadByte()
		}
		return b.readHexString()
	case c == '>':
		c2, _ := b.readByte()
		if c2 == '>' {
			return keyword(">>")
		}
		b.unreadByte()
		return keyword(">")
	case c == '[':
		return keyword("[")
	case c == ']':
		return keyword("]")
	case c == '{':
		return keyword("{")
	case c == '}':
		return keyword("}")
	case c == ')':
		logger.Error("unexpected ) in content")
		return keyword(")")
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		b.unreadByte()
		return b.readNumber()
	default:
		b.unreadByte()
		return b.readKeyword()
	}
}

func (b *buffer) readName() interface{} {
	var buf []byte
	for {
		c, err := b.readByte()
		if err != nil {
			break
		}
		if isSpace(c) || isDelim(c) {
			b.unreadByte()
			break
		}
		if c == '#' {
			h1, err1 := b.readByte()
			h2, err2 := b.readByte()
			if err1 == nil && err2 == nil {
				if v, err := strconv.ParseUint(string([]byte{h1, h2}), 16, 8); err == nil {
					buf = append(buf, byte(v))
					continue
				}
			}
			buf = append(buf, c)
			continue
		}
		buf = append(buf, c)
	}
	return name(buf)
}

func (b *buffer) readKeyword() interface{} {
	var buf []byte
	for {
		c, err := b.readByte()
		if err != nil {
			break
		}
		if isSpace(c) || isDelim(c) {
			b.unreadByte()
			break
		}
		buf = append(buf, c)
	}
	if len(buf) == 0 {
		return nil
	}
	return keyword(buf)
}

func (b *buffer) readNumber() interface{} {
	var buf []byte
	isReal := false
	for {
		c, err := b.readByte()
		if err != nil {
			break
		}
		if c == '.' {
			isReal = true
			buf = append(buf, c)
			continue
		}
		if c == '+' || c == '-' || (c >= '0' && c <= '9') {
			buf = append(buf, c)
			continue
		}
		b.unreadByte()
		break
	}
	s := string(buf)
	if !isReal {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		isReal = true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		logger.Debug(fmt.Sprintf("malformed number token %q", s))
		return int64(0)
	}
	return f
}

// readLiteralString decodes a ( ... ) string per ISO 32000-1 §7.3.4.2:
// nested parens, backslash escapes, line continuations, and octal escapes.
func (b *buffer) readLiteralString() interface{} {
	var buf []byte
	depth := 1
	for depth > 0 {
		c, err := b.readByte()
		if err != nil {
			break
		}
		switch c {
		case '(':
			depth++
			buf = append(buf, c)
		case ')':
			depth--
			if depth > 0 {
				buf = append(buf, c)
			}
		case '\\':
			e, err := b.readByte()
			if err != nil {
				break
			}
			switch e {
			case 'n':
				buf = append(buf, '\n')
			case 'r':
				buf = append(buf, '\r')
			case 't':
				buf = append(buf, '\t')
			case 'b':
				buf = append(buf, '\b')
			case 'f':
				buf = append(buf, '\f')
			case '(', ')', '\\':
				buf = append(buf, e)
			case '\r':
				if c2, err := b.readByte(); err == nil && c2 != '\n' {
					b.unreadByte()
				}
			case '\n':
				// line continuation, emit nothing
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for i := 0; i < 2; i++ {
						c2, err := b.readByte()
						if err != nil || c2 < '0' || c2 > '7' {
							if err == nil {
								b.unreadByte()
							}
							break
						}
						val = val*8 + int(c2-'0')
					}
					buf = append(buf, byte(val%256))
				} else {
					buf = append(buf, e)
				}
			}
		default:
			buf = append(buf, c)
		}
	}
	return string(buf)
}

var hexVal = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for c := '0'; c <= '9'; c++ {
		t[c] = int8(c - '0')
	}
	for c := 'a'; c <= 'f'; c++ {
		t[c] = int8(c-'a') + 10
	}
	for c := 'A'; c <= 'F'; c++ {
		t[c] = int8(c-'A') + 10
	}
	return t
}()

// readHexString decodes a < ... > string, ignoring whitespace and padding
// an odd trailing nibble with 0.
func (b *buffer) readHexString() interface{} {
	var nibbles []byte
	for {
		c, err := b.readByte()
		if err != nil {
			break
		}
		if c == '>' {
			break
		}
		if isSpace(c) {
			continue
		}
		if v := hexVal[c]; v >= 0 {
			nibbles = append(nibbles, byte(v))
		}
	}
	if len(nibbles)%2 == 1 {
		nibbles = append(nibbles, 0)
	}
	buf := make([]byte, len(nibbles)/2)
	for i := range buf {
		buf[i] = nibbles[2*i]<<4 | nibbles[2*i+1]
	}
	return string(buf)
}

// A Stack is an operand stack shared between the content interpreter loop
// and the operator callback that drains it.
type Stack struct {
	v []Value
}

func (s *Stack) Push(v Value) { s.v = append(s.v, v) }

func (s *Stack) Pop() Value {
	if len(s.v) == 0 {
		return Value{}
	}
	v := s.v[len(s.v)-1]
	s.v = s.v[:len(s.v)-1]
	return v
}

func (s *Stack) Len() int { return len(s.v) }

func newDict() Value {
	return Value{nil, objptr{}, dict{}}
}

var errTruncated = errors.New("truncated by parse cap")

// readObject reads the next complete PDF object: either a bare value, an
// indirect reference (N G R), or a full object definition (N G obj ... endobj,
// optionally wrapping a stream). It is also used, with a freshly positioned
// buffer and no leading "N G obj", to read a single value directly (the
// object-stream and content-stream cases).
func (b *buffer) readObject() interface{} {
	tok1 := b.readToken()
	if n1, ok := tok1.(int64); ok && b.allowObjptr {
		tok2 := b.readToken()
		if n2, ok2 := tok2.(int64); ok2 {
			tok3 := b.readToken()
			if kw, ok3 := tok3.(keyword); ok3 && kw == keyword("R") {
				return objptr{uint32(n1), uint16(n2)}
			}
			if kw, ok3 := tok3.(keyword); ok3 && kw == keyword("obj") {
				return b.readObjectBody(objptr{uint32(n1), uint16(n2)})
			}
			b.unreadToken(tok3)
			b.unreadToken(tok2)
			return n1
		}
		b.unreadToken(tok2)
		return n1
	}
	return b.parseValue(tok1)
}

func (b *buffer) readObjectBody(ptr objptr) objdef {
	val := b.parseValue(b.readToken())
	if d, ok := val.(dict); ok && b.allowStream {
		tok := b.readToken()
		if kw, ok := tok.(keyword); ok && kw == keyword("stream") {
			strm := b.readStreamBody(ptr, d)
			b.expectKeyword("endobj")
			return objdef{ptr, strm}
		}
		b.unreadToken(tok)
	}
	b.expectKeyword("endobj")
	return objdef{ptr, val}
}

func (b *buffer) expectKeyword(want string) {
	tok := b.readToken()
	if kw, ok := tok.(keyword); !ok || string(kw) != want {
		if !b.allowEOF {
			logger.Debug(fmt.Sprintf("expected keyword %q, found %v", want, tok))
		}
		if tok != nil {
			b.unreadToken(tok)
		}
	}
}

// readStreamBody records the absolute offset of the raw stream bytes (after
// the "stream" keyword and its one mandatory EOL) and resynchronizes the
// buffer past the body so subsequent tokens parse correctly. Slicing and
// Length resolution (which may require one level of indirection, per
// spec.md §4.C) happen lazily in Value.Reader.
func (b *buffer) readStreamBody(ptr objptr, hdr dict) stream {
	c, err := b.readByte()
	if err == nil && c == '\r' {
		c, err = b.readByte()
	}
	if err != nil || c != '\n' {
		logger.Debug("stream keyword not followed by expected EOL")
		if err == nil {
			b.unreadByte()
		}
	}
	start := b.offset

	if n, ok := hdr[name("Length")].(int64); ok && n >= 0 {
		b.seekForward(start - b.base + n)
		b.skipWhitespace()
		b.expectKeyword("endstream")
	} else {
		b.scanForEndstream()
	}
	return stream{hdr: hdr, ptr: ptr, offset: start}
}

// scanForEndstream is the recovery path for a stream whose /Length is
// missing or indirect: it resynchronizes by searching for the literal
// "endstream" keyword.
func (b *buffer) scanForEndstream() {
	const needle = "endstream"
	match := 0
	for {
		c, err := b.readByte()
		if err != nil {
			return
		}
		if c == needle[match] {
			match++
			if match == len(needle) {
				return
			}
		} else {
			match = 0
			if c == needle[0] {
				match = 1
			}
		}
	}
}

// parseValue interprets a single already-read token as a value, recursing
// into arrays and dictionaries. Depth and container-size caps follow
// spec.md §4.C: parse depth <= 50, dict entries and array items <= 1000.
func (b *buffer) parseValue(tok interface{}) interface{} {
	switch t := tok.(type) {
	case nil:
		return nil
	case int64, float64, name, string:
		return t
	case keyword:
		switch t {
		case "true":
			return true
		case "false":
			return false
		case "null":
			return nil
		case "<<":
			return b.parseDict()
		case "[":
			return b.parseArray()
		default:
			return t
		}
	default:
		return t
	}
}

func (b *buffer) parseDict() dict {
	b.depth++
	defer func() { b.depth-- }()
	d := dict{}
	if b.depth > maxParseDepth {
		logger.Debug("dict parse depth exceeded, truncating")
		b.skipToMatchingDictEnd()
		return d
	}
	for {
		tok := b.readToken()
		if tok == nil {
			return d
		}
		if kw, ok := tok.(keyword); ok && kw == keyword(">>") {
			return d
		}
		key, ok := tok.(name)
		if !ok {
			logger.Debug(fmt.Sprintf("malformed dict key %v, skipping entry", tok))
			continue
		}
		val := b.readValueForContainer()
		if len(d) >= maxDictEntries {
			continue
		}
		d[key] = val
	}
}

func (b *buffer) skipToMatchingDictEnd() {
	depth := 1
	for depth > 0 {
		tok := b.readToken()
		if tok == nil {
			return
		}
		if kw, ok := tok.(keyword); ok {
			switch kw {
			case "<<":
				depth++
			case ">>":
				depth--
			}
		}
	}
}

func (b *buffer) parseArray() array {
	b.depth++
	defer func() { b.depth-- }()
	var a array
	if b.depth > maxParseDepth {
		logger.Debug("array parse depth exceeded, truncating")
		b.skipToMatchingArrayEnd()
		return a
	}
	for {
		tok := b.readToken()
		if tok == nil {
			return a
		}
		if kw, ok := tok.(keyword); ok && kw == keyword("]") {
			return a
		}
		b.unreadToken(tok)
		v := b.readValueForContainer()
		if len(a) >= maxArrayItems {
			continue
		}
		a = append(a, v)
	}
}

func (b *buffer) skipToMatchingArrayEnd() {
	depth := 1
	for depth > 0 {
		tok := b.readToken()
		if tok == nil {
			return
		}
		if kw, ok := tok.(keyword); ok {
			switch kw {
			case "[":
				depth++
			case "]":
				depth--
			}
		}
	}
}

// readValueForContainer reads one array-element or dict-value position,
// recognizing "N G R" indirect references in addition to plain values.
func (b *buffer) readValueForContainer() interface{} {
	tok := b.readToken()
	if n1, ok := tok.(int64); ok && b.allowObjptr {
		tok2 := b.readToken()
		if n2, ok2 := tok2.(int64); ok2 {
			tok3 := b.readToken()
			if kw, ok3 := tok3.(keyword); ok3 && kw == keyword("R") {
				return objptr{uint32(n1), uint16(n2)}
			}
			b.unreadToken(tok3)
			b.unreadToken(tok2)
			return n1
		}
		b.unreadToken(tok2)
		return n1
	}
	return b.parseValue(tok)
}
