// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

// Image manifest extraction: walking a page's /Resources/XObject for
// /Subtype /Image entries, and the inline BI/ID/EI images the content
// interpreter (content.go) surfaces as it runs, decoding each through the
// filter pipeline and classifying the result by magic bytes.

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/sassoftware/pdf-xtract/logger"
)

// Image is one entry in a page's image manifest: a decoded (where the
// filter pipeline supports it) image payload together with its MIME type.
// Width and Height are the image's /Width and /Height sample dimensions.
// X and Y are the CTM translation in effect where an inline image is drawn;
// they are left 0 for XObject images, whose placement is not tracked.
type Image struct {
	ID         string
	Data       []byte
	MIMEType   string
	PageNumber int
	Width      float64
	Height     float64
	X          float64
	Y          float64
}

var (
	pngMagic   = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	jpegMagic  = []byte{0xFF, 0xD8, 0xFF}
	gif87Magic = []byte("GIF87a")
	gif89Magic = []byte("GIF89a")
)

// sniffMIMEType classifies data by its leading magic bytes, per the small
// literal table spec.md §6 calls for: PNG, JPEG, GIF, else the generic
// octet-stream type. This is deliberately not a general-purpose sniffer —
// see DESIGN.md for why gabriel-vasile/mimetype is not used here.
func sniffMIMEType(data []byte) string {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return "image/png"
	case bytes.HasPrefix(data, jpegMagic):
		return "image/jpeg"
	case bytes.HasPrefix(data, gif87Magic), bytes.HasPrefix(data, gif89Magic):
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// Images returns the manifest of raster images used on the page: each
// /Subtype /Image XObject referenced from the page's resources (including
// ones reached indirectly through a Form XObject named in /Resources), plus
// any inline images the content stream embeds directly. pageNumber is
// recorded on each entry for a caller assembling a whole-document manifest.
func (p Page) Images(pageNumber int) (imgs []Image) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(fmt.Sprint(r))
			imgs = nil
		}
	}()
	if p.V.IsNull() {
		return nil
	}

	seen := map[string]bool{}
	resources := p.Resources()
	imgs = append(imgs, xobjectImages(resources, pageNumber, seen)...)
	imgs = append(imgs, p.inlineImages(pageNumber)...)
	return imgs
}

// xobjectImages walks one resource dictionary's /XObject entries,
// recursing into nested Form XObjects (bounded by maxFormDepth) to pick up
// images a form draws that aren't listed directly on the page.
func xobjectImages(resources Value, pageNumber int, seen map[string]bool) []Image {
	return xobjectImagesDepth(resources, pageNumber, seen, 0)
}

func xobjectImagesDepth(resources Value, pageNumber int, seen map[string]bool, depth int) []Image {
	if depth >= maxFormDepth {
		return nil
	}
	xobjects := resources.Key("XObject")
	if xobjects.Kind() != Dict {
		return nil
	}
	var imgs []Image
	for _, key := range xobjects.Keys() {
		x := xobjects.Key(key)
		if x.Kind() != Stream {
			continue
		}
		id := fmt.Sprintf("%d_%d", x.ptr.id, x.ptr.gen)
		if seen[id] {
			continue
		}
		seen[id] = true

		switch x.Key("Subtype").Name() {
		case "Image":
			if img, ok := decodeImageXObject(x, pageNumber, id); ok {
				imgs = append(imgs, img)
			}
		case "Form":
			formRes := mergeResources(x.Key("Resources"), resources)
			imgs = append(imgs, xobjectImagesDepth(formRes, pageNumber, seen, depth+1)...)
		}
	}
	return imgs
}

func decodeImageXObject(x Value, pageNumber int, id string) (Image, bool) {
	rc := x.Reader()
	defer rc.Close()
	data, err := ioutil.ReadAll(rc)
	if err != nil && len(data) == 0 {
		logger.Error("Images: failed to read XObject image " + id + ": " + err.Error())
		return Image{}, false
	}
	return Image{
		ID:         id,
		Data:       data,
		MIMEType:   sniffMIMEType(data),
		PageNumber: pageNumber,
		Width:      x.Key("Width").Float64(),
		Height:     x.Key("Height").Float64(),
	}, true
}

// inlineImages re-interprets the page's content stream looking only for
// the inline-image operands content.go's Interpret already extracts,
// recording each one's decoded bytes and current CTM-derived placement.
func (p Page) inlineImages(pageNumber int) []Image {
	if p.V.Key("Contents").Kind() == Null {
		return nil
	}
	var g = gstate{Th: 1, CTM: ident}
	var gstack []matrix
	var imgs []Image
	n := 0
	Interpret(p.V.Key("Contents"), func(stk *Stack, op string) {
		nArgs := stk.Len()
		args := make([]Value, nArgs)
		for i := nArgs - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}
		switch op {
		case "q":
			gstack = append(gstack, g.CTM)
		case "Q":
			if m := len(gstack) - 1; m >= 0 {
				g.CTM = gstack[m]
				gstack = gstack[:m]
			}
		case "cm":
			if len(args) != 6 {
				return
			}
			var m matrix
			for i := 0; i < 6; i++ {
				m[i/2][i%2] = args[i].Float64()
			}
			m[2][2] = 1
			g.CTM = m.mul(g.CTM)
		case "EI":
			if len(args) == 0 {
				return
			}
			hdr, raw, ok := args[len(args)-1].InlineImage()
			if !ok {
				return
			}
			n++
			data := decodeInlineImage(hdr, raw, p.V.r)
			imgs = append(imgs, Image{
				ID:         fmt.Sprintf("inline_%d", n),
				Data:       data,
				MIMEType:   sniffMIMEType(data),
				PageNumber: pageNumber,
				Width:      keyFloat(hdr, "Width"),
				Height:     keyFloat(hdr, "Height"),
				X:          g.CTM[2][0],
				Y:          g.CTM[2][1],
			})
		}
	})
	return imgs
}

func keyFloat(d dict, key name) float64 {
	switch v := d[key].(type) {
	case int64:
		return float64(v)
	case float64:
		return v
	default:
		return 0
	}
}

// decodeInlineImage runs an inline image's raw bytes through the same
// filter pipeline as a stream XObject, using the header's (possibly
// abbreviated, already normalized by content.go) /Filter entry. Inline
// image dictionaries may only hold direct objects (ISO 32000-1 §8.9.7), so
// r is only needed to give the synthetic Value a non-nil Reader for Key().
func decodeInlineImage(hdr dict, raw []byte, r *Reader) []byte {
	rd := applyFilterChain(bytes.NewReader(raw), hdr, r)
	data, err := ioutil.ReadAll(rd)
	if err != nil && len(data) == 0 {
		return raw
	}
	return data
}

// applyFilterChain runs rd through each filter named in hdr's /Filter
// entry (a single name or an array of them), pairing each with its
// /DecodeParms entry, reusing read.go's applyFilter.
func applyFilterChain(rd io.Reader, hdr dict, r *Reader) io.Reader {
	out := rd
	filterRaw, ok := hdr["Filter"]
	if !ok {
		return out
	}
	paramValue := func(raw interface{}) Value {
		if raw == nil {
			return Value{}
		}
		return Value{r, objptr{}, raw}
	}
	switch f := filterRaw.(type) {
	case name:
		out = applyFilter(out, string(f), paramValue(hdr["DecodeParms"]))
	case array:
		parms, _ := hdr["DecodeParms"].(array)
		for i, item := range f {
			fn, ok := item.(name)
			if !ok {
				continue
			}
			var pv Value
			if i < len(parms) {
				pv = paramValue(parms[i])
			}
			out = applyFilter(out, string(fn), pv)
		}
	}
	return out
}
