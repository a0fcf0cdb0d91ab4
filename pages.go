// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

// Page-tree resource inheritance: merging a Form XObject's own /Resources
// over the resources in scope where it was invoked (ISO 32000-1 §7.8.3),
// and reading a page's on-disk dimensions from its (possibly inherited)
// /MediaBox.

// resourceMergeCategories lists the /Resources sub-dictionaries that get
// merged entry-by-entry (child overriding parent) rather than wholesale
// replaced, matching how a conforming viewer resolves a name like /F1 or
// /Im0 against the resource dictionary in scope at the point of use.
var resourceMergeCategories = map[name]bool{
	"Font":       true,
	"XObject":    true,
	"ExtGState":  true,
	"ColorSpace": true,
	"Pattern":    true,
	"Shading":    true,
	"Properties": true,
}

// rawSubDict returns the raw dict backing v, or an empty dict if v isn't
// one (including if it's null) so callers can range over it unconditionally.
func rawSubDict(v Value) dict {
	if d, ok := v.data.(dict); ok {
		return d
	}
	return dict{}
}

// mergeCategoryDict merges two resolved category sub-dictionaries (e.g. two
// /Font dicts), with child's entries winning over parent's on a name clash.
func mergeCategoryDict(parentCat, childCat Value) dict {
	merged := dict{}
	for k, v := range rawSubDict(parentCat) {
		merged[k] = v
	}
	for k, v := range rawSubDict(childCat) {
		merged[k] = v
	}
	return merged
}

// mergeResources returns the effective /Resources dictionary to use inside
// a Form XObject: child's own /Resources (if it has one) layered over
// parent, the resources in scope at the point the form was invoked. Most
// forms either omit /Resources entirely (inherit everything) or only
// define a few of their own (e.g. their own /Font), so per-category
// merging is what lets a form's partial resource dictionary still resolve
// names it doesn't define itself.
func mergeResources(child, parent Value) Value {
	if child.Kind() != Dict {
		return parent
	}
	if parent.Kind() != Dict {
		return child
	}
	r := child.r
	if r == nil {
		r = parent.r
	}
	merged := dict{}
	for k, v := range rawSubDict(parent) {
		merged[k] = v
	}
	for k, v := range rawSubDict(child) {
		if resourceMergeCategories[k] {
			merged[k] = mergeCategoryDict(parent.Key(string(k)), child.Key(string(k)))
		} else {
			merged[k] = v
		}
	}
	return Value{r, objptr{}, merged}
}

// Dimensions returns the page's width and height in points, derived from
// its (possibly inherited) /MediaBox. It returns 0, 0 if no MediaBox is
// found anywhere up the /Parent chain.
func (p Page) Dimensions() (width, height float64) {
	box := p.MediaBox()
	if box.Kind() != Array || box.Len() != 4 {
		return 0, 0
	}
	x0, y0 := box.Index(0).Float64(), box.Index(1).Float64()
	x1, y1 := box.Index(2).Float64(), box.Index(3).Float64()
	width, height = x1-x0, y1-y0
	if width < 0 {
		width = -width
	}
	if height < 0 {
		height = -height
	}
	return width, height
}
