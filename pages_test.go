// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeResources_ChildWinsPerCategory(t *testing.T) {
	parent := Value{data: dict{
		"Font":    dict{"F1": name("Helvetica"), "F2": name("Times")},
		"XObject": dict{"Im0": name("parentImage")},
	}}
	child := Value{data: dict{
		"Font": dict{"F1": name("Courier")}, // overrides F1, leaves F2 inherited
	}}
	merged := mergeResources(child, parent)
	assert.Equal(t, Dict, merged.Kind())
	assert.Equal(t, "Courier", merged.Key("Font").Key("F1").Name())
	assert.Equal(t, "Times", merged.Key("Font").Key("F2").Name())
	assert.Equal(t, "parentImage", merged.Key("XObject").Key("Im0").Name())
}

func TestMergeResources_ChildNotDict_ReturnsParent(t *testing.T) {
	parent := Value{data: dict{"Font": dict{"F1": name("Helvetica")}}}
	merged := mergeResources(Value{}, parent)
	assert.Equal(t, "Helvetica", merged.Key("Font").Key("F1").Name())
}

func TestMergeResources_ParentNotDict_ReturnsChild(t *testing.T) {
	child := Value{data: dict{"Font": dict{"F1": name("Helvetica")}}}
	merged := mergeResources(child, Value{})
	assert.Equal(t, "Helvetica", merged.Key("Font").Key("F1").Name())
}

func TestMergeResources_NonCategoryKeyReplacedWholesale(t *testing.T) {
	parent := Value{data: dict{"ProcSet": array{name("PDF"), name("Text")}}}
	child := Value{data: dict{"ProcSet": array{name("PDF")}}}
	merged := mergeResources(child, parent)
	assert.Equal(t, 1, merged.Key("ProcSet").Len())
}

func TestPage_Dimensions(t *testing.T) {
	p := Page{V: Value{data: dict{
		"MediaBox": array{int64(0), int64(0), int64(612), int64(792)},
	}}}
	w, h := p.Dimensions()
	assert.Equal(t, 612.0, w)
	assert.Equal(t, 792.0, h)
}

func TestPage_Dimensions_NoMediaBox(t *testing.T) {
	p := Page{V: Value{data: dict{}}}
	w, h := p.Dimensions()
	assert.Equal(t, 0.0, w)
	assert.Equal(t, 0.0, h)
}

func TestRawSubDict_NonDictReturnsEmpty(t *testing.T) {
	d := rawSubDict(Value{})
	assert.Empty(t, d)
}
