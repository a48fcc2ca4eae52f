// # internal/printer/printer_test.go
package printer

import (
	"strings"
	"testing"

	"pybundle/internal/rewrite"
)

func TestApplyEdits(t *testing.T) {
	content := []byte("result = process(raw)")
	edits := []rewrite.Edit{
		{Start: 9, End: 16, Text: "process_1"},
	}
	out, err := ApplyEdits(content, edits)
	if err != nil {
		t.Fatalf("ApplyEdits: %v", err)
	}
	if string(out) != "result = process_1(raw)" {
		t.Errorf("out = %q", out)
	}
}

func TestApplyEdits_RejectsOverlap(t *testing.T) {
	content := []byte("abcdef")
	edits := []rewrite.Edit{
		{Start: 0, End: 3, Text: "x"},
		{Start: 2, End: 4, Text: "y"},
	}
	if _, err := ApplyEdits(content, edits); err == nil {
		t.Fatal("overlapping edits must fail")
	}
}

func TestApplyEdits_RejectsOutOfRange(t *testing.T) {
	if _, err := ApplyEdits([]byte("ab"), []rewrite.Edit{{Start: 1, End: 5, Text: "x"}}); err == nil {
		t.Fatal("edit past the content must fail")
	}
}

func TestSlice_ShiftsAndFilters(t *testing.T) {
	content := []byte("aaa\ndef f():\n    pass\nzzz\n")
	// One edit inside the span, one outside.
	edits := []rewrite.Edit{
		{Start: 0, End: 3, Text: "bbb"},
		{Start: 8, End: 9, Text: "g"},
	}
	got, err := Slice(content, 4, 22, edits)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if got != "def g():\n    pass\n" {
		t.Errorf("slice = %q", got)
	}
}

func TestRender(t *testing.T) {
	doc := &Document{
		Entry:      "app.main",
		Futures:    []string{"from __future__ import annotations"},
		Externals:  []string{"import os", "import os", "from collections import OrderedDict"},
		NeedsTypes: true,
		Modules: []ModuleOutput{
			{Name: "app.util", Chunks: []Chunk{{Text: "def helper():\n    return 1\n"}}},
			{Name: "app.empty"},
			{Name: "app.main", Chunks: []Chunk{{Text: "print(helper())\n"}}},
		},
	}

	out := string(Render(doc))

	if !strings.HasPrefix(out, "# Bundled from entry module app.main.\n") {
		t.Errorf("missing header:\n%s", out)
	}
	future := strings.Index(out, "from __future__")
	types := strings.Index(out, "import types")
	if future < 0 || types < 0 || future > types {
		t.Errorf("future import must precede everything else:\n%s", out)
	}
	if strings.Count(out, "import os") != 1 {
		t.Errorf("duplicate external not collapsed:\n%s", out)
	}
	if strings.Contains(out, "# --- app.empty ---") {
		t.Errorf("empty module must have no banner:\n%s", out)
	}
	util := strings.Index(out, "# --- app.util ---")
	main := strings.Index(out, "# --- app.main ---")
	if util < 0 || main < 0 || util > main {
		t.Errorf("module order lost:\n%s", out)
	}
}

func TestExternalImport(t *testing.T) {
	cases := []struct {
		plain  bool
		module string
		alias  string
		names  []string
		star   bool
		want   string
	}{
		{true, "os", "", nil, false, "import os"},
		{true, "numpy", "np", nil, false, "import numpy as np"},
		{false, "json", "", []string{"dumps", "loads as parse"}, false, "from json import dumps, loads as parse"},
		{false, "os.path", "", nil, true, "from os.path import *"},
	}
	for _, tc := range cases {
		got := ExternalImport(tc.plain, tc.module, tc.alias, tc.names, tc.star)
		if got != tc.want {
			t.Errorf("ExternalImport = %q, want %q", got, tc.want)
		}
	}
}
