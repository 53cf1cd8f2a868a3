// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	if !p.Plain() {
		t.Fatal("printer over a buffer should be plain")
	}

	p.Title("Graph %d", 7)
	p.Success("rebuilt %s", "epoch")
	p.Warning("slow")
	p.Error("failed")
	p.Check(true, "no cycles")
	p.Check(false, "valid hierarchy")
	p.Field("objects", 12)
	p.Box("Epoch", "abc")

	want := strings.Join([]string{
		"Graph 7",
		"OK: rebuilt epoch",
		"WARN: slow",
		"ERROR: failed",
		"OK: no cycles",
		"ERROR: valid hierarchy",
		"  objects: 12",
		"Epoch: abc",
		"",
	}, "\n")
	if got := buf.String(); got != want {
		t.Errorf("plain output mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestPrinter_NonTerminalFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if !NewPrinter(f).Plain() {
		t.Error("regular file should not be treated as a terminal")
	}
	if !NewPlainPrinter(os.Stdout).Plain() {
		t.Error("NewPlainPrinter should always be plain")
	}
}

func TestPrinter_Styled(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{w: &buf}

	p.Success("done")
	p.Field("epoch", "e1")
	out := buf.String()
	if !strings.Contains(out, string(IconSuccess)) {
		t.Errorf("styled success should carry the icon, got %q", out)
	}
	if strings.Contains(out, "OK:") {
		t.Errorf("styled output should not carry plain tags, got %q", out)
	}
	if !strings.Contains(out, "e1") {
		t.Errorf("field value missing, got %q", out)
	}
}

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconArrow} {
		if !strings.Contains(icon.Render(), string(icon)) {
			t.Errorf("Render(%q) lost the glyph", icon)
		}
	}
}
