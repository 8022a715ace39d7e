package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"json", "human"} {
		got, err := parseFormat(in)
		if err != nil || string(got) != in {
			t.Errorf("parseFormat(%q) = %q, %v", in, got, err)
		}
	}
	_, err := parseFormat("xml")
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("parseFormat(xml) error = %v", err)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	err := writeJSON(&buf, SearchResult{Name: "lib.id", Documentation: "Identity."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"name": "lib.id"`) {
		t.Error("missing name field")
	}
	if strings.Contains(out, `"source"`) {
		t.Error("empty source should be omitted")
	}
	if !strings.HasSuffix(out, "}\n") {
		t.Errorf("output should end with a newline: %q", out)
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"single line", "Identity function.", 72, "Identity function."},
		{"skips blank lines", "\n\n  Second.\nThird.", 72, "Second."},
		{"truncates", "abcdefghij", 5, "abcd…"},
		{"counts runes", "ééééé", 5, "ééééé"},
		{"empty", "\n \n", 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstLine(tt.in, tt.max); got != tt.want {
				t.Errorf("firstLine(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}
