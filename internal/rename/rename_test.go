package rename

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nixlsp/internal/document"
	"nixlsp/internal/lookup"
	"nixlsp/internal/slogutil"
	"nixlsp/internal/syntax"
	"nixlsp/internal/testutil"
)

const testURI = "file:///workspace/default.nix"

func newEngine() *Engine {
	logger := slogutil.NewDiscardLogger()
	return NewEngine(lookup.NewResolver(document.NewStore(logger), 0, logger), logger)
}

// applyEdits applies edits from the back so earlier ranges stay valid.
func applyEdits(text string, edits []Edit) string {
	sorted := append([]Edit(nil), edits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Range.Start > sorted[j].Range.Start })
	for _, e := range sorted {
		text = text[:e.Range.Start] + e.NewText + text[e.Range.End:]
	}
	return text
}

func TestRename(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "let binding from use",
			src:  "let foo = 1; in foo + fo$0o",
			want: "let baz = 1; in baz + baz",
		},
		{
			name: "let binding from definition",
			src:  "let f$0oo = 1; bar = foo; in bar",
			want: "let baz = 1; bar = baz; in bar",
		},
		{
			name: "select base only",
			src:  "let foo = { foo = 1; }; in foo.foo + fo$0o.bar",
			want: "let baz = { baz = 1; }; in baz.foo + baz.bar",
		},
		{
			name: "first key segment only",
			src:  "rec { foo = 1; x.foo = 2; y = fo$0o; }",
			want: "rec { baz = 1; x.foo = 2; y = baz; }",
		},
		{
			name: "inherit",
			src:  "let foo = 1; in { inherit fo$0o; }",
			want: "let baz = 1; in { inherit baz; }",
		},
		{
			name: "lambda argument",
			src:  "foo: fo$0o + 1",
			want: "baz: baz + 1",
		},
		{
			name: "pattern entry",
			src:  "{ foo, bar ? foo }: fo$0o",
			want: "{ baz, bar ? baz }: baz",
		},
		{
			name: "select default and dynamic key",
			src:  "let foo = \"x\"; in { ${foo} = a.b or fo$0o; }",
			want: "let baz = \"x\"; in { ${baz} = a.b or baz; }",
		},
	}
	e := newEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, offset := testutil.Cursor(tt.src)
			root := syntax.Parse(text).Root()

			edits, ok := e.Rename(testURI, root, offset, "baz")
			if !ok {
				t.Fatal("Rename() returned no edits")
			}
			if len(edits) != 1 {
				t.Fatalf("edits touch %d documents, want 1", len(edits))
			}
			if got := applyEdits(text, edits[testURI]); got != tt.want {
				t.Errorf("renamed = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenameRejected(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"attribute through path", "let a = { bar = 1; }; in a.ba$0r"},
		{"unbound", "fo$0o"},
		{"not an identifier", "let foo = 1; in $0 foo"},
		{"builtin", "let x = 1; in builtin$0s.map"},
	}
	e := newEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, offset := testutil.Cursor(tt.src)
			root := syntax.Parse(text).Root()
			if edits, ok := e.Rename(testURI, root, offset, "baz"); ok {
				t.Errorf("Rename() = %+v, want none", edits)
			}
		})
	}
}

func TestReferences(t *testing.T) {
	text := "let foo = 1; in [ foo foo.x ({ foo = 2; }) ]"
	root := syntax.Parse(text).Root()
	letIn := root.FirstChild()

	var got []string
	for _, r := range References(letIn, "foo") {
		got = append(got, text[r.Start:r.End]+"@"+r.String())
	}
	want := []string{"foo@4..7", "foo@18..21", "foo@22..25", "foo@31..34"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("References() mismatch (-want +got):\n%s", diff)
	}
}

func TestIsValidIdent(t *testing.T) {
	tests := map[string]bool{
		"foo":       true,
		"_foo":      true,
		"foo-bar":   true,
		"foo'":      true,
		"x1":        true,
		"":          false,
		"1x":        false,
		"-x":        false,
		"foo.bar":   false,
		"let":       false,
		"has space": false,
	}
	for name, want := range tests {
		if got := IsValidIdent(name); got != want {
			t.Errorf("IsValidIdent(%q) = %v, want %v", name, got, want)
		}
	}
}
