package completion

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"nixlsp/internal/config"
	"nixlsp/internal/document"
	"nixlsp/internal/kb"
	"nixlsp/internal/lookup"
	"nixlsp/internal/slogutil"
	"nixlsp/internal/syntax"
	"nixlsp/internal/testutil"
)

const testURI = "file:///workspace/default.nix"

func docs(names ...string) []kb.DocEntry {
	out := make([]kb.DocEntry, len(names))
	for i, n := range names {
		out[i] = kb.DocEntry{Name: n, Documentation: "doc " + n, Source: "test"}
	}
	return out
}

func newEngine(cfg config.CompletionConfig, values ...string) *Engine {
	return NewEngine(kb.New(docs(values...), nil), nil, cfg, slogutil.NewDiscardLogger())
}

// complete parses src, which must contain a cursor marker, and completes
// at the marker.
func complete(t *testing.T, e *Engine, src string) (string, Result) {
	t.Helper()
	text, offset := testutil.Cursor(src)
	if offset < 0 {
		t.Fatalf("source %q has no cursor", src)
	}
	root := syntax.Parse(text).Root()
	return text, e.Complete(testURI, root, offset)
}

// apply performs the edit of an item on text.
func apply(text string, it Item) string {
	return text[:it.Range.Start] + it.NewText + text[it.Range.End:]
}

type itemSummary struct {
	Label   string
	Kind    ItemKind
	NewText string
	HasDoc  bool
}

func summarize(items []Item) []itemSummary {
	var out []itemSummary
	for _, it := range items {
		out = append(out, itemSummary{it.Label, it.Kind, it.NewText, it.Documentation != ""})
	}
	return out
}

func TestDepthClassification(t *testing.T) {
	e := newEngine(config.CompletionConfig{}, "lib.foo.bar", "lib.foo")

	got := e.classify("lib.foo", docs("lib.foo", "lib.foo.bar"))
	want := []result{
		{entry: docs("lib.foo")[0], display: "lib.foo", leaf: true},
		{entry: docs("lib.foo.bar")[0], display: "lib.foo", leaf: false},
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(result{})); diff != "" {
		t.Fatalf("classify() mismatch (-want +got):\n%s", diff)
	}

	text := "lib.foo"
	covering := syntax.Parse(text).Root().FirstChild()
	items := e.Namespace([]string{"lib", "foo"}, covering, nil)
	wantItems := []itemSummary{{Label: "lib.foo", Kind: KindValue, NewText: "lib.foo", HasDoc: true}}
	if diff := cmp.Diff(wantItems, summarize(items)); diff != "" {
		t.Errorf("Namespace() mismatch (-want +got):\n%s", diff)
	}
}

func TestLabelStripping(t *testing.T) {
	e := newEngine(config.CompletionConfig{}, "pkgs.foo.bar")
	covering := syntax.Parse("foo").Root().FirstChild()

	items := e.Namespace([]string{"foo"}, covering, []string{"pkgs"})
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1: %+v", len(items), items)
	}
	if items[0].Label != "foo.bar" {
		t.Errorf("Label = %q, want foo.bar", items[0].Label)
	}
	if items[0].NewText != "pkgs.foo.bar" {
		t.Errorf("NewText = %q, want pkgs.foo.bar", items[0].NewText)
	}
}

func TestLabelStrippingIgnoresCase(t *testing.T) {
	e := newEngine(config.CompletionConfig{}, "pkgs.hello")
	covering := syntax.Parse("hello").Root().FirstChild()

	items := e.Namespace([]string{"hello"}, covering, []string{"Pkgs"})
	want := []itemSummary{{Label: "hello", Kind: KindValue, NewText: "pkgs.hello", HasDoc: true}}
	if diff := cmp.Diff(want, summarize(items)); diff != "" {
		t.Errorf("Namespace() mismatch (-want +got):\n%s", diff)
	}
}

func TestStripNamespace(t *testing.T) {
	tests := []struct {
		name, prefix, want string
	}{
		{"pkgs.hello", "pkgs", "hello"},
		{"pkgs.hello", "PKGS", "hello"},
		{"pkgs.hello", "", "pkgs.hello"},
		{"pkgsx.hello", "pkgs", "pkgsx.hello"},
		{"pkgs", "pkgs", "pkgs"},
		{"lib.hello", "pkgs", "lib.hello"},
	}
	for _, tt := range tests {
		if got := stripNamespace(tt.name, tt.prefix); got != tt.want {
			t.Errorf("stripNamespace(%q, %q) = %q, want %q", tt.name, tt.prefix, got, tt.want)
		}
	}
}

func TestDedupeKeepsShortestNamespace(t *testing.T) {
	entries := docs("lib.lists.foldl", "lib.lists.map", "lib.lists.imap0", "lib.strings", "lib.strings.concat")
	results := []result{
		{entry: entries[0], display: "lib.lists"},
		{entry: entries[1], display: "lib.lists"},
		{entry: entries[2], display: "lib.lists"},
		{entry: entries[3], display: "lib.strings", leaf: true},
		{entry: entries[4], display: "lib.strings"},
	}
	want := []result{
		{entry: entries[1], display: "lib.lists"},
		{entry: entries[3], display: "lib.strings", leaf: true},
	}
	if diff := cmp.Diff(want, dedupe(results), cmp.AllowUnexported(result{})); diff != "" {
		t.Errorf("dedupe() mismatch (-want +got):\n%s", diff)
	}
}

func TestMatchLen(t *testing.T) {
	lax := newEngine(config.CompletionConfig{})
	strict := newEngine(config.CompletionConfig{StrictNamespaceMatch: true})
	query, name := []string{"a", "zzz"}, []string{"a", "b", "c"}

	if got := lax.matchLen(query, name); got != 2 {
		t.Errorf("lax matchLen = %d, want 2", got)
	}
	if got := strict.matchLen(query, name); got != 1 {
		t.Errorf("strict matchLen = %d, want 1", got)
	}
	if got := strict.matchLen([]string{"LIB", ""}, []string{"lib", "foo"}); got != 2 {
		t.Errorf("strict matchLen with trailing dot = %d, want 2", got)
	}
}

func TestStrictNamespaceMatch(t *testing.T) {
	values := []string{"lib.foo", "lib.foo.bar"}
	covering := syntax.Parse("lib.fo").Root().FirstChild()
	path := []string{"lib", "fo"}

	lax := newEngine(config.CompletionConfig{}, values...)
	want := []itemSummary{{Label: "lib.foo", Kind: KindValue, NewText: "lib.foo", HasDoc: true}}
	if diff := cmp.Diff(want, summarize(lax.Namespace(path, covering, nil))); diff != "" {
		t.Errorf("lax mismatch (-want +got):\n%s", diff)
	}

	strict := newEngine(config.CompletionConfig{StrictNamespaceMatch: true}, values...)
	want = []itemSummary{{Label: "lib.foo", Kind: KindNamespace, NewText: "lib.foo"}}
	if diff := cmp.Diff(want, summarize(strict.Namespace(path, covering, nil))); diff != "" {
		t.Errorf("strict mismatch (-want +got):\n%s", diff)
	}
}

func TestComplete(t *testing.T) {
	values := []string{
		"lib.strings",
		"lib.strings.concatStrings",
		"lib.lists.foldl",
		"pkgs.hello",
		"pkgs.help.x",
	}
	options := []string{"services.nginx.enable", "services.nginx.package"}
	e := NewEngine(kb.New(docs(values...), docs(options...)), nil, config.CompletionConfig{}, slogutil.NewDiscardLogger())

	tests := []struct {
		name   string
		src    string
		want   []itemSummary
		result string
	}{
		{
			name: "partial segment",
			src:  "{ x = lib.stri$0; }",
			want: []itemSummary{
				{Label: "lib.strings", Kind: KindValue, NewText: "lib.strings", HasDoc: true},
			},
			result: "{ x = lib.strings; }",
		},
		{
			name: "trailing dot",
			src:  "{ x = lib.$0; }",
			want: []itemSummary{
				{Label: "lib.lists.foldl", Kind: KindNamespace, NewText: "lib.lists.foldl"},
				{Label: "lib.strings", Kind: KindValue, NewText: "lib.strings", HasDoc: true},
			},
			result: "{ x = lib.lists.foldl; }",
		},
		{
			name: "with namespace",
			src:  "with pkgs; [ hel$0 ]",
			want: []itemSummary{
				{Label: "hello", Kind: KindValue, NewText: "pkgs.hello", HasDoc: true},
				{Label: "help.x", Kind: KindNamespace, NewText: "pkgs.help.x"},
			},
			result: "with pkgs; [ pkgs.hello ]",
		},
		{
			name: "key namespace",
			src:  "{ services.nginx = { ena$0 = true; }; }",
			want: []itemSummary{
				{Label: "enable", Kind: KindValue, NewText: "services.nginx.enable", HasDoc: true},
			},
			result: "{ services.nginx = { services.nginx.enable = true; }; }",
		},
		{
			name: "module config namespace",
			src:  "{ config.services.nginx = { pack$0 = null; }; }",
			want: []itemSummary{
				{Label: "package", Kind: KindValue, NewText: "services.nginx.package", HasDoc: true},
			},
			result: "{ config.services.nginx = { services.nginx.package = null; }; }",
		},
		{
			name: "no hits",
			src:  "{ x = nothing$0; }",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, res := complete(t, e, tt.src)
			if !res.Incomplete {
				t.Error("result should be incomplete")
			}
			if diff := cmp.Diff(tt.want, summarize(res.Items)); diff != "" {
				t.Fatalf("items mismatch (-want +got):\n%s", diff)
			}
			if tt.result == "" {
				return
			}
			if got := apply(text, res.Items[0]); got != tt.result {
				t.Errorf("applied edit = %q, want %q", got, tt.result)
			}
		})
	}
}

func TestCollectPrefixes(t *testing.T) {
	node := syntax.Parse("x").Root()
	providers := []PrefixProvider{
		StaticPrefixes{"pkgs", " pkgs ", "", "lib."},
		PrefixFunc(func(*syntax.Node) []string { return []string{"pkgs", "lib.strings"} }),
	}
	want := []string{"pkgs", "lib", "lib.strings"}
	if diff := cmp.Diff(want, collectPrefixes(node, providers)); diff != "" {
		t.Errorf("collectPrefixes() mismatch (-want +got):\n%s", diff)
	}
}

func TestWithNamespaces(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"nested", "with lib; with lib.strings; [ x$0 ]", []string{"lib.strings", "lib"}},
		{"cursor in namespace", "with pk$0; [ ]", nil},
		{"dynamic namespace", "with (import ./x.nix); [ x$0 ]", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, offset := testutil.Cursor(tt.src)
			node := lookup.ClosestNodeTo(syntax.Parse(text).Root(), offset)
			if diff := cmp.Diff(tt.want, WithNamespaces{}.Prefixes(node)); diff != "" {
				t.Errorf("Prefixes() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestScopeCompletions(t *testing.T) {
	logger := slogutil.NewDiscardLogger()
	resolver := lookup.NewResolver(document.NewStore(logger), 0, logger)
	src := "let foo = 1; foobar = 2; bar = 3; in fo$0"

	on := NewEngine(kb.Empty(), resolver, config.CompletionConfig{ScopeCompletions: true}, logger)
	text, res := complete(t, on, src)
	want := []itemSummary{
		{Label: "foo", Kind: KindVariable, NewText: "foo"},
		{Label: "foobar", Kind: KindVariable, NewText: "foobar"},
	}
	if diff := cmp.Diff(want, summarize(res.Items)); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
	if got := apply(text, res.Items[1]); got != "let foo = 1; foobar = 2; bar = 3; in foobar" {
		t.Errorf("applied edit = %q", got)
	}

	off := NewEngine(kb.Empty(), resolver, config.CompletionConfig{}, logger)
	if _, res := complete(t, off, src); len(res.Items) != 0 {
		t.Errorf("scope completions disabled, got %+v", res.Items)
	}
}
