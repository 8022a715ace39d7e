// Package testutil provides fixtures for tests that need Nix files on disk
// or a cursor position inside a source string.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rogpeppe/go-internal/txtar"

	"nixlsp/internal/paths"
)

// CursorMarker marks the cursor in test sources.
const CursorMarker = "$0"

// Workspace is a directory populated from a txtar archive.
type Workspace struct {
	// Root is the absolute path to the workspace directory
	Root string
	// Files holds the archive contents by relative name, markers removed.
	Files map[string]string
	// Cursors holds the cursor offset for files that contained a marker.
	Cursors map[string]int
}

// LoadWorkspace writes every file of the txtar archive into a fresh temp
// directory, failing the test on error. A CursorMarker inside a file is
// removed and its offset recorded.
func LoadWorkspace(t *testing.T, archive string) *Workspace {
	t.Helper()

	ws := &Workspace{
		Root:    t.TempDir(),
		Files:   make(map[string]string),
		Cursors: make(map[string]int),
	}
	for _, f := range txtar.Parse([]byte(archive)).Files {
		text, offset := Cursor(string(f.Data))
		if offset >= 0 {
			ws.Cursors[f.Name] = offset
		}
		ws.Files[f.Name] = text

		path := ws.Path(f.Name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("Failed to create fixture directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			t.Fatalf("Failed to write fixture %s: %v", f.Name, err)
		}
	}
	return ws
}

// Path returns the absolute path of a workspace file.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Root, filepath.FromSlash(name))
}

// URI returns the file:// URI of a workspace file.
func (w *Workspace) URI(name string) string {
	return paths.PathToURI(w.Path(name))
}

// Cursor returns the workspace cursor of name, failing the test when the
// file had no marker.
func (w *Workspace) Cursor(t *testing.T, name string) int {
	t.Helper()
	offset, ok := w.Cursors[name]
	if !ok {
		t.Fatalf("Fixture %s has no %s marker", name, CursorMarker)
	}
	return offset
}

// Cursor strips the first CursorMarker from src and returns the offset it
// was at, or -1 when src has none.
func Cursor(src string) (string, int) {
	i := strings.Index(src, CursorMarker)
	if i < 0 {
		return src, -1
	}
	return src[:i] + src[i+len(CursorMarker):], i
}
