package storage

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"nixlsp/internal/errors"
)

func setupTestDB(t *testing.T) (*DB, string) {
	t.Helper()
	tmpDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := Open(tmpDir, logger)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db, tmpDir
}

func setupTestCache(t *testing.T) *BlobCache {
	t.Helper()
	db, _ := setupTestDB(t)
	cache, err := NewBlobCache(db)
	if err != nil {
		t.Fatalf("NewBlobCache failed: %v", err)
	}
	t.Cleanup(cache.Close)
	return cache
}

func TestDatabaseInitialization(t *testing.T) {
	db, tmpDir := setupTestDB(t)

	dbPath := filepath.Join(tmpDir, DBFileName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatalf("Database file was not created at %s", dbPath)
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
	}

	version, err := db.getSchemaVersion()
	if err != nil {
		t.Fatalf("Failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("Expected schema version %d, got %d", currentSchemaVersion, version)
	}
}

func TestDatabaseReopen(t *testing.T) {
	tmpDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := Open(tmpDir, logger)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	cache, err := NewBlobCache(db)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Put("lib", "fp", []byte("payload"), 1); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	cache.Close()
	db.Close()

	db, err = Open(tmpDir, logger)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer db.Close()
	cache, err = NewBlobCache(db)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	blob, ok, err := cache.Get("lib")
	if err != nil || !ok {
		t.Fatalf("Get after reopen = %v, %v", ok, err)
	}
	if string(blob.Payload) != "payload" {
		t.Errorf("Payload = %q, want %q", blob.Payload, "payload")
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	db, tmpDir := setupTestDB(t)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion+1)); err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if other, err := Open(tmpDir, logger); err == nil {
		other.Close()
		t.Fatal("Open() should refuse a newer schema")
	}
}

func TestWithTxRollback(t *testing.T) {
	db, _ := setupTestDB(t)

	wantErr := io.ErrUnexpectedEOF
	err := db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO kb_blobs VALUES ('x', 'f', 'zstd', x'00', 'c', 0, 'g', 'now')`); err != nil {
			return err
		}
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("WithTx error = %v, want %v", err, wantErr)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM kb_blobs").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("rolled back insert is visible: %d rows", n)
	}
}

func TestBlobCachePutGet(t *testing.T) {
	cache := setupTestCache(t)
	payload := bytes.Repeat([]byte(`{"name":"lib.strings.concatStrings"}`), 200)

	info, err := cache.Put("nixpkgs-lib", "fp-1", payload, 200)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if info.CompressedSize >= len(payload) {
		t.Errorf("CompressedSize = %d, want less than %d", info.CompressedSize, len(payload))
	}
	if info.Generation == "" {
		t.Error("Put must assign a generation")
	}

	blob, ok, err := cache.Get("nixpkgs-lib")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if !bytes.Equal(blob.Payload, payload) {
		t.Error("payload changed in the round trip")
	}
	if blob.Fingerprint != "fp-1" || blob.Entries != 200 || blob.Codec != CodecZstd {
		t.Errorf("unexpected metadata %+v", blob.BlobInfo)
	}

	second, err := cache.Put("nixpkgs-lib", "fp-2", []byte("x"), 1)
	if err != nil {
		t.Fatal(err)
	}
	if second.Generation == info.Generation {
		t.Error("replacing a blob must change its generation")
	}
}

func TestBlobCacheGetMissing(t *testing.T) {
	cache := setupTestCache(t)

	blob, ok, err := cache.Get("absent")
	if err != nil || ok || blob != nil {
		t.Errorf("Get(absent) = %v, %v, %v", blob, ok, err)
	}
}

func TestBlobCacheCorruption(t *testing.T) {
	tests := []struct {
		name   string
		update string
	}{
		{"checksum mismatch", "UPDATE kb_blobs SET checksum = 'bogus'"},
		{"undecodable blob", "UPDATE kb_blobs SET blob = x'deadbeef'"},
		{"unknown codec", "UPDATE kb_blobs SET codec = 'lz4'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := setupTestCache(t)
			if _, err := cache.Put("src", "fp", []byte("hello"), 1); err != nil {
				t.Fatal(err)
			}
			if _, err := cache.db.Exec(tt.update); err != nil {
				t.Fatal(err)
			}

			_, ok, err := cache.Get("src")
			if ok {
				t.Error("corrupt blob reported as present")
			}
			if errors.CodeOf(err) != errors.CacheCorrupt {
				t.Errorf("CodeOf(err) = %v, want %v", errors.CodeOf(err), errors.CacheCorrupt)
			}
		})
	}
}

func TestBlobCacheListDelete(t *testing.T) {
	cache := setupTestCache(t)
	for _, src := range []string{"yaml-docs", "hm-options", "nixos-options"} {
		if _, err := cache.Put(src, "fp-"+src, []byte(src), 1); err != nil {
			t.Fatal(err)
		}
	}

	infos, err := cache.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var names []string
	for _, info := range infos {
		names = append(names, info.Source)
	}
	if got, want := len(names), 3; got != want {
		t.Fatalf("List returned %d blobs, want %d", got, want)
	}
	if names[0] != "hm-options" || names[2] != "yaml-docs" {
		t.Errorf("List order = %v, want sorted by source", names)
	}

	if err := cache.Delete("hm-options"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := cache.Delete("hm-options"); err != nil {
		t.Errorf("deleting a missing blob should succeed: %v", err)
	}
	if _, ok, _ := cache.Get("hm-options"); ok {
		t.Error("deleted blob is still present")
	}
}

func TestChecksum(t *testing.T) {
	a := Checksum([]byte("a"))
	if len(a) != 64 {
		t.Errorf("len(Checksum) = %d, want 64 hex chars", len(a))
	}
	if a == Checksum([]byte("b")) {
		t.Error("different inputs produced the same checksum")
	}
	if a != Checksum([]byte("a")) {
		t.Error("Checksum is not deterministic")
	}
}
