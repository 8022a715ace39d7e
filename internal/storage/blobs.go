package storage

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"nixlsp/internal/errors"
)

// CodecZstd is the only blob codec written today.
const CodecZstd = "zstd"

// BlobInfo describes a stored blob without its payload.
type BlobInfo struct {
	Source      string
	Fingerprint string
	Codec       string
	Checksum    string
	Entries     int
	// CompressedSize is the size of the stored blob in bytes.
	CompressedSize int
	// Generation changes on every Put.
	Generation string
	UpdatedAt  time.Time
}

// Blob is a stored blob with its decompressed payload.
type Blob struct {
	BlobInfo
	Payload []byte
}

// BlobCache stores one compressed payload per knowledge base source.
type BlobCache struct {
	db      *DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewBlobCache creates a blob cache on db.
func NewBlobCache(db *DB) (*BlobCache, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &BlobCache{db: db, encoder: enc, decoder: dec}, nil
}

// Close releases the codec resources. The database stays open.
func (c *BlobCache) Close() {
	c.encoder.Close()
	c.decoder.Close()
}

// Checksum returns the hex BLAKE2b-256 digest of data.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Put compresses and stores payload for source, replacing any previous blob.
func (c *BlobCache) Put(source, fingerprint string, payload []byte, entries int) (*BlobInfo, error) {
	compressed := c.encoder.EncodeAll(payload, nil)
	info := &BlobInfo{
		Source:         source,
		Fingerprint:    fingerprint,
		Codec:          CodecZstd,
		Checksum:       Checksum(payload),
		Entries:        entries,
		CompressedSize: len(compressed),
		Generation:     uuid.NewString(),
		UpdatedAt:      time.Now().UTC().Truncate(time.Second),
	}

	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO kb_blobs (source, fingerprint, codec, blob, checksum, entries, generation, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, info.Source, info.Fingerprint, info.Codec, compressed, info.Checksum, info.Entries, info.Generation,
		info.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to store blob for %s: %w", source, err)
	}
	return info, nil
}

// Get returns the blob for source. A blob that fails to decompress or
// whose checksum does not match yields a CACHE_CORRUPT error.
func (c *BlobCache) Get(source string) (*Blob, bool, error) {
	var (
		blob       Blob
		compressed []byte
		updatedAt  string
	)
	err := c.db.QueryRow(`
		SELECT source, fingerprint, codec, blob, checksum, entries, generation, updated_at
		FROM kb_blobs
		WHERE source = ?
	`, source).Scan(&blob.Source, &blob.Fingerprint, &blob.Codec, &compressed, &blob.Checksum,
		&blob.Entries, &blob.Generation, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("blob lookup failed: %w", err)
	}
	blob.CompressedSize = len(compressed)
	blob.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	if blob.Codec != CodecZstd {
		return nil, false, errors.Newf(errors.CacheCorrupt, "blob for %s uses unknown codec %q", source, blob.Codec)
	}
	payload, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false, errors.New(errors.CacheCorrupt, "blob for "+source+" does not decompress", err)
	}
	if Checksum(payload) != blob.Checksum {
		return nil, false, errors.Newf(errors.CacheCorrupt, "blob for %s failed checksum verification", source)
	}
	blob.Payload = payload
	return &blob, true, nil
}

// Delete removes the blob for source. Missing sources are not an error.
func (c *BlobCache) Delete(source string) error {
	if _, err := c.db.Exec("DELETE FROM kb_blobs WHERE source = ?", source); err != nil {
		return fmt.Errorf("failed to delete blob for %s: %w", source, err)
	}
	return nil
}

// List returns every stored blob without payloads, ordered by source.
func (c *BlobCache) List() ([]BlobInfo, error) {
	rows, err := c.db.Query(`
		SELECT source, fingerprint, codec, checksum, entries, length(blob), generation, updated_at
		FROM kb_blobs
		ORDER BY source
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	defer rows.Close()

	var infos []BlobInfo
	for rows.Next() {
		var (
			info      BlobInfo
			updatedAt string
		)
		if err := rows.Scan(&info.Source, &info.Fingerprint, &info.Codec, &info.Checksum, &info.Entries,
			&info.CompressedSize, &info.Generation, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan blob row: %w", err)
		}
		info.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}
