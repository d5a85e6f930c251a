package mbtiles

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/MeKo-Tech/nusantaramap/internal/tile"
)

// Reader reads tiles from an MBTiles database.
type Reader struct {
	db       *sql.DB
	path     string
	metadata Metadata
}

// OpenReader opens an MBTiles database for reading and loads its metadata.
func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro&immutable=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='tiles'").Scan(&count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify schema: %w", err)
	}
	if count == 0 {
		db.Close()
		return nil, fmt.Errorf("database does not contain tiles table")
	}

	r := &Reader{db: db, path: path}
	if r.metadata, err = r.readMetadata(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Path returns the archive location.
func (r *Reader) Path() string {
	return r.path
}

// Metadata returns the metadata read when the archive was opened.
func (r *Reader) Metadata() Metadata {
	return r.metadata
}

// ReadTile returns the tile payload at XYZ coordinates c.
// Gzipped blobs are inflated; anything else is returned as stored.
func (r *Reader) ReadTile(c tile.Coords) ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrTileNotFound, c)
	}

	var data []byte
	err := r.db.QueryRow(
		"SELECT tile_data FROM tiles WHERE zoom_level=? AND tile_column=? AND tile_row=?",
		c.Z, c.X, c.TMSRow(),
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTileNotFound, c)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tile %s: %w", c, err)
	}

	if !isGzip(data) {
		return data, nil
	}
	uncompressed, err := gzipDecompress(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress tile %s: %w", c, err)
	}
	return uncompressed, nil
}

// ZoomCounts returns the number of stored tiles per zoom level.
func (r *Reader) ZoomCounts() (map[int]int, error) {
	rows, err := r.db.Query("SELECT zoom_level, COUNT(*) FROM tiles GROUP BY zoom_level")
	if err != nil {
		return nil, fmt.Errorf("failed to count tiles: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var z, n int
		if err := rows.Scan(&z, &n); err != nil {
			return nil, fmt.Errorf("failed to scan tile count: %w", err)
		}
		counts[z] = n
	}
	return counts, rows.Err()
}

func (r *Reader) readMetadata() (Metadata, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	metaMap := make(map[string]string)
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		metaMap[name] = value.String
	}
	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("error iterating metadata: %w", err)
	}

	return ParseMetadata(metaMap), nil
}

// Close closes the database connection.
func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

// gzipDecompress decompresses gzip data.
func gzipDecompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	return io.ReadAll(gr)
}
