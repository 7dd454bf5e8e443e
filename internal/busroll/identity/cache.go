package identity

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const cacheVersion = 1

type cacheFile struct {
	Version int
	BuiltAt time.Time
	Entries []Entry
}

// SaveGallery writes the gallery entries to path so a restart can skip
// re-extracting every photo.  The file is replaced atomically.
func SaveGallery(path string, g *Gallery) error {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(cacheFile{
		Version: cacheVersion,
		BuiltAt: g.BuiltAt(),
		Entries: g.Entries(),
	}); err != nil {
		return fmt.Errorf("failed to encode gallery: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create gallery cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write gallery cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close gallery cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to install gallery cache: %w", err)
	}
	return nil
}

// LoadGallery reads a cache written by SaveGallery and rebuilds the
// gallery, including its index, with opts.
func LoadGallery(path string, opts GalleryOptions) (*Gallery, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery cache: %w", err)
	}

	var cf cacheFile
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("failed to decode gallery cache: %w", err)
	}
	if cf.Version != cacheVersion {
		return nil, fmt.Errorf("gallery cache version %d, want %d", cf.Version, cacheVersion)
	}

	opts.BuiltAt = cf.BuiltAt
	return NewGallery(cf.Entries, opts)
}
