package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadJSON reads path and decodes it as JSON into dst. Unknown fields in
// the file are tolerated (no DisallowUnknownFields), since config.json
// and peers.json are external interfaces this node does not fully own.
func LoadJSON(path string, dst interface{}) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("storage: read %s: %w", path, err)
	}
	if err := json.Unmarshal(buf, dst); err != nil {
		return fmt.Errorf("storage: decode %s: %w", path, err)
	}
	return nil
}

// SaveJSON encodes src as indented JSON and writes it to path atomically
// (write to a temp file in the same directory, then rename) so a crash
// mid-write never leaves a truncated config.json/peers.json behind.
func SaveJSON(path string, src interface{}) error {
	buf, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: rename into %s: %w", path, err)
	}
	return nil
}
