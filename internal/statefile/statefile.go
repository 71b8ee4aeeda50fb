// Package statefile reads and writes the JSON state documents kept under the
// state directory. Maps are stored as lists of [key, value] pairs, and a path
// ending in .zst is transparently zstd compressed.
package statefile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Pair is a map entry encoded as a two element JSON array.
type Pair[V any] struct {
	Key   string
	Value V
}

// MarshalJSON encodes the pair as [key, value].
func (p Pair[V]) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{p.Key, p.Value})
}

// UnmarshalJSON decodes a [key, value] array.
func (p *Pair[V]) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("pair has %d elements, want 2", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Key); err != nil {
		return fmt.Errorf("pair key: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Value); err != nil {
		return fmt.Errorf("pair %q value: %w", p.Key, err)
	}
	return nil
}

// Pairs converts m to pairs sorted by key.
func Pairs[V any](m map[string]V) []Pair[V] {
	out := make([]Pair[V], 0, len(m))
	for k, v := range m {
		out = append(out, Pair[V]{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// ToMap converts pairs back to a map. Later duplicates win.
func ToMap[V any](pairs []Pair[V]) map[string]V {
	out := make(map[string]V, len(pairs))
	for _, p := range pairs {
		out[p.Key] = p.Value
	}
	return out
}

// IsCompressed reports whether path selects zstd compression.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

// Write encodes v to path. The document is written to a temporary file in
// the same directory and renamed into place.
func Write(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // best effort once renamed

	if err := encode(tmp, path, v); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

func encode(w io.Writer, path string, v interface{}) error {
	if !IsCompressed(path) {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
		}
		return nil
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if err := json.NewEncoder(zw).Encode(v); err != nil {
		_ = zw.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush zstd stream: %w", err)
	}
	return nil
}

// Read decodes the document at path into v. A missing file yields an error
// satisfying errors.Is(err, fs.ErrNotExist).
func Read(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	var r io.Reader = f
	if IsCompressed(path) {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("open zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
