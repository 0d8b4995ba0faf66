// Package wire implements the two wire-level concerns of the challenge
// blob: canonical JSON encoding (the input to every commitment hash) and
// bz2 compression of the stored/transmitted package bytes.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/dsnet/compress/bzip2"
)

// CanonicalJSON re-serializes v with sorted object keys and no inserted
// whitespace, matching the commitment canonicalization rule: sorted keys,
// ':' and ',' separators, UTF-8, nothing else. encoding/json's default
// Marshal output is already whitespace-free but does not sort map keys of
// non-string-keyed or struct-tag-ordered values consistently with the
// commitment contract, so values are round-tripped through a generic
// interface{} tree and re-emitted key-sorted.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("wire: unmarshal: %w", err)
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		leaf, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(leaf)
	}
	return nil
}

// Compress bz2-compresses data. Go's standard library compress/bzip2 is
// decode-only, so compression goes through dsnet/compress/bzip2, a
// maintained ecosystem bzip2 read/writer.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
	if err != nil {
		return nil, fmt.Errorf("wire: bzip2 writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("wire: bzip2 write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("wire: bzip2 close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress, returning an error (never panicking) on a
// malformed blob so callers can surface InvalidPackage.
func Decompress(data []byte) ([]byte, error) {
	r, err := bzip2.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		return nil, fmt.Errorf("wire: bzip2 reader: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("wire: bzip2 read: %w", err)
	}
	return out, nil
}
