package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

const (
	jsPrefix = "Search.setIndex("
	jsSuffix = ")"
)

// Decode parses either the JavaScript wrapper Search.setIndex({...}) or a
// bare JSON object.
func Decode(data []byte) (*Index, error) {
	payload := bytes.TrimSpace(data)
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", apperrors.ErrInvalidIndex)
	}
	if bytes.HasPrefix(payload, []byte(jsPrefix)) {
		payload = bytes.TrimPrefix(payload, []byte(jsPrefix))
		payload = bytes.TrimSpace(payload)
		payload = bytes.TrimSuffix(payload, []byte(";"))
		payload = bytes.TrimSpace(payload)
		if !bytes.HasSuffix(payload, []byte(jsSuffix)) {
			return nil, fmt.Errorf("%w: unterminated %s call", apperrors.ErrInvalidIndex, jsPrefix)
		}
		payload = bytes.TrimSuffix(payload, []byte(jsSuffix))
	}
	if len(payload) == 0 || payload[0] != '{' {
		return nil, fmt.Errorf("%w: payload is not an object", apperrors.ErrInvalidIndex)
	}

	idx := &Index{}
	if err := json.Unmarshal(payload, idx); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidIndex, err)
	}
	idx.normalize()
	return idx, nil
}

// Read decodes an index from r.
func Read(r io.Reader) (*Index, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	return Decode(data)
}

// LoadFile reads and decodes the index at path.
func LoadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading index file %s: %w", path, err)
	}
	idx, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding index file %s: %w", path, err)
	}
	return idx, nil
}

// Marshal returns the canonical JSON encoding. Map keys are sorted, so equal
// indices always encode to identical bytes.
func Marshal(idx *Index) ([]byte, error) {
	clone := *idx
	clone.normalize()
	data, err := json.Marshal(&clone)
	if err != nil {
		return nil, fmt.Errorf("marshaling index: %w", err)
	}
	return data, nil
}

// MarshalJS wraps the canonical JSON in the Search.setIndex call a browser
// loads.
func MarshalJS(idx *Index) ([]byte, error) {
	data, err := Marshal(idx)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(data)+len(jsPrefix)+len(jsSuffix))
	out = append(out, jsPrefix...)
	out = append(out, data...)
	out = append(out, jsSuffix...)
	return out, nil
}

// Write encodes idx to w in the JavaScript form.
func Write(w io.Writer, idx *Index) error {
	data, err := MarshalJS(idx)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return nil
}

// WriteFile atomically replaces path with the JavaScript encoding of idx.
// Readers never observe a partially written file.
func WriteFile(path string, idx *Index) error {
	data, err := MarshalJS(idx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing index file %s: %w", path, err)
	}
	return nil
}
