package hierarchy

import (
	"bytes"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// Decode reads one JSON object. Numbers are kept as json.Number so that
// integer metrics round-trip without float conversion.
func Decode(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("decode payload: not a JSON object")
	}
	return out, nil
}

// Unmarshal is Decode over a byte slice.
func Unmarshal(data []byte) (map[string]any, error) {
	return Decode(bytes.NewReader(data))
}
