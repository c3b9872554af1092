package persistence

import (
	"bytes"
	"encoding/gob"
	"time"
)

func init() {
	// Value maps hold whatever operations produce; register the composite
	// shapes that cross the codec as interface members.
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(time.Time{})
}

// EncodeValues serializes an invocation value map using encoding/gob.
// Values must be gob-encodable; a nil map encodes to nil.
func EncodeValues(values map[string]any) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(values); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeValues is the inverse of EncodeValues.
func DecodeValues(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var values map[string]any
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&values); err != nil {
		return nil, err
	}
	return values, nil
}
