// Package msgpack is the Flight ticket codec.
package msgpack

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrEmpty is returned when there is nothing to decode.
var ErrEmpty = errors.New("msgpack: empty data")

// Marshal encodes v with compact integers. Keys of map[string]any,
// map[string]string and map[string]bool values are written in sorted order;
// other map types keep Go's random order, so tickets use structs.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("msgpack encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into a new T. Fields T does not declare are
// rejected.
func Unmarshal[T any](data []byte) (T, error) {
	var v T
	if len(data) == 0 {
		return v, ErrEmpty
	}
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields(true)
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("msgpack decode: %w", err)
	}
	return v, nil
}
