package msgpack

import (
	"bytes"
	"errors"
	"testing"
)

type window struct {
	Source string `msgpack:"source"`
	Start  int    `msgpack:"start"`
	End    int    `msgpack:"end"`
}

func TestRoundTrip(t *testing.T) {
	data, err := Marshal(window{Source: "users", Start: 100, End: 200})
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	got, err := Unmarshal[window](data)
	if err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if got != (window{Source: "users", Start: 100, End: 200}) {
		t.Errorf("Expected users [100,200), got %+v", got)
	}
}

func TestMarshalStable(t *testing.T) {
	v := map[string]any{"b": 2, "a": "one", "c": []string{"x"}, "d": map[string]any{"z": 1, "y": 2}}
	first, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	for range 10 {
		again, _ := Marshal(v)
		if !bytes.Equal(first, again) {
			t.Fatalf("Expected stable encoding, got %x and %x", first, again)
		}
	}
}

func TestUnmarshalErrors(t *testing.T) {
	if _, err := Unmarshal[window](nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("Expected ErrEmpty, got %v", err)
	}
	if _, err := Unmarshal[window]([]byte{0xc1}); err == nil {
		t.Error("Expected error for invalid data")
	}

	extra, err := Marshal(map[string]any{"source": "users", "owner": "root"})
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	if _, err := Unmarshal[window](extra); err == nil {
		t.Error("Expected error for unknown field")
	}
}
