package payload

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

type person struct {
	FullName string `json:"full_name"`
	Age      int    `json:"age"`
}

func decode(t *testing.T, data json.RawMessage) []map[string]any {
	t.Helper()
	var out []map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("invalid JSON %s: %v", data, err)
	}
	return out
}

func TestEncodeEmpty(t *testing.T) {
	enc := Default()

	for name, rows := range map[string]any{
		"nil":       nil,
		"nil slice": []person(nil),
		"empty":     []map[string]any{},
	} {
		t.Run(name, func(t *testing.T) {
			data, err := enc.Encode(rows)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if string(data) != "[]" {
				t.Errorf("Encode() = %s, want []", data)
			}
		})
	}
}

func TestEncodeNotSlice(t *testing.T) {
	_, err := Default().Encode(person{})
	if !errors.Is(err, ErrNotSlice) {
		t.Fatalf("Expected ErrNotSlice, got %v", err)
	}
}

func TestEncodeMapKeys(t *testing.T) {
	rows := []map[string]any{
		{"first_name": "Ada", "birth_year": 1815},
	}

	t.Run("lower camel", func(t *testing.T) {
		out := decode(t, mustEncode(t, Default(), rows))
		if out[0]["firstName"] != "Ada" {
			t.Errorf("firstName = %v, want Ada", out[0]["firstName"])
		}
		if out[0]["birthYear"] != float64(1815) {
			t.Errorf("birthYear = %v, want 1815", out[0]["birthYear"])
		}
	})

	t.Run("as is", func(t *testing.T) {
		out := decode(t, mustEncode(t, NewEncoder(&Options{Keys: KeysAsIs}), rows))
		if out[0]["first_name"] != "Ada" {
			t.Errorf("first_name = %v, want Ada", out[0]["first_name"])
		}
	})
}

func TestEncodeStructRows(t *testing.T) {
	rows := []person{{FullName: "Grace Hopper", Age: 85}}

	out := decode(t, mustEncode(t, Default(), rows))
	if out[0]["fullName"] != "Grace Hopper" {
		t.Errorf("fullName = %v, want Grace Hopper", out[0]["fullName"])
	}

	out = decode(t, mustEncode(t, NewEncoder(&Options{Keys: KeysAsIs}), rows))
	if out[0]["full_name"] != "Grace Hopper" {
		t.Errorf("full_name = %v, want Grace Hopper", out[0]["full_name"])
	}
}

func TestEncodeOrderPreserved(t *testing.T) {
	rows := []map[string]any{{"id": 3}, {"id": 1}, {"id": 2}}
	out := decode(t, mustEncode(t, Default(), rows))
	for i, want := range []float64{3, 1, 2} {
		if out[i]["id"] != want {
			t.Errorf("row %d id = %v, want %v", i, out[i]["id"], want)
		}
	}
}

func TestEncodeGeometryAndTime(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	rows := []map[string]any{
		{"location": orb.Point{1.5, 2.5}, "seen_at": ts},
	}

	out := decode(t, mustEncode(t, Default(), rows))

	loc, ok := out[0]["location"].(map[string]any)
	if !ok {
		t.Fatalf("location = %T, want GeoJSON object", out[0]["location"])
	}
	if loc["type"] != "Point" {
		t.Errorf("location type = %v, want Point", loc["type"])
	}
	if out[0]["seenAt"] != "2024-01-15T10:30:00Z" {
		t.Errorf("seenAt = %v", out[0]["seenAt"])
	}
}

func TestParseKeyStyle(t *testing.T) {
	tests := []struct {
		in      string
		want    KeyStyle
		wantErr bool
	}{
		{"", KeysLowerCamel, false},
		{"lowerCamel", KeysLowerCamel, false},
		{"asIs", KeysAsIs, false},
		{"snake", KeysLowerCamel, true},
	}
	for _, tt := range tests {
		got, err := ParseKeyStyle(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKeyStyle(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseKeyStyle(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func mustEncode(t *testing.T, enc *Encoder, rows any) json.RawMessage {
	t.Helper()
	data, err := enc.Encode(rows)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return data
}
