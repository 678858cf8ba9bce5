package mongoid

import (
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"lowercase", "507f1f77bcf86cd799439011", "507f1f77bcf86cd799439011", false},
		{"uppercase normalized", "507F1F77BCF86CD799439011", "507f1f77bcf86cd799439011", false},
		{"empty string", "", "", true},
		{"too short", "507f1f77bcf86cd79943901", "", true},
		{"too long", "507f1f77bcf86cd7994390111", "", true},
		{"not hex", "507f1f77bcf86cd79943901z", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Parse(tt.in)
			if tt.wantErr {
				if err != ErrInvalidID {
					t.Errorf("Parse(%q) error = %v, want ErrInvalidID", tt.in, err)
				}
				if !id.IsEmpty() {
					t.Errorf("Parse(%q) = %s, want Empty on error", tt.in, id)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.in, err)
			}
			if id.String() != tt.want {
				t.Errorf("String() = %s, want %s", id.String(), tt.want)
			}
		})
	}
}

func TestEmpty(t *testing.T) {
	if !Empty.IsEmpty() {
		t.Error("Empty.IsEmpty() should be true")
	}
	if Empty.String() != strings.Repeat("0", Length) {
		t.Errorf("Empty.String() = %s", Empty.String())
	}
	if MustParse("507f1f77bcf86cd799439011").IsEmpty() {
		t.Error("parsed id should not be empty")
	}
}

func TestNew(t *testing.T) {
	seen := make(map[ID]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
		if !IsValid(id.String()) {
			t.Fatalf("New() produced invalid id %s", id)
		}
	}

	ts := New().Timestamp()
	if time.Since(ts) > time.Minute || time.Until(ts) > time.Minute {
		t.Errorf("Timestamp() = %v, want close to now", ts)
	}
}

func TestTextRoundTrip(t *testing.T) {
	id := New()
	text, err := id.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var got ID
	if err := got.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Errorf("UnmarshalText = %s, want %s", got, id)
	}
	if err := got.UnmarshalText([]byte("nope")); err == nil {
		t.Error("UnmarshalText should reject malformed input")
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse should panic on invalid input")
		}
	}()
	MustParse("bad")
}
