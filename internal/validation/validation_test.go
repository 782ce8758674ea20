package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateAreaID_Valid(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1", "1"},
		{"  7 ", "7"},
		{"zona_norte", "zona_norte"},
		{"boa-viagem", "boa-viagem"},
		{"São_José", "São_José"},
	}
	for _, tc := range tests {
		got, err := ValidateAreaID(tc.in)
		if err != nil {
			t.Errorf("ValidateAreaID(%q) error = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ValidateAreaID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidateAreaID_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", ErrAreaIDEmpty},
		{"whitespace", " \t ", ErrAreaIDEmpty},
		{"too long", strings.Repeat("a", MaxAreaIDLength+1), ErrAreaIDTooLong},
		{"space inside", "zona sul", ErrAreaIDInvalidChars},
		{"dot", "../etc", ErrAreaIDInvalidChars},
		{"semicolon", "1;drop", ErrAreaIDInvalidChars},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateAreaID(tc.in)
			if !errors.Is(err, tc.want) {
				t.Errorf("ValidateAreaID(%q) error = %v, want %v", tc.in, err, tc.want)
			}
		})
	}
}

func TestValidateAreaID_MaxLengthAccepted(t *testing.T) {
	id := strings.Repeat("é", MaxAreaIDLength)
	if _, err := ValidateAreaID(id); err != nil {
		t.Errorf("ValidateAreaID(%d runes) error = %v, want nil", MaxAreaIDLength, err)
	}
}
