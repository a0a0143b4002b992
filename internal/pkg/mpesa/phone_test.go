package mpesa

import (
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"local format", "0712345678", "254712345678", false},
		{"local with spaces", "0712 345 678", "254712345678", false},
		{"international", "254712345678", "254712345678", false},
		{"international with plus", "+254712345678", "254712345678", false},
		{"bare nine digits", "712345678", "254712345678", false},
		{"formatted with dashes", "0712-345-678", "254712345678", false},
		{"too short", "07123", "", true},
		{"too long", "2547123456789", "", true},
		{"empty", "", "", true},
		{"letters only", "not a phone", "", true},
		{"wrong prefix ten digits", "1712345678", "", true},
		{"254 prefix short form", "254712345", "254712345", false},
		{"254 prefix eleven digits", "25471234567", "25471234567", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPhone) {
					t.Fatalf("expected ErrInvalidPhone, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
