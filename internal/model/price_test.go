package model

import "testing"

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     string
		wantOK   bool
	}{
		{"two decimals kept", "19.90", "USD", "19.90 USD", true},
		{"one decimal padded", "19.9", "USD", "19.90 USD", true},
		{"long precision trimmed", "19.9000", "USD", "19.90 USD", true},
		{"integer amount", "5", "EUR", "5.00 EUR", true},
		{"currency uppercased", "12.5", "usd", "12.50 USD", true},
		{"whitespace trimmed", " 7.25 ", " gbp ", "7.25 GBP", true},
		{"missing amount", "", "USD", "", false},
		{"missing currency", "19.90", "", "", false},
		{"unparseable amount", "abc", "USD", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FormatPrice(tt.amount, tt.currency)
			if ok != tt.wantOK {
				t.Fatalf("FormatPrice(%q, %q) ok = %v, want %v", tt.amount, tt.currency, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("FormatPrice(%q, %q) = %q, want %q", tt.amount, tt.currency, got, tt.want)
			}
		})
	}
}
