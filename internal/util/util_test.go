package util

import (
	"testing"
)

func TestNormalizeDealURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "Force https",
			input: "http://amazon.ca/dp/B001ABC",
			want:  "https://amazon.ca/dp/B001ABC",
		},
		{
			name:  "Trailing slash",
			input: "https://bestbuy.ca/en-ca/product/12345/",
			want:  "https://bestbuy.ca/en-ca/product/12345",
		},
		{
			name:  "Strip UTM params",
			input: "https://amazon.ca/dp/B001ABC?utm_source=foo&utm_medium=bar",
			want:  "https://amazon.ca/dp/B001ABC",
		},
		{
			name:  "Strip amazon tracking params",
			input: "https://amazon.ca/dp/B001ABC?ref=nav_logo&pf_rd_r=XYZ&psc=1",
			want:  "https://amazon.ca/dp/B001ABC",
		},
		{
			name:  "Keep meaningful params",
			input: "https://walmart.ca/search?q=pokemon",
			want:  "https://walmart.ca/search?q=pokemon",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDealURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("NormalizeDealURL() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("NormalizeDealURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeDealURL_Idempotent(t *testing.T) {
	input := "http://amazon.ca/dp/B001ABC/?utm_source=feed&ref=xx"
	once, err := NormalizeDealURL(input)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := NormalizeDealURL(once)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Errorf("normalization not idempotent: %q vs %q", once, twice)
	}
}

func TestGetDomain(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "Standard domain", input: "https://amazon.ca/dp/12345", want: "amazon.ca"},
		{name: "Subdomain", input: "https://smile.amazon.ca/dp/12345", want: "amazon.ca"},
		{name: "Two-part TLD", input: "https://example.co.uk/product", want: "example.co.uk"},
		{name: "Subdomain with two-part TLD", input: "https://shop.example.co.uk/p", want: "example.co.uk"},
		{name: "www stripped", input: "https://www.bestbuy.ca", want: "bestbuy.ca"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetDomain(tt.input); got != tt.want {
				t.Errorf("GetDomain() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSafeParseFloat(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"19.99", 19.99},
		{"$1,299.00", 1299},
		{"  42 ", 42},
		{"not-a-price", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := SafeParseFloat(tt.input); got != tt.want {
			t.Errorf("SafeParseFloat(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSafeAtoi(t *testing.T) {
	if got := SafeAtoi(" 123 "); got != 123 {
		t.Errorf("SafeAtoi = %d, want 123", got)
	}
	if got := SafeAtoi("garbage"); got != 0 {
		t.Errorf("SafeAtoi = %d, want 0", got)
	}
}
