package domain

import "testing"

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{name: "dollar prefix", in: "$12.99", want: 12.99},
		{name: "plain number", in: "24.99", want: 24.99},
		{name: "thousands separator", in: "$1,299.50", want: 1299.50},
		{name: "euro suffix", in: "11.95€", want: 11.95},
		{name: "garbage", in: "free", want: 0},
		{name: "empty", in: "", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParsePrice(tt.in); got != tt.want {
				t.Errorf("ParsePrice(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1.0392, 1.04},
		{19.0192, 19.02},
		{3.0384, 3.04},
		{0.125, 0.13},
		{12.0, 12.0},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatUSD(t *testing.T) {
	if got := FormatUSD(12.99); got != "$12.99" {
		t.Errorf("FormatUSD(12.99) = %q, want %q", got, "$12.99")
	}
	if got := FormatUSD(5); got != "$5.00" {
		t.Errorf("FormatUSD(5) = %q, want %q", got, "$5.00")
	}
}
