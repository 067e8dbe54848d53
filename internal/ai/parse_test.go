package ai

import (
	"testing"
	"time"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{
			name:   "bare object",
			raw:    `{"amount": 12.5}`,
			want:   `{"amount": 12.5}`,
			wantOK: true,
		},
		{
			name:   "json fence",
			raw:    "```json\n{\"amount\": 12.5}\n```",
			want:   `{"amount": 12.5}`,
			wantOK: true,
		},
		{
			name:   "plain fence",
			raw:    "```\n{\"a\": 1}\n```",
			want:   `{"a": 1}`,
			wantOK: true,
		},
		{
			name:   "prose around object",
			raw:    "Here is the result:\n{\"a\": 1}\nLet me know if you need more.",
			want:   `{"a": 1}`,
			wantOK: true,
		},
		{
			name:   "nested objects",
			raw:    `{"a": {"b": 2}} trailing`,
			want:   `{"a": {"b": 2}}`,
			wantOK: true,
		},
		{
			name:   "braces inside strings",
			raw:    `{"desc": "curly } brace", "n": 1}`,
			want:   `{"desc": "curly } brace", "n": 1}`,
			wantOK: true,
		},
		{
			name:   "escaped quote inside string",
			raw:    `{"desc": "say \"}\"", "n": 1}`,
			want:   `{"desc": "say \"}\"", "n": 1}`,
			wantOK: true,
		},
		{
			name:   "no object",
			raw:    "sorry, I cannot read this receipt",
			wantOK: false,
		},
		{
			name:   "unbalanced",
			raw:    `{"a": 1`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSONObject(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseInsights(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   int
		wantOK bool
	}{
		{name: "bare array", raw: `["a", "b", "c"]`, want: 3, wantOK: true},
		{name: "fenced array", raw: "```json\n[\"a\", \"b\"]\n```", want: 2, wantOK: true},
		{name: "prose around array", raw: "Sure! [\"a\"] Hope that helps.", want: 1, wantOK: true},
		{name: "empty array", raw: `[]`, wantOK: false},
		{name: "not json", raw: "no insights today", wantOK: false},
		{name: "wrong element type", raw: `[1, 2, 3]`, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseInsights(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestParseReceiptDate(t *testing.T) {
	fallback := time.Date(2025, 5, 19, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{name: "date only", in: "2025-02-14", want: time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)},
		{name: "rfc3339", in: "2025-02-14T10:30:00Z", want: time.Date(2025, 2, 14, 10, 30, 0, 0, time.UTC)},
		{name: "empty", in: "", want: fallback},
		{name: "garbage", in: "last tuesday", want: fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseReceiptDate(tt.in, fallback); !got.Equal(tt.want) {
				t.Errorf("parseReceiptDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFallbackReceipt(t *testing.T) {
	now := time.Now()
	got := fallbackReceipt(now, "Receipt scan failed")

	if got.Amount.Cents != 0 {
		t.Errorf("Amount = %d, want 0", got.Amount.Cents)
	}
	if got.MerchantName != "Unknown" {
		t.Errorf("MerchantName = %q, want Unknown", got.MerchantName)
	}
	if got.Category != "other-expense" {
		t.Errorf("Category = %q, want other-expense", got.Category)
	}
	if !got.Date.Equal(now) {
		t.Errorf("Date = %v, want %v", got.Date, now)
	}
}
