package gid

import (
	"reflect"
	"testing"
)

func TestToProductGID(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  string
		wantOK bool
	}{
		{
			name:   "already canonical",
			raw:    "gid://shopify/Product/123",
			want:   "gid://shopify/Product/123",
			wantOK: true,
		},
		{
			name:   "bare numeric id",
			raw:    "123",
			want:   "gid://shopify/Product/123",
			wantOK: true,
		},
		{
			name:   "variant gid collapses to product gid",
			raw:    "gid://shopify/ProductVariant/456",
			want:   "gid://shopify/Product/456",
			wantOK: true,
		},
		{
			name:   "decorated id",
			raw:    "product-789",
			want:   "gid://shopify/Product/789",
			wantOK: true,
		},
		{
			name:   "trailing digit run wins",
			raw:    "sku12-variant34",
			want:   "gid://shopify/Product/34",
			wantOK: true,
		},
		{
			name:   "surrounding whitespace",
			raw:    "  42  ",
			want:   "gid://shopify/Product/42",
			wantOK: true,
		},
		{
			name:   "no digits",
			raw:    "abc",
			wantOK: false,
		},
		{
			name:   "empty",
			raw:    "",
			wantOK: false,
		},
		{
			name:   "whitespace only",
			raw:    "   ",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToProductGID(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ToProductGID(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ToProductGID(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

// Normalizing an already-normalized value must be a no-op.
func TestToProductGID_Idempotent(t *testing.T) {
	inputs := []string{"gid://shopify/Product/1", "55", "gid://shopify/ProductVariant/9"}
	for _, in := range inputs {
		first, ok := ToProductGID(in)
		if !ok {
			t.Fatalf("ToProductGID(%q) unexpectedly failed", in)
		}
		second, ok := ToProductGID(first)
		if !ok || second != first {
			t.Errorf("ToProductGID(%q) = %q, want %q", first, second, first)
		}
	}
}

func TestNormalizeSet(t *testing.T) {
	tests := []struct {
		name string
		raw  []string
		want []string
	}{
		{
			name: "dedupes across input shapes",
			raw:  []string{"gid://shopify/Product/1", "1", "2"},
			want: []string{"gid://shopify/Product/1", "gid://shopify/Product/2"},
		},
		{
			name: "preserves first-occurrence order",
			raw:  []string{"3", "1", "2", "1"},
			want: []string{"gid://shopify/Product/3", "gid://shopify/Product/1", "gid://shopify/Product/2"},
		},
		{
			name: "drops unusable inputs",
			raw:  []string{"abc", "", "7"},
			want: []string{"gid://shopify/Product/7"},
		},
		{
			name: "empty input",
			raw:  nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeSet(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeSet(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNumericIDs(t *testing.T) {
	got := NumericIDs([]string{"gid://shopify/Product/11", "22", "none"})
	want := []string{"11", "22"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NumericIDs() = %v, want %v", got, want)
	}
}

func TestTrailingNumericID(t *testing.T) {
	tests := []struct {
		raw    string
		want   int64
		wantOK bool
	}{
		{"gid://shopify/ProductVariant/555", 555, true},
		{"555", 555, true},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := TrailingNumericID(tt.raw)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("TrailingNumericID(%q) = (%d, %v), want (%d, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}
