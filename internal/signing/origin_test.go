package signing

import "testing"

func TestOriginPolicy_Allowed(t *testing.T) {
	policy := NewOriginPolicy("shopify.com", "https://upsell.example.com", []string{"https://staging.example.net"})
	shop := "demo.myshopify.com"

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"empty origin", "", true},
		{"whitespace origin", "   ", true},
		{"platform pay subdomain", "https://pay.shopify.com", true},
		{"platform checkout subdomain", "https://checkout.shopify.com", true},
		{"platform apex", "https://shopify.com", true},
		{"storefront subdomain", "https://demo.myshopify.com", true},
		{"other storefront subdomain", "https://someone-else.myshopify.com", true},
		{"shop own domain", "https://" + shop, true},
		{"app origin", "https://upsell.example.com", true},
		{"configured extra", "https://staging.example.net", true},
		{"case insensitive", "https://PAY.Shopify.COM", true},
		{"scheme-less origin", "checkout.shopify.com", true},
		{"unrelated origin", "https://evil.example.org", false},
		{"suffix spoof", "https://notshopify.com", false},
		{"embedded platform domain", "https://shopify.com.evil.org", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.Allowed(tt.origin, shop); got != tt.want {
				t.Errorf("Allowed(%q, %q) = %v, want %v", tt.origin, shop, got, tt.want)
			}
		})
	}
}

func TestOriginPolicy_ShopOwnDomain(t *testing.T) {
	policy := NewOriginPolicy("shopify.com", "", nil)

	if !policy.Allowed("https://shop.example.biz", "shop.example.biz") {
		t.Error("a shop's own custom domain should be allowed")
	}
	if policy.Allowed("https://shop.example.biz", "other.example.biz") {
		t.Error("another shop's domain should not be allowed")
	}
}

func TestCanonicalOrigin(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"full origin", "https://pay.shopify.com", "https://pay.shopify.com", true},
		{"scheme defaulted", "pay.shopify.com", "https://pay.shopify.com", true},
		{"host lowercased", "https://PAY.SHOPIFY.COM", "https://pay.shopify.com", true},
		{"path stripped", "https://demo.myshopify.com/admin", "https://demo.myshopify.com", true},
		{"port kept", "http://127.0.0.1:8080", "http://127.0.0.1:8080", true},
		{"empty", "", "", false},
		{"whitespace", "  ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CanonicalOrigin(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("CanonicalOrigin(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("CanonicalOrigin(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
