// Package model defines domain types and the API error taxonomy.
package model

import "time"

// Funnel is a merchant-configured post-purchase upsell rule:
// when a buyer's order contains the trigger product, offer them the
// offer product at a percentage discount.
type Funnel struct {
	ID          string    `json:"id"`
	ShopDomain  string    `json:"shopDomain"`
	Name        string    `json:"name"`
	DiscountPct float64   `json:"discountPct"`
	Active      bool      `json:"active"`
	TriggerGID  string    `json:"triggerGid"`
	OfferGID    string    `json:"offerGid"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// OfflineCredential is a shop's stored offline API token, written by
// the install flow and read here to call the Admin API on the shop's
// behalf.
type OfflineCredential struct {
	ID          string
	Shop        string
	AccessToken string
	Scope       string
	Expires     *time.Time
}

// Offer is the enriched upsell offer returned to the checkout
// extension. Field names match what the extension renders.
type Offer struct {
	ProductGID   string         `json:"id"`
	FunnelID     string         `json:"funnelId"`
	Title        string         `json:"title"`
	Image        string         `json:"image,omitempty"`
	Images       []string       `json:"images"`
	Price        string         `json:"price,omitempty"`
	PriceAmount  string         `json:"priceAmount,omitempty"`
	CurrencyCode string         `json:"currencyCode,omitempty"`
	VariantID    string         `json:"variantId,omitempty"`
	Variants     []OfferVariant `json:"variants"`
	DiscountPct  float64        `json:"discountPct"`
}

// OfferVariant is one purchasable variant of the offer product.
type OfferVariant struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Price string `json:"price,omitempty"`
}

// PlaceholderImage is shown when the offer product has no images.
const PlaceholderImage = "https://cdn.shopify.com/static/images/examples/img-placeholder-1120x1120.png"
