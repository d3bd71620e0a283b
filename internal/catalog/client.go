// Package catalog fetches product display metadata from the Admin API.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"postpurchase/internal/gid"
	"postpurchase/internal/model"
	"postpurchase/internal/transport"
)

// =============================================================================
// PRODUCT METADATA FETCHER
// =============================================================================
//
// Two mechanisms, tried in order:
//
//   1. GraphQL nodes(ids:) batch lookup - one round trip, exact ids.
//   2. REST product listing by numeric id - older API surface, still
//      answers for shops where the GraphQL call fails or returns
//      nothing. Variant prices here carry no currency, so a shop
//      currency sub-fetch runs alongside the listing.
//
// The fallback runs at most once, and only when the primary produced
// an EMPTY result. A partial GraphQL result is returned as-is.
//
// Metadata is cosmetic: every failure is absorbed into the Debug
// record and the caller renders whatever came back.
// =============================================================================

const (
	userAgent    = "postpurchase/1.0"
	defaultTitle = "Untitled product"
	fetchTimeout = 12 * time.Second
)

const nodesQuery = `query OfferProducts($ids: [ID!]!) {
  nodes(ids: $ids) {
    ... on Product {
      id
      title
      featuredImage { url }
      images(first: 6) { nodes { url } }
      variants(first: 10) {
        nodes {
          id
          title
          price { amount currencyCode }
        }
      }
    }
  }
}`

// Client is the Admin API HTTP client for product lookups.
type Client struct {
	httpClient *http.Client
	apiVersion string
	logger     *slog.Logger

	// BaseURL overrides the https://<shop> base when set.
	BaseURL string
}

// NewClient creates an Admin API client for the given API version.
func NewClient(apiVersion string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: transport.NewClient(fetchTimeout),
		apiVersion: apiVersion,
		logger:     logger,
	}
}

// FetchMeta resolves display metadata for the given canonical product
// gids, keyed by gid. Never returns an error: failures surface only in
// the Debug record and as an incomplete (possibly empty) map.
func (c *Client) FetchMeta(ctx context.Context, shop, accessToken string, gids []string) (map[string]ProductMeta, *Debug) {
	debug := &Debug{Kind: "graphql", Requested: gids}
	if len(gids) == 0 {
		return map[string]ProductMeta{}, debug
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	byID, status, err := c.fetchGraphQL(ctx, shop, accessToken, gids)
	debug.Status = status
	if err != nil {
		debug.Error = err.Error()
		c.logger.WarnContext(ctx, "graphql product fetch failed",
			slog.String("shop", shop),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}

	// Fallback only on an empty primary result
	if len(byID) == 0 {
		debug.GraphQLStatus = debug.Status
		debug.GraphQLError = debug.Error
		debug.Kind = "rest"
		debug.Status = 0
		debug.Error = ""

		byID, debug.Status, debug.ShopCurrency, err = c.fetchREST(ctx, shop, accessToken, gids)
		if err != nil {
			debug.Error = err.Error()
			c.logger.WarnContext(ctx, "rest product fetch failed",
				slog.String("shop", shop),
				slog.Int("status", debug.Status),
				slog.String("error", err.Error()),
			)
		}
	}

	if byID == nil {
		byID = map[string]ProductMeta{}
	}
	for _, g := range gids {
		if _, ok := byID[g]; ok {
			debug.Received = append(debug.Received, g)
		}
	}
	return byID, debug
}

// fetchGraphQL runs the nodes(ids:) batch lookup.
func (c *Client) fetchGraphQL(ctx context.Context, shop, accessToken string, gids []string) (map[string]ProductMeta, int, error) {
	ids := make([]any, len(gids))
	for i, g := range gids {
		ids[i] = g
	}

	body, err := json.Marshal(graphQLRequest{
		Query:     nodesQuery,
		Variables: map[string]any{"ids": ids},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("marshaling graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint(shop, "/admin/api/"+c.apiVersion+"/graphql.json"), bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	c.setAdminHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("graphql request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading graphql response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, fmt.Errorf("graphql status %d", resp.StatusCode)
	}

	var parsed graphQLResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("parsing graphql response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		msgs := make([]string, len(parsed.Errors))
		for i, e := range parsed.Errors {
			msgs[i] = e.Message
		}
		return nil, resp.StatusCode, fmt.Errorf("graphql errors: %s", strings.Join(msgs, "; "))
	}

	byID := make(map[string]ProductMeta)
	for _, node := range parsed.Data.Nodes {
		// nodes() returns null entries for unknown ids
		if node == nil || node.ID == "" {
			continue
		}
		byID[node.ID] = metaFromGraphQL(node)
	}
	return byID, resp.StatusCode, nil
}

// fetchREST runs the product listing fallback plus the shop currency
// sub-fetch. The two requests run concurrently; the currency result is
// cosmetic and its errors are ignored.
func (c *Client) fetchREST(ctx context.Context, shop, accessToken string, gids []string) (map[string]ProductMeta, int, string, error) {
	numeric := gid.NumericIDs(gids)
	if len(numeric) == 0 {
		return nil, 0, "", fmt.Errorf("no numeric ids to list")
	}

	currencyCh := make(chan string, 1)
	go func() {
		currencyCh <- c.fetchShopCurrency(ctx, shop, accessToken)
	}()

	query := url.Values{}
	query.Set("ids", strings.Join(numeric, ","))
	query.Set("fields", "id,title,image,images,variants")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint(shop, "/admin/api/"+c.apiVersion+"/products.json")+"?"+query.Encode(), nil)
	if err != nil {
		return nil, 0, <-currencyCh, err
	}
	c.setAdminHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, <-currencyCh, fmt.Errorf("product listing request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, <-currencyCh, fmt.Errorf("reading product listing: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, <-currencyCh, fmt.Errorf("product listing status %d", resp.StatusCode)
	}

	var parsed restProductList
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, resp.StatusCode, <-currencyCh, fmt.Errorf("parsing product listing: %w", err)
	}

	currency := <-currencyCh

	byID := make(map[string]ProductMeta)
	for _, p := range parsed.Products {
		meta := metaFromREST(p, currency)
		byID[meta.GID] = meta
	}
	return byID, resp.StatusCode, currency, nil
}

// fetchShopCurrency returns the shop's currency code, or "".
func (c *Client) fetchShopCurrency(ctx context.Context, shop, accessToken string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint(shop, "/admin/api/"+c.apiVersion+"/shop.json")+"?fields=currency", nil)
	if err != nil {
		return ""
	}
	c.setAdminHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ""
	}

	var parsed restShop
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ""
	}
	return parsed.Shop.Currency
}

func metaFromGraphQL(node *gqlProduct) ProductMeta {
	meta := ProductMeta{
		GID:   node.ID,
		Title: node.Title,
	}
	if meta.Title == "" {
		meta.Title = defaultTitle
	}
	if node.FeaturedImage != nil {
		meta.Image = node.FeaturedImage.URL
	}
	for _, img := range node.Images.Nodes {
		if img.URL != "" {
			meta.Images = append(meta.Images, img.URL)
		}
	}
	if meta.Image == "" && len(meta.Images) > 0 {
		meta.Image = meta.Images[0]
	}

	for _, v := range node.Variants.Nodes {
		variant := model.OfferVariant{ID: v.ID, Title: v.Title}
		if v.Price != nil {
			if p, ok := model.FormatPrice(v.Price.Amount, v.Price.CurrencyCode); ok {
				variant.Price = p
			}
		}
		meta.Variants = append(meta.Variants, variant)
	}
	if len(meta.Variants) > 0 {
		meta.VariantID = meta.Variants[0].ID
		meta.Price = meta.Variants[0].Price
		if p := node.Variants.Nodes[0].Price; p != nil {
			meta.PriceAmount = strings.TrimSpace(p.Amount)
			meta.CurrencyCode = strings.ToUpper(strings.TrimSpace(p.CurrencyCode))
		}
	}
	return meta
}

func metaFromREST(p restProduct, currency string) ProductMeta {
	meta := ProductMeta{
		GID:   gid.ProductPrefix + strconv.FormatInt(p.ID, 10),
		Title: p.Title,
	}
	if meta.Title == "" {
		meta.Title = defaultTitle
	}
	if p.Image != nil {
		meta.Image = p.Image.Src
	}
	for _, img := range p.Images {
		if img.Src != "" {
			meta.Images = append(meta.Images, img.Src)
		}
	}
	if meta.Image == "" && len(meta.Images) > 0 {
		meta.Image = meta.Images[0]
	}

	for _, v := range p.Variants {
		variant := model.OfferVariant{
			ID:    "gid://shopify/ProductVariant/" + strconv.FormatInt(v.ID, 10),
			Title: v.Title,
		}
		if price, ok := model.FormatPrice(v.Price, currency); ok {
			variant.Price = price
		}
		meta.Variants = append(meta.Variants, variant)
	}
	if len(meta.Variants) > 0 {
		meta.VariantID = meta.Variants[0].ID
		meta.Price = meta.Variants[0].Price
		meta.PriceAmount = strings.TrimSpace(p.Variants[0].Price)
		meta.CurrencyCode = strings.ToUpper(strings.TrimSpace(currency))
	}
	return meta
}

func (c *Client) endpoint(shop, path string) string {
	if c.BaseURL != "" {
		return c.BaseURL + path
	}
	return "https://" + shop + path
}

func (c *Client) setAdminHeaders(req *http.Request, accessToken string) {
	req.Header.Set("X-Shopify-Access-Token", accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
}
