// MCP transport handler using the official MCP Go SDK.
// Exposes offer matching and funnel listing as MCP tools so merchant
// tooling and agents can query funnels without the REST surface.
package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"postpurchase/internal/model"
	"postpurchase/internal/offer"
)

// === MCP Tool Input/Output Types ===

// MatchOffersInput is the input schema for match_offers tool.
type MatchOffersInput struct {
	Shop        string   `json:"shop" jsonschema:"shop domain,required"`
	ProductGIDs []string `json:"product_gids,omitempty" jsonschema:"product references from the purchase"`
}

// MatchOffersOutput mirrors the REST match response.
type MatchOffersOutput struct {
	Offers []model.Offer `json:"offers"`
	Debug  *offer.Trace  `json:"debug,omitempty"`
}

// ListFunnelsInput is the input schema for list_funnels tool.
type ListFunnelsInput struct {
	Shop string `json:"shop" jsonschema:"shop domain,required"`
	Sort string `json:"sort,omitempty" jsonschema:"sort key: name, discount, or created"`
}

// ListFunnelsOutput carries the shop's funnels.
type ListFunnelsOutput struct {
	Funnels []model.Funnel `json:"funnels"`
}

// NewMCPServer creates an MCP server with the upsell tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "postpurchase",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Post-purchase upsell service. " +
				"Use these tools to resolve upsell offers for a purchase and inspect a shop's funnels.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "match_offers",
		Description: "Resolve the upsell offers for a purchase containing the given product references.",
	}, h.mcpMatchOffers)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_funnels",
		Description: "List a shop's configured upsell funnels.",
	}, h.mcpListFunnels)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpMatchOffers(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input MatchOffersInput,
) (*mcp.CallToolResult, *MatchOffersOutput, error) {
	if input.Shop == "" {
		return nil, nil, fmt.Errorf("shop is required")
	}

	offers, trace := h.offers.Match(ctx, input.Shop, input.ProductGIDs)
	return nil, &MatchOffersOutput{Offers: offers, Debug: trace}, nil
}

func (h *Handler) mcpListFunnels(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ListFunnelsInput,
) (*mcp.CallToolResult, *ListFunnelsOutput, error) {
	if input.Shop == "" {
		return nil, nil, fmt.Errorf("shop is required")
	}

	funnels, err := h.store.ListFunnels(ctx, input.Shop, input.Sort)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, &ListFunnelsOutput{Funnels: funnels}, nil
}

// mcpError converts store errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	apiErr, ok := storeError(err, "funnel").(*model.APIError)
	if ok && apiErr.StatusCode < 500 {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
