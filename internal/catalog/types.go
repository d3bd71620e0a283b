package catalog

import "postpurchase/internal/model"

// ProductMeta is the display metadata for one product, keyed by its
// canonical gid in FetchMeta's result.
type ProductMeta struct {
	GID          string
	Title        string
	Image        string
	Images       []string
	Price        string // formatted, e.g. "19.90 USD"
	PriceAmount  string // raw decimal amount of the default variant
	CurrencyCode string
	VariantID    string // default (first) variant gid
	Variants     []model.OfferVariant
}

// Debug records what a fetch attempted and how it went. The match
// endpoint surfaces it under the response's debug field; nothing in
// the offer path branches on it.
type Debug struct {
	Kind          string   `json:"kind"` // "graphql" or "rest"
	Requested     []string `json:"requested,omitempty"`
	Received      []string `json:"received,omitempty"`
	Status        int      `json:"status,omitempty"`
	Error         string   `json:"error,omitempty"`
	ShopCurrency  string   `json:"shopCurrency,omitempty"`
	GraphQLStatus int      `json:"graphqlStatus,omitempty"` // set when the fallback ran
	GraphQLError  string   `json:"graphqlError,omitempty"`
}

// === GraphQL wire types ===

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data struct {
		Nodes []*gqlProduct `json:"nodes"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type gqlProduct struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	FeaturedImage *struct {
		URL string `json:"url"`
	} `json:"featuredImage"`
	Images struct {
		Nodes []struct {
			URL string `json:"url"`
		} `json:"nodes"`
	} `json:"images"`
	Variants struct {
		Nodes []gqlVariant `json:"nodes"`
	} `json:"variants"`
}

type gqlVariant struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price *struct {
		Amount       string `json:"amount"`
		CurrencyCode string `json:"currencyCode"`
	} `json:"price"`
}

// === REST wire types ===

type restProductList struct {
	Products []restProduct `json:"products"`
}

type restProduct struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Image *struct {
		Src string `json:"src"`
	} `json:"image"`
	Images []struct {
		Src string `json:"src"`
	} `json:"images"`
	Variants []struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
		Price string `json:"price"`
	} `json:"variants"`
}

type restShop struct {
	Shop struct {
		Currency string `json:"currency"`
	} `json:"shop"`
}
