package offer

import "postpurchase/internal/catalog"

// Trace is the diagnostic side-channel for one match. It rides the
// response's debug field when requested and is logged on the way out;
// no resolution logic ever branches on it.
type Trace struct {
	Shop        string         `json:"shop,omitempty"`
	RawIDs      []string       `json:"rawIds,omitempty"`
	ProductGIDs []string       `json:"productGids,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	GuessedFrom string         `json:"guessedFrom,omitempty"`
	FunnelID    string         `json:"funnelId,omitempty"`
	OfferGID    string         `json:"offerGid,omitempty"`
	Session     string         `json:"session,omitempty"`
	StoreError  string         `json:"storeError,omitempty"`
	Meta        *catalog.Debug `json:"meta,omitempty"`
}

// Trace reasons.
const (
	ReasonTriggerMatch     = "trigger-match"
	ReasonNoFunnel         = "no-funnel"
	ReasonFallbackNoGids   = "fallback-no-gids"
	ReasonStoreError       = "store-error"
	ReasonNoOfflineSession = "no-offline-session"

	guessedLatestActive = "latest-active-funnel"
)
