// Package signing obtains signed change-sets from the platform's
// checkout edge on behalf of the post-purchase extension.
package signing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"postpurchase/internal/gid"
	"postpurchase/internal/transport"
)

// =============================================================================
// CHANGE-SET SIGNING
// =============================================================================
//
// The calculate endpoint that signs post-purchase change-sets is not a
// stable, documented surface: its origin and path differ across edge
// deployments. Rather than guess once, the signer walks an ordered
// probe list of (origin × path shape) candidates:
//
//   origins: pay.<platform>, checkout.<platform>, the caller's own
//            origin, the shop's domain
//   paths:   the modern calculate endpoint, its .json legacy twin,
//            and both again with the reference in the path
//
// A 404 means "not this deployment, keep walking". Any other non-2xx
// is a real answer from the right endpoint and terminates the walk,
// classified for the extension. A network-level failure (timeout, DNS,
// reset) is also terminal: the edge is either down or unreachable from
// here, and walking on would stack attempt timeouts while hiding the
// cause. The failure carries a redacted cause name, never the raw
// error text. Every URL attempted is recorded for diagnostics.
// =============================================================================

const (
	attemptTimeout = 12 * time.Second
	userAgent      = "postpurchase/1.0"

	referenceHeader = "Shopify-Checkout-Reference-Id"
)

// Failure reasons returned to the extension.
const (
	ReasonOriginForbidden   = "origin_forbidden"
	ReasonTokenExpired      = "buyer_token_expired"
	ReasonNetworkError      = "network_error"
	ReasonUnauthorized      = "unauthorized_buyer_token"
	ReasonForbidden         = "forbidden"
	ReasonPasswordPage      = "password_page"
	ReasonUnprocessable     = "unprocessable"
	ReasonNoChangesetToken  = "no_changeset_token"
	ReasonUpstreamError     = "upstream_error"
	ReasonUpstreamExhausted = "upstream_exhausted"
)

// Request is one signing request, already authenticated at the HTTP
// layer (bearer token extracted, body validated).
type Request struct {
	Shop         string
	ReferenceID  string
	Changes      []Change
	CallerOrigin string // body checkoutOrigin, falling back to the Origin header
	BuyerToken   string
}

// Change is one checkout mutation from the extension. The variant may
// arrive as a number, a numeric string, or a full variant gid, under
// either a snake_case or camelCase key.
type Change struct {
	Type      string
	VariantID int64
	Quantity  int
}

func (c *Change) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type         string          `json:"type"`
		VariantID    json.RawMessage `json:"variant_id"`
		VariantIDAlt json.RawMessage `json:"variantId"`
		Quantity     json.RawMessage `json:"quantity"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	c.Type = raw.Type
	if c.Type == "" {
		c.Type = "add_variant"
	}

	v := raw.VariantID
	if len(v) == 0 {
		v = raw.VariantIDAlt
	}
	id, ok := numericValue(v)
	if !ok {
		return fmt.Errorf("change has no usable variant id")
	}
	c.VariantID = id

	c.Quantity = 1
	if q, ok := numericValue(raw.Quantity); ok && q > 1 {
		c.Quantity = int(q)
	}
	return nil
}

// numericValue extracts an integer from a JSON number or a string with
// a trailing digit run (covers bare ids and variant gids).
func numericValue(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int64(n), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return gid.TrailingNumericID(s)
	}
	return 0, false
}

// Result is a successful signing.
type Result struct {
	Changeset string
	Tried     []string
}

// Failure is a classified signing failure. Status is the HTTP status
// the API surfaces: the upstream's own status when it gave one,
// otherwise a generic gateway status.
type Failure struct {
	Reason string
	Status int
	Data   json.RawMessage // upstream response body, when parseable JSON
	Tried  []string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("signing failed: %s (status %d)", f.Reason, f.Status)
}

// wireChange is the calculate endpoint's change encoding.
type wireChange struct {
	Type      string `json:"type"`
	VariantID int64  `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// candidate is one probe target.
type candidate struct {
	url       string
	refInPath bool
}

// Signer walks the probe list and classifies the outcome.
type Signer struct {
	httpClient     *http.Client
	policy         *OriginPolicy
	platformDomain string
	logger         *slog.Logger

	// BaseURL overrides every candidate's origin when set.
	BaseURL string
}

func New(policy *OriginPolicy, platformDomain string, logger *slog.Logger) *Signer {
	return &Signer{
		httpClient:     transport.NewClient(attemptTimeout),
		policy:         policy,
		platformDomain: platformDomain,
		logger:         logger,
	}
}

// Sign obtains a signed change-set token for the request.
// The origin allow-list is enforced before any network I/O, as is the
// buyer token's expiry when the token is a readable JWT.
func (s *Signer) Sign(ctx context.Context, req *Request) (*Result, *Failure) {
	if !s.policy.Allowed(req.CallerOrigin, req.Shop) {
		return nil, &Failure{Reason: ReasonOriginForbidden, Status: http.StatusForbidden}
	}
	if tokenExpired(req.BuyerToken) {
		return nil, &Failure{Reason: ReasonTokenExpired, Status: http.StatusUnauthorized}
	}

	var tried []string
	for _, cand := range s.candidates(req) {
		tried = append(tried, cand.url)

		status, body, err := s.attempt(ctx, req, cand)
		if err != nil {
			cause := networkCause(err)
			s.logger.WarnContext(ctx, "signing attempt failed",
				slog.String("url", cand.url),
				slog.String("cause", cause),
				slog.String("error", err.Error()),
			)
			return nil, failure(ReasonNetworkError, http.StatusBadGateway,
				[]byte(`{"cause":"`+cause+`"}`), tried)
		}

		if status == http.StatusNotFound {
			continue
		}

		if status >= 200 && status < 300 {
			if token := extractToken(body); token != "" {
				s.logger.InfoContext(ctx, "change-set signed",
					slog.String("shop", req.Shop),
					slog.String("url", cand.url),
					slog.Int("attempts", len(tried)),
				)
				return &Result{Changeset: token, Tried: tried}, nil
			}
			return nil, failure(ReasonNoChangesetToken, http.StatusBadGateway, body, tried)
		}

		// Non-404 error: the right endpoint answered and said no.
		return nil, classify(status, body, tried)
	}

	return nil, failure(ReasonUpstreamExhausted, http.StatusBadGateway, nil, tried)
}

// candidates builds the ordered (origin × path) probe list.
func (s *Signer) candidates(req *Request) []candidate {
	origins := make([]string, 0, 4)
	seen := make(map[string]struct{})
	add := func(raw string) {
		o, ok := CanonicalOrigin(raw)
		if !ok {
			return
		}
		if _, dup := seen[o]; dup {
			return
		}
		seen[o] = struct{}{}
		origins = append(origins, o)
	}

	// Extensions sometimes report the CDN host their assets were
	// served from rather than the checkout page origin. Probing a CDN
	// is useless, so those collapse onto the canonical checkout host.
	caller := req.CallerOrigin
	if host, ok := originHost(caller); ok && cdnHost(host) {
		caller = "https://checkout." + s.platformDomain
	}

	add("https://pay." + s.platformDomain)
	add("https://checkout." + s.platformDomain)
	add(caller)
	add("https://" + req.Shop)

	paths := []candidate{
		{url: "/checkouts/unstable/changesets/calculate", refInPath: false},
		{url: "/checkouts/unstable/changesets/calculate.json", refInPath: false},
		{url: "/checkouts/" + req.ReferenceID + "/changesets/calculate", refInPath: true},
		{url: "/checkouts/" + req.ReferenceID + "/changesets/calculate.json", refInPath: true},
	}

	out := make([]candidate, 0, len(origins)*len(paths))
	for _, origin := range origins {
		base := origin
		if s.BaseURL != "" {
			base = s.BaseURL
		}
		for _, p := range paths {
			out = append(out, candidate{url: base + p.url, refInPath: p.refInPath})
		}
		if s.BaseURL != "" {
			// All origins collapse onto the override; one pass suffices.
			break
		}
	}
	return out
}

// attempt POSTs one candidate. Returns the status and body, or an
// error for transport-level failures.
func (s *Signer) attempt(ctx context.Context, req *Request, cand candidate) (int, []byte, error) {
	wire := make([]wireChange, len(req.Changes))
	for i, ch := range req.Changes {
		wire[i] = wireChange{Type: ch.Type, VariantID: ch.VariantID, Quantity: ch.Quantity}
	}

	payload := map[string]any{"changes": wire}
	if !cand.refInPath {
		payload["referenceId"] = req.ReferenceID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshaling changeset request: %w", err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, cand.url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.BuyerToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set(referenceHeader, req.ReferenceID)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	// Redirects are not followed; a password-protected shop answers
	// with one. Fold the Location into the body for classification.
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Header.Get("Location")
		if strings.Contains(loc, "password") {
			return resp.StatusCode, []byte(`{"redirect":"password"}`), nil
		}
		return resp.StatusCode, nil, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading changeset response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

// classify maps a terminal upstream status to a Failure.
func classify(status int, body []byte, tried []string) *Failure {
	switch {
	case status == http.StatusUnauthorized:
		return failure(ReasonUnauthorized, status, body, tried)
	case status == http.StatusForbidden:
		return failure(ReasonForbidden, status, body, tried)
	case status == http.StatusUnprocessableEntity:
		return failure(ReasonUnprocessable, status, body, tried)
	case status >= 300 && status < 400:
		if bytes.Contains(body, []byte("password")) {
			return failure(ReasonPasswordPage, http.StatusForbidden, body, tried)
		}
		return failure(ReasonUpstreamError, http.StatusBadGateway, body, tried)
	case status >= 400 && status < 600:
		return failure(ReasonUpstreamError, status, body, tried)
	default:
		return failure(ReasonUpstreamError, http.StatusBadGateway, body, tried)
	}
}

func failure(reason string, status int, body []byte, tried []string) *Failure {
	f := &Failure{Reason: reason, Status: status, Tried: tried}
	if json.Valid(body) {
		f.Data = json.RawMessage(body)
	}
	return f
}

// extractToken pulls the signed token from a 2xx calculate response.
// Deployments disagree on the field name.
func extractToken(body []byte) string {
	var parsed struct {
		Token     string `json:"token"`
		Changeset string `json:"changeset"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if parsed.Token != "" {
		return parsed.Token
	}
	return parsed.Changeset
}

// networkCause names a transport-level failure for the response body.
// The raw error text can embed hosts and resolver details; only the
// classification leaves the service.
func networkCause(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns_failure"
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "timeout"
	}
	return "connection_failure"
}

// tokenExpired reports whether the buyer token is a JWT whose exp has
// passed. Opaque tokens pass through; the edge is the authority on
// signature validity either way.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
