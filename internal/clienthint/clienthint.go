// Package clienthint parses the Upsell-Client header sent by the
// checkout extension. The hint identifies which extension build is
// calling, so rollouts of new extension versions can be watched from
// request logs. It never gates a request: an old or absent hint still
// gets offers.
package clienthint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dunglas/httpsfv"
	"golang.org/x/mod/semver"
)

// Header is the hint header name.
// Format: extension="post-purchase-ui";v="1.4.0" (RFC 8941 Dictionary).
const Header = "Upsell-Client"

// Hint is a parsed client hint.
type Hint struct {
	Extension string
	Version   string
	// Outdated is set when Version is older than the configured
	// minimum extension version.
	Outdated bool
}

// Parse extracts the extension name and version from a hint header.
//
// Examples:
//   - extension="post-purchase-ui"            → {post-purchase-ui, ""}
//   - extension="post-purchase-ui";v="1.4.0"  → {post-purchase-ui, 1.4.0}
//
// Returns error if header is empty, malformed, or missing the
// extension key.
func Parse(header string) (*Hint, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, errors.New("empty client hint header")
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return nil, fmt.Errorf("invalid client hint header: %w", err)
	}

	member, ok := dict.Get("extension")
	if !ok {
		return nil, errors.New("extension key not found in client hint header")
	}

	item, ok := member.(httpsfv.Item)
	if !ok {
		return nil, errors.New("extension value must be an item")
	}

	name, ok := item.Value.(string)
	if !ok {
		return nil, errors.New("extension value must be a string")
	}

	hint := &Hint{Extension: name}
	if v, ok := item.Params.Get("v"); ok {
		if s, ok := v.(string); ok {
			hint.Version = s
		}
	}
	return hint, nil
}

// OlderThan reports whether the hint's version is semver-older than
// min. Unparseable or missing versions are never considered older;
// the hint is advisory and must not misfire on odd builds.
func (h *Hint) OlderThan(min string) bool {
	bv := normalizeVersion(h.Version)
	mv := normalizeVersion(min)
	if bv == "" || mv == "" {
		return false
	}
	return semver.Compare(bv, mv) < 0
}

// normalizeVersion adds the "v" prefix semver wants, returning "" for
// values that still aren't valid semver.
func normalizeVersion(v string) string {
	if v == "" {
		return ""
	}
	if v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

type contextKey string

const hintKey contextKey = "client_hint"

// Middleware parses the hint header when present, annotates the
// request context, and logs outdated extensions against minVersion.
// Malformed hints are logged and dropped; the request proceeds.
func Middleware(minVersion string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(Header)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			hint, err := Parse(header)
			if err != nil {
				logger.Warn("invalid client hint",
					slog.String("header", header),
					slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			if minVersion != "" && hint.OlderThan(minVersion) {
				hint.Outdated = true
				logger.Warn("outdated extension version",
					slog.String("extension", hint.Extension),
					slog.String("version", hint.Version),
					slog.String("min_version", minVersion))
			}

			ctx := context.WithValue(r.Context(), hintKey, hint)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext retrieves the parsed hint, or nil when none was sent.
func FromContext(ctx context.Context) *Hint {
	h, _ := ctx.Value(hintKey).(*Hint)
	return h
}
