package signing

import (
	"net/url"
	"strings"
)

// OriginPolicy decides which caller origins may request change-set
// signing. Allowed: any subdomain of the platform domain, any platform
// storefront subdomain, the requesting shop's own domain, the app's
// own origin, and explicitly configured extras.
type OriginPolicy struct {
	platformDomain string
	appHost        string
	extraHosts     map[string]struct{}
}

// storefrontDomain hosts the shops themselves (<shop>.myshopify.com).
const storefrontDomain = "myshopify.com"

func NewOriginPolicy(platformDomain, appURL string, extra []string) *OriginPolicy {
	p := &OriginPolicy{
		platformDomain: strings.ToLower(platformDomain),
		extraHosts:     make(map[string]struct{}, len(extra)),
	}
	if h, ok := originHost(appURL); ok {
		p.appHost = h
	}
	for _, e := range extra {
		if h, ok := originHost(e); ok {
			p.extraHosts[h] = struct{}{}
		}
	}
	return p
}

// Allowed reports whether origin may sign change-sets for shop.
// An empty origin is allowed; the signer substitutes the platform's
// default checkout origin for it.
func (p *OriginPolicy) Allowed(origin, shop string) bool {
	if strings.TrimSpace(origin) == "" {
		return true
	}
	host, ok := originHost(origin)
	if !ok {
		return false
	}

	if host == p.platformDomain || strings.HasSuffix(host, "."+p.platformDomain) {
		return true
	}
	if host == storefrontDomain || strings.HasSuffix(host, "."+storefrontDomain) {
		return true
	}
	if shop != "" && host == strings.ToLower(shop) {
		return true
	}
	if p.appHost != "" && host == p.appHost {
		return true
	}
	_, ok = p.extraHosts[host]
	return ok
}

// CanonicalOrigin reduces raw to scheme://host, defaulting the scheme
// to https. Returns false when no host can be extracted.
func CanonicalOrigin(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + strings.ToLower(u.Host), true
}

// cdnHost reports whether host looks like a content-delivery origin.
func cdnHost(host string) bool {
	return strings.HasPrefix(host, "cdn.") || strings.Contains(host, ".cdn.")
}

// originHost extracts the lowercased host (with port, if any).
func originHost(raw string) (string, bool) {
	o, ok := CanonicalOrigin(raw)
	if !ok {
		return "", false
	}
	u, err := url.Parse(o)
	if err != nil {
		return "", false
	}
	return u.Host, true
}
