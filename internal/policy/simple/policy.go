// Package simple contains the link scope policy used by the crawl engine.
package simple

import (
	"fmt"
	"net/url"
	"strings"
)

// Policy allows only links on the same scheme and host as the site root.
type Policy struct {
	scheme string
	host   string
}

// New creates a Policy scoped to baseURL.
func New(baseURL string) (*Policy, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", baseURL)
	}
	return &Policy{scheme: strings.ToLower(u.Scheme), host: strings.ToLower(u.Host)}, nil
}

// AllowFetch reports whether rawURL stays on the crawled site.
func (p *Policy) AllowFetch(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.ToLower(u.Scheme) == p.scheme && strings.ToLower(u.Host) == p.host
}
