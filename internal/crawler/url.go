package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveURL joins a site-relative link onto base. An empty ref resolves to
// the site root. Fragments are dropped.
func ResolveURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if b.Path == "" {
		b.Path = "/"
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", ref, err)
	}
	u := b.ResolveReference(r)
	u.Fragment = ""

	// Lowercase scheme and host
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	return u.String(), nil
}
