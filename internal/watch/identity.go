package watch

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// DeriveIdentifier builds a stable dedup partition key for an entity that has
// none configured. The key is a name-based UUID over the template's own
// identifying parts (host, path, and query parameters in canonical order),
// never over slot content, so the same template always maps to the same
// identifier across restarts. The ephemeral start_date window parameter is
// excluded so dated variants of one template share an identifier.
func DeriveIdentifier(template string) string {
	canonical, err := canonicalTemplate(template)
	if err != nil {
		canonical = strings.TrimSpace(template)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(canonical)).String()
}

// canonicalTemplate standardizes a template URL so equivalent spellings
// collapse to one identifier. It lowercases the scheme and host, strips
// default ports and fragments, drops start_date, and sorts the remaining
// query parameters.
func canonicalTemplate(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""

	q := u.Query()
	q.Del(startDateParam)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
