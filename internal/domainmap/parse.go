package domainmap

import (
	"net/url"
	"strings"

	"fedcat/internal/config"
	"fedcat/internal/domain"
)

// ParseMapping parses a static "name=endpoint,name=endpoint" mapping.
// Empty segments are ignored; a segment without a name or endpoint, or a
// repeated name, is a configuration error.
func ParseMapping(mapping string) (map[string]domain.Endpoint, error) {
	out := make(map[string]domain.Endpoint)
	for _, part := range strings.Split(mapping, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, raw, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		raw = strings.TrimSpace(raw)
		if !ok || name == "" || raw == "" {
			return nil, domain.ErrConfiguration(config.KeyDomainMapping, "malformed pair %q", part)
		}
		if _, dup := out[name]; dup {
			return nil, domain.ErrConfiguration(config.KeyDomainMapping, "domain %q mapped more than once", name)
		}
		ep, err := ParseEndpoint(raw)
		if err != nil {
			return nil, domain.ErrConfiguration(config.KeyDomainMapping, "domain %q: %v", name, err)
		}
		out[name] = ep
	}
	return out, nil
}

// ParseEndpoint turns a raw endpoint into an Endpoint. URLs without a scheme
// default to https; user info is moved out of the URL into credentials.
func ParseEndpoint(raw string) (domain.Endpoint, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return domain.Endpoint{}, err
	}
	if u.Host == "" {
		return domain.Endpoint{}, domain.ErrValidation("endpoint %q has no host", raw)
	}

	var ep domain.Endpoint
	if u.User != nil {
		ep.Username = u.User.Username()
		ep.Password, _ = u.User.Password()
		u.User = nil
	}
	ep.URL = strings.TrimRight(u.String(), "/")
	return ep, nil
}
