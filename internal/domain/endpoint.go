package domain

import (
	"net/url"
	"sort"
)

// Endpoint is a connection target for one domain: a base URL plus the
// credentials used to reach it.
type Endpoint struct {
	URL      string
	Username string
	Password string
}

// String returns the endpoint URL. Credentials are never included.
func (e Endpoint) String() string {
	return e.URL
}

// Redacted returns the URL with any credentials replaced.
func (e Endpoint) Redacted() string {
	if e.Username == "" && e.Password == "" {
		return e.URL
	}
	u, err := url.Parse(e.URL)
	if err != nil {
		return e.URL
	}
	u.User = url.UserPassword(e.Username, "REDACTED")
	return u.String()
}

// DomainMap is an immutable snapshot of domain name to endpoint bindings.
// A refresh builds a new DomainMap; an existing one is never modified.
type DomainMap struct {
	entries map[string]Endpoint
}

// NewDomainMap copies entries into a new snapshot.
func NewDomainMap(entries map[string]Endpoint) *DomainMap {
	m := make(map[string]Endpoint, len(entries))
	for k, v := range entries {
		m[k] = v
	}
	return &DomainMap{entries: m}
}

// Lookup returns the endpoint bound to name.
func (m *DomainMap) Lookup(name string) (Endpoint, bool) {
	if m == nil {
		return Endpoint{}, false
	}
	ep, ok := m.entries[name]
	return ep, ok
}

// Names returns the domain names in sorted order.
func (m *DomainMap) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of bound domains.
func (m *DomainMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}
