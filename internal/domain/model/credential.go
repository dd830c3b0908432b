package model

import "strings"

// CookiePair is a single name/value cookie entry.
type CookiePair struct {
	Name  string
	Value string
}

// Credential is an ordered collection of session cookies serialized as a
// single "name=value; name=value" string. The value itself is immutable;
// the session client holds one mutable slot and replaces it via Merge as
// the upstream server issues new cookies.
type Credential struct {
	pairs []CookiePair
}

// ParseCredential parses a "name=value; name=value" cookie string.
// Malformed fragments without a name are dropped; order is preserved.
func ParseCredential(s string) Credential {
	var pairs []CookiePair
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		if name == "" {
			continue
		}
		pairs = append(pairs, CookiePair{Name: name, Value: value})
	}
	return Credential{pairs: pairs}
}

// IsEmpty returns true when the credential carries no cookies.
func (c Credential) IsEmpty() bool {
	return len(c.pairs) == 0
}

// Len returns the number of cookie pairs.
func (c Credential) Len() int {
	return len(c.pairs)
}

// Get returns the value for the named cookie and whether it is present.
func (c Credential) Get(name string) (string, bool) {
	for _, p := range c.pairs {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Merge returns a new Credential with updates applied: new values override
// existing entries with the same name in place; unknown names are appended
// in the order given. The receiver is not modified.
func (c Credential) Merge(updates []CookiePair) Credential {
	merged := make([]CookiePair, len(c.pairs))
	copy(merged, c.pairs)

	position := make(map[string]int, len(merged))
	for i, p := range merged {
		position[p.Name] = i
	}

	for _, u := range updates {
		if u.Name == "" {
			continue
		}
		if i, ok := position[u.Name]; ok {
			merged[i].Value = u.Value
			continue
		}
		position[u.Name] = len(merged)
		merged = append(merged, u)
	}

	return Credential{pairs: merged}
}

// String serializes the credential back to "name=value; name=value" form.
func (c Credential) String() string {
	parts := make([]string, 0, len(c.pairs))
	for _, p := range c.pairs {
		parts = append(parts, p.Name+"="+p.Value)
	}
	return strings.Join(parts, "; ")
}
