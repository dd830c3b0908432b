package weread

import (
	"net/http"
	"strings"

	"readfocus/internal/domain/model"
)

// pairsFromSetCookie extracts name/value pairs from Set-Cookie response
// headers. Only the first segment of each header is a cookie pair; the
// remainder (Path, Expires, ...) is attribute metadata and is discarded.
func pairsFromSetCookie(headers []string) []model.CookiePair {
	var pairs []model.CookiePair
	for _, h := range headers {
		first, _, _ := strings.Cut(h, ";")
		name, value, _ := strings.Cut(strings.TrimSpace(first), "=")
		if name == "" {
			continue
		}
		pairs = append(pairs, model.CookiePair{Name: name, Value: value})
	}
	return pairs
}

// rotateCredential merges any session cookies issued by the response into
// the credential. New values override old for the same name; unrelated
// entries are preserved. The merge itself is pure (model.Credential.Merge);
// this is the only place the held credential is replaced.
func rotateCredential(cred model.Credential, resp *http.Response) model.Credential {
	updates := pairsFromSetCookie(resp.Header.Values("Set-Cookie"))
	if len(updates) == 0 {
		return cred
	}
	return cred.Merge(updates)
}
