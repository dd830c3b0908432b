package driven

import "errors"

// ErrCredentialUnavailable indicates that no credential source yielded a
// usable session credential. Fatal: the caller must prompt for
// re-authentication, there is nothing to retry.
var ErrCredentialUnavailable = errors.New("no weread credential available")

// ErrSessionExpired indicates that the upstream service explicitly rejected
// the session credential (HTTP 401 or the vendor auth error code). Distinct
// from transient upstream failures: it must trigger a re-authentication
// flow rather than a blind retry.
var ErrSessionExpired = errors.New("weread session expired")
