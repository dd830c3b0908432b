package driven

import "context"

// CredentialSource defines the driven port for a remote credential store
// (CookieCloud). Fetch returns the serialized cookie string for the target
// service, or an empty string when the store has no entry for it. This path
// is best-effort: callers treat any error as "source unavailable" and fall
// through to the next credential source.
type CredentialSource interface {
	Fetch(ctx context.Context) (string, error)
}
