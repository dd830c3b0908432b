// Package application contains use-case orchestration services.
package application

import (
	"context"
	"log/slog"

	"readfocus/internal/domain/model"
	"readfocus/internal/domain/port/driven"
)

// CredentialResolver produces a usable session credential from one of
// three ordered, short-circuiting sources: a caller-supplied cookie
// string, the remote encrypted store, and a statically configured
// fallback. Each source is tried at most once per call; no retries.
type CredentialResolver struct {
	cloud    driven.CredentialSource // nil when not configured
	fallback string
}

// NewCredentialResolver creates a resolver. cloud may be nil when no
// remote store is configured; fallback may be empty.
func NewCredentialResolver(cloud driven.CredentialSource, fallback string) *CredentialResolver {
	return &CredentialResolver{cloud: cloud, fallback: fallback}
}

// Resolve returns a credential, or driven.ErrCredentialUnavailable when no
// source yields one. Remote-store failures are logged and skipped: the
// store is best-effort and never blocks the fallback chain.
func (r *CredentialResolver) Resolve(ctx context.Context, supplied string) (model.Credential, error) {
	if cred := model.ParseCredential(supplied); !cred.IsEmpty() {
		slog.Debug("credential resolved", "source", "supplied", "cookies", cred.Len())
		return cred, nil
	}

	if r.cloud != nil {
		cookie, err := r.cloud.Fetch(ctx)
		if err != nil {
			slog.Warn("remote credential store unavailable", "error", err)
		}
		if cred := model.ParseCredential(cookie); !cred.IsEmpty() {
			slog.Debug("credential resolved", "source", "cookiecloud", "cookies", cred.Len())
			return cred, nil
		}
	}

	if cred := model.ParseCredential(r.fallback); !cred.IsEmpty() {
		slog.Debug("credential resolved", "source", "fallback", "cookies", cred.Len())
		return cred, nil
	}

	return model.Credential{}, driven.ErrCredentialUnavailable
}
