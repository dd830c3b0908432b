package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readfocus/internal/application"
	"readfocus/internal/domain/port/driven"
)

func TestResolver_SuppliedWinsOverEverything(t *testing.T) {
	cloud := &mockCredentialSource{cookie: "wr_vid=cloud"}
	resolver := application.NewCredentialResolver(cloud, "wr_vid=fallback")

	cred, err := resolver.Resolve(context.Background(), "wr_vid=supplied")
	require.NoError(t, err)
	assert.Equal(t, "wr_vid=supplied", cred.String())
}

func TestResolver_CloudWinsOverFallback(t *testing.T) {
	cloud := &mockCredentialSource{cookie: "wr_vid=cloud"}
	resolver := application.NewCredentialResolver(cloud, "wr_vid=fallback")

	cred, err := resolver.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "wr_vid=cloud", cred.String())
}

func TestResolver_CloudFailureFallsThrough(t *testing.T) {
	cloud := &mockCredentialSource{err: errors.New("store unreachable")}
	resolver := application.NewCredentialResolver(cloud, "wr_vid=fallback")

	cred, err := resolver.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "wr_vid=fallback", cred.String())
}

func TestResolver_CloudEmptyFallsThrough(t *testing.T) {
	cloud := &mockCredentialSource{cookie: ""}
	resolver := application.NewCredentialResolver(cloud, "wr_vid=fallback")

	cred, err := resolver.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "wr_vid=fallback", cred.String())
}

func TestResolver_NilCloud(t *testing.T) {
	resolver := application.NewCredentialResolver(nil, "wr_vid=fallback")

	cred, err := resolver.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "wr_vid=fallback", cred.String())
}

func TestResolver_NothingConfigured(t *testing.T) {
	resolver := application.NewCredentialResolver(nil, "")

	_, err := resolver.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, driven.ErrCredentialUnavailable)
}
