package resolver_test

import (
	"context"
	"testing"

	"github.com/EricCrosson/nil/internal/resolver"
	"github.com/stretchr/testify/require"
)

func TestFakeResolverResolvesKnownInputs(t *testing.T) {
	r := &resolver.FakeResolver{
		Resolved: map[string]resolver.Input{"nixpkgs": {StorePath: "/nix/store/abc-nixpkgs"}},
	}
	resolved, missing, err := r.ResolveLockedInputs(context.Background(), "nix", []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, "/nix/store/abc-nixpkgs", resolved["nixpkgs"].StorePath)
	require.False(t, missing)
}

func TestFakeResolverReportsMissingInputs(t *testing.T) {
	r := &resolver.FakeResolver{Missing: true}
	resolved, missing, err := r.ResolveLockedInputs(context.Background(), "nix", []byte(`{}`))
	require.NoError(t, err)
	require.Empty(t, resolved)
	require.True(t, missing)
}

func TestFakeResolverPropagatesConfiguredError(t *testing.T) {
	sentinel := context.Canceled
	r := &resolver.FakeResolver{Err: sentinel}
	_, _, err := r.ResolveLockedInputs(context.Background(), "nix", nil)
	require.ErrorIs(t, err, sentinel)
}
