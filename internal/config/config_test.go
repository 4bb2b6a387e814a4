package config_test

import (
	"testing"

	"github.com/EricCrosson/nil/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := config.Default("/w")
	require.Equal(t, "/w", c.RootPath)
	require.Equal(t, "nix", c.NixBinary)
}

func TestUpdateValidatesAndReportsDiagnosticsAffecting(t *testing.T) {
	store := config.NewStore(config.Default("/w"))

	errs, affecting := store.Update(map[string]interface{}{
		"nixBinary":                "/usr/bin/nix",
		"diagnosticsExcludedFiles": []string{"file:///w/generated.nix"},
	})
	require.Empty(t, errs)
	require.True(t, affecting)
	require.Equal(t, "/usr/bin/nix", store.Current().NixBinary)
	require.True(t, store.Current().ExcludesDiagnostics("file:///w/generated.nix"))
}

func TestUpdateIdempotentWhenUnderlyingValueUnchanged(t *testing.T) {
	store := config.NewStore(config.Default("/w"))
	raw := map[string]interface{}{"nixBinary": "nix", "diagnosticsExcludedFiles": []string{"file:///a"}}

	_, affectingFirst := store.Update(raw)
	require.True(t, affectingFirst)
	first := store.Current()

	_, affectingSecond := store.Update(raw)
	require.False(t, affectingSecond, "identical configuration must not be reported as diagnostics-affecting twice")
	require.Equal(t, first.NixBinary, store.Current().NixBinary)
	require.Equal(t, first.DiagnosticsExcluded, store.Current().DiagnosticsExcluded)
}

func TestUpdateRejectsEmptyNixBinary(t *testing.T) {
	store := config.NewStore(config.Default("/w"))
	errs, _ := store.Update(map[string]interface{}{"nixBinary": ""})
	require.NotEmpty(t, errs)
	require.Equal(t, "nix", store.Current().NixBinary, "invalid value must not replace the last-known-good one")
}

func TestUpdateRejectsMalformedURI(t *testing.T) {
	store := config.NewStore(config.Default("/w"))
	errs, _ := store.Update(map[string]interface{}{"diagnosticsExcludedFiles": []string{"file://%zz"}})
	require.NotEmpty(t, errs)
}
