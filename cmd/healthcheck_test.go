package cmd

import (
	"testing"

	"github.com/iksnae/leby/internal"
	"github.com/iksnae/leby/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthcheckCommand_Passes(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	dir := setupEnv(t, backend.URL)
	seedArchive(t, dir, internal.CreateTestSession("s-one"))

	out, err := execute(t, "healthcheck", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "Service reachable at "+backend.URL)
	assert.Contains(t, out, "Archive holds 1 conversation(s)")
	assert.Contains(t, out, "Cache ready")
	assert.Contains(t, out, "Health check passed")
	assert.Contains(t, out, "Database: ")
}

func TestHealthcheckCommand_ServiceDown(t *testing.T) {
	setupEnv(t, "")

	out, err := execute(t, "healthcheck")
	require.Error(t, err)
	assert.Contains(t, out, "Service unreachable")
	assert.Contains(t, out, "Health check failed (1 problem(s))")
	assert.NotContains(t, out, "Database: ", "details need --verbose")
}

func TestHealthcheckCommandExists(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "healthcheck" {
			found = true
			break
		}
	}
	if !found {
		t.Error("healthcheck command not found in root command")
	}
}
