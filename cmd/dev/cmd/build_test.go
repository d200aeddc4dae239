package cmd

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTarget(t *testing.T) {
	host := target{os: runtime.GOOS, arch: runtime.GOARCH}
	assert.True(t, host.native())
	nano, ok := boards["nanopi-neo"]
	require.True(t, ok)
	assert.Equal(t, "dist/glcd-linux-arm", nano.binary())
	if runtime.GOARCH != "arm" {
		assert.False(t, nano.native())
	}
}

func TestBuildCmd_UnknownBoard(t *testing.T) {
	cmd := BuildCmd()
	cmd.SetArgs([]string{"--board", "arduino"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	assert.ErrorContains(t, cmd.Execute(), `unknown board "arduino"`)
}

func TestIntegrationTestCmd_NeedsConfig(t *testing.T) {
	t.Setenv("GLCD_CONFIG", "")
	cmd := IntegrationTestCmd()
	cmd.SetArgs([]string{})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	assert.ErrorContains(t, cmd.Execute(), "need a panel config")
}
