//go:build integration

package backend

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/glcd/config"
	"github.com/mklimuk/glcd/ks0108"
)

// TestPanel drives a wired panel described by the file in GLCD_CONFIG.
func TestPanel(t *testing.T) {
	path := os.Getenv("GLCD_CONFIG")
	if path == "" {
		t.Skip("GLCD_CONFIG not set")
	}
	cfg, err := config.Load(path)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	b, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, b.Close()) }()

	d, err := ks0108.New(ctx, b.Pins, cfg.DriverOpts()...)
	require.NoError(t, err)

	st, err := d.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Resetting, "reset pulse finished")
	assert.False(t, st.DisplayOn, "display is off after reset")

	for _, on := range []bool{true, false, true} {
		require.NoError(t, d.SetDisplayOn(ctx, on))
		got, err := d.IsDisplayOn(ctx)
		require.NoError(t, err)
		assert.Equal(t, on, got)
	}

	require.NoError(t, d.ClearScreen(ctx))
	require.NoError(t, d.FillRow(ctx, 3, 56, 16, 0xFF))
	require.NoError(t, d.SetVerticalScroll(ctx, 0))
	st, err = d.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.DisplayOn)

	if cfg.Backend == config.BackendSim {
		assert.Equal(t, byte(0xFF), b.Panel.Byte(3, 64))
		assert.Empty(t, b.Panel.Violations())
	}
}
