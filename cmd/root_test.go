package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-listener/internal/conf"
)

func TestConfigShowAppliesFileAndFlags(t *testing.T) {
	viper.Reset()
	t.Cleanup(func() {
		viper.Reset()
		conf.ConfigFile = ""
	})

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("webserver:\n  listen: \":7000\"\nmqtt:\n  password: hunter2\n"), 0o644))

	settings := &conf.Settings{}
	root := RootCommand(settings)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", path, "--debug", "config", "show"})

	require.NoError(t, root.Execute())

	assert.Equal(t, ":7000", settings.WebServer.Listen)
	assert.True(t, settings.Debug)
	assert.Contains(t, out.String(), "7000")
	assert.NotContains(t, out.String(), "hunter2")
}
