package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// Provide a path that definitely doesn't exist
	config, err := LoadConfig("non_existent_config.yml")
	require.NoError(t, err)

	assert.Equal(t, "!meme", config.Bot.Trigger)
	assert.Equal(t, 60, config.Cooldown.Seconds)
	assert.Equal(t, 22, config.Render.WrapWidth)
	assert.Equal(t, 1024, config.Render.Width)
	assert.Equal(t, 96.0, config.Render.FontSize)
	assert.Equal(t, 0.5, config.Render.BaselineOffset)
	assert.Equal(t, 4096, config.Render.MaxHeight)
	assert.Equal(t, 40_000_000, config.Fetch.MaxSourcePixels)
	assert.Equal(t, "png", config.Output.Format)
	assert.Equal(t, 2*time.Second, config.FetchTimeout())
	assert.Equal(t, time.Minute, config.CooldownWindow())
	assert.Empty(t, config.Render.FontPath)
}

func TestLoadConfig_ValidFile(t *testing.T) {
	content := []byte(`
bot:
  trigger: "!caption"
  max_concurrent: 2
cooldown:
  seconds: 30
fetch:
  timeout_seconds: 1.5
render:
  font_path: /opt/fonts/impact.ttf
  wrap_width: 18
  baseline_offset: 0.75
output:
  format: jpeg
`)
	tmpfile, err := os.CreateTemp("", "config_test_*.yml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name()) // clean up

	if _, err := tmpfile.Write(content); err != nil {
		tmpfile.Close()
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(tmpfile.Name())
	require.NoError(t, err)

	assert.Equal(t, "!caption", config.Bot.Trigger)
	assert.Equal(t, 2, config.Bot.MaxConcurrent)
	assert.Equal(t, 30*time.Second, config.CooldownWindow())
	assert.Equal(t, 1500*time.Millisecond, config.FetchTimeout())
	assert.Equal(t, "/opt/fonts/impact.ttf", config.Render.FontPath)
	assert.Equal(t, 18, config.Render.WrapWidth)
	assert.Equal(t, 0.75, config.Render.BaselineOffset)
	assert.Equal(t, "jpeg", config.Output.Format)

	// Keys absent from the file keep their defaults
	assert.Equal(t, 1024, config.Render.Width)
	assert.Equal(t, "text.txt", config.Assets.CorpusPath)
	assert.Contains(t, config.Messages.Cooldown, "$TIME$")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	content := []byte(`
render:
  width: "not a number"
  broken_yaml: [ unclosed bracket
`)
	tmpfile, err := os.CreateTemp("", "config_invalid_*.yml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write(content); err != nil {
		tmpfile.Close()
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(tmpfile.Name())

	assert.Error(t, err)
	assert.Nil(t, config)
}
