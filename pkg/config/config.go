package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Bot struct {
		Trigger       string `yaml:"trigger"`
		ListenToBots  bool   `yaml:"listen_to_bots"`
		MaxConcurrent int    `yaml:"max_concurrent"`
	} `yaml:"bot"`
	Assets struct {
		CorpusPath string `yaml:"corpus_path"`
		ImagesDir  string `yaml:"images_dir"`
	} `yaml:"assets"`
	Cooldown struct {
		Seconds int `yaml:"seconds"`
	} `yaml:"cooldown"`
	Fetch struct {
		TimeoutSeconds    float64 `yaml:"timeout_seconds"`
		MaxBodyBytes      int64   `yaml:"max_body_bytes"`
		AllowPrivateHosts bool    `yaml:"allow_private_hosts"`
		CacheTTLMinutes   int     `yaml:"cache_ttl_minutes"`
		MaxSourcePixels   int     `yaml:"max_source_pixels"`
	} `yaml:"fetch"`
	Render struct {
		FontPath            string  `yaml:"font_path"`
		ValidateFontOnStart bool    `yaml:"validate_font_on_start"`
		Width               int     `yaml:"width"`
		FontSize            float64 `yaml:"font_size"`
		WrapWidth           int     `yaml:"wrap_width"`
		BaselineOffset      float64 `yaml:"baseline_offset"`
		OutlineWidth        float64 `yaml:"outline_width"`
		Uppercase           bool    `yaml:"uppercase"`
		MaxHeight           int     `yaml:"max_height"`
	} `yaml:"render"`
	Output struct {
		ArtifactDir        string `yaml:"artifact_dir"`
		Format             string `yaml:"format"`
		JPEGQuality        int    `yaml:"jpeg_quality"`
		DeliveryIntervalMS int    `yaml:"delivery_interval_ms"`
	} `yaml:"output"`
	Messages struct {
		Cooldown string `yaml:"cooldown"`
		Busy     string `yaml:"busy"`
		Error    string `yaml:"error"`
	} `yaml:"messages"`
}

// Defaults returns a Config populated with the values used when config.yml is absent.
func Defaults() *Config {
	config := &Config{}
	config.Bot.Trigger = "!meme"
	config.Bot.MaxConcurrent = 8
	config.Assets.CorpusPath = "text.txt"
	config.Assets.ImagesDir = "images"
	config.Cooldown.Seconds = 60
	config.Fetch.TimeoutSeconds = 2
	config.Fetch.MaxBodyBytes = 8 * 1024 * 1024
	config.Fetch.CacheTTLMinutes = 30
	config.Fetch.MaxSourcePixels = 40_000_000
	config.Render.ValidateFontOnStart = true
	config.Render.Width = 1024
	config.Render.FontSize = 96
	config.Render.WrapWidth = 22
	config.Render.BaselineOffset = 0.5
	config.Render.OutlineWidth = 6
	config.Render.MaxHeight = 4096
	config.Output.Format = "png"
	config.Output.JPEGQuality = 90
	config.Output.DeliveryIntervalMS = 250
	config.Messages.Cooldown = "$PING$ can generate another meme in $TIME$ seconds."
	config.Messages.Busy = "$PING$ your last meme is still cooking."
	config.Messages.Error = "Error generating meme! $OPERATOR$"
	return config
}

// LoadConfig reads path over the defaults. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := Defaults()

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return config, nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(file, config)
	if err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) CooldownWindow() time.Duration {
	return time.Duration(c.Cooldown.Seconds) * time.Second
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds * float64(time.Second))
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Fetch.CacheTTLMinutes) * time.Minute
}

func (c *Config) DeliveryInterval() time.Duration {
	return time.Duration(c.Output.DeliveryIntervalMS) * time.Millisecond
}
