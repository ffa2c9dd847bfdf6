package shelf

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/viper"

	"github.com/jaym/shelf/api"
	"github.com/jaym/shelf/cdn"
	"github.com/jaym/shelf/persist"
	processor "github.com/jaym/shelf/processors"
	"github.com/jaym/shelf/tmdb"
)

type ServerConfig struct {
	// Listen is a full address; when empty the server binds ":" + Port.
	Listen          string        `mapstructure:"listen"`
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (c ServerConfig) Addr() string {
	if c.Listen != "" {
		return c.Listen
	}
	return net.JoinHostPort("", c.Port)
}

type CDNConfig struct {
	Domain     string               `mapstructure:"domain"`
	Cloudflare cdn.CloudflareConfig `mapstructure:"cloudflare"`
}

type ProbeConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (c ProbeConfig) prober() processor.ProberConfig {
	return processor.ProberConfig{Timeout: c.Timeout}
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Server   ServerConfig       `mapstructure:"server"`
	Storage  persist.Config     `mapstructure:"storage"`
	CDN      CDNConfig          `mapstructure:"cdn"`
	TMDB     tmdb.Config        `mapstructure:"tmdb"`
	Manifest api.ManifestConfig `mapstructure:"manifest"`
	Probe    ProbeConfig        `mapstructure:"probe"`
	Log      LogConfig          `mapstructure:"log"`
}

func LoadConfig() (*Config, error) {
	var config Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return nil, err
	}
	if config.Server.Addr() == ":" {
		return nil, fmt.Errorf("server.listen or server.port must be set")
	}
	return &config, nil
}
