// Package config loads the settings of the long-running commands (serve and
// export) from .pgplanviz.yaml, PGPLANVIZ_* environment variables and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jacobarthurs/pgplanviz/internal/advisor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	ConfigFileName = ".pgplanviz"
	ConfigFileType = "yaml"
	EnvPrefix      = "PGPLANVIZ"
)

type Config struct {
	Listen      string               `mapstructure:"listen"`
	CORSOrigins []string             `mapstructure:"cors_origins"`
	Advisor     string               `mapstructure:"advisor"`
	OpenAI      advisor.OpenAIConfig `mapstructure:"openai"`
	Log         LogConfig            `mapstructure:"log"`
	Timeouts    Timeouts             `mapstructure:"timeouts"`
	Neo4j       Neo4jConfig          `mapstructure:"neo4j"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Timeouts struct {
	Connect time.Duration `mapstructure:"connect"`
	Explain time.Duration `mapstructure:"explain"`
	Advisor time.Duration `mapstructure:"advisor"`
}

type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

func DefaultConfig() *Config {
	return &Config{
		Listen:      ":8001",
		CORSOrigins: []string{"*"},
		Advisor:     "local",
		OpenAI:      advisor.OpenAIConfig{Model: advisor.DefaultModel},
		Log:         LogConfig{Level: "info", Format: "logfmt"},
		Timeouts: Timeouts{
			Connect: 10 * time.Second,
			Explain: 60 * time.Second,
			Advisor: 90 * time.Second,
		},
		Neo4j: Neo4jConfig{
			URI:  "bolt://localhost:7687",
			User: "neo4j",
		},
	}
}

// Load reads the config file from the current directory or $HOME, applying
// environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	return load(viper.New(), ".", "$HOME")
}

func load(v *viper.Viper, paths ...string) (*Config, error) {
	v.SetConfigName(ConfigFileName)
	v.SetConfigType(ConfigFileType)
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("listen", d.Listen)
	v.SetDefault("cors_origins", d.CORSOrigins)
	v.SetDefault("advisor", d.Advisor)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", d.OpenAI.Model)
	v.SetDefault("openai.base_url", "")
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("timeouts.connect", d.Timeouts.Connect)
	v.SetDefault("timeouts.explain", d.Timeouts.Explain)
	v.SetDefault("timeouts.advisor", d.Timeouts.Advisor)
	v.SetDefault("neo4j.uri", d.Neo4j.URI)
	v.SetDefault("neo4j.user", d.Neo4j.User)
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	// env values arrive comma separated, possibly with spaces
	cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))
	return &cfg, nil
}

// LoadAndMerge loads the configuration and applies flags that were set.
// Priority: flags > environment > config file > defaults.
func LoadAndMerge(cmd *cobra.Command) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	Merge(cfg, cmd)
	return cfg, nil
}

func Merge(cfg *Config, cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen, _ = flags.GetString("listen")
	}
	if flags.Changed("advisor") {
		cfg.Advisor, _ = flags.GetString("advisor")
	}
	if flags.Changed("cors-origins") {
		origins, _ := flags.GetString("cors-origins")
		cfg.CORSOrigins = splitList(origins)
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Log.Format, _ = flags.GetString("log-format")
	}
	if flags.Changed("openai-model") {
		cfg.OpenAI.Model, _ = flags.GetString("openai-model")
	}
	if flags.Changed("neo4j-uri") {
		cfg.Neo4j.URI, _ = flags.GetString("neo4j-uri")
	}
	if flags.Changed("neo4j-user") {
		cfg.Neo4j.User, _ = flags.GetString("neo4j-user")
	}
	if flags.Changed("neo4j-pass") {
		cfg.Neo4j.Password, _ = flags.GetString("neo4j-pass")
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
