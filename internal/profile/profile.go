// Package profile manages the user config file: named connection profiles
// plus the threshold and layout settings used when building graphs.
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jacobarthurs/pgplanviz/internal/graph"
	"github.com/jacobarthurs/pgplanviz/internal/severity"
	"gopkg.in/yaml.v3"
)

const configFileName = "config.yaml"

var configDirFunc = configDir

var ErrConfigExists = errors.New("config file already exists")

type Profile struct {
	Name    string `yaml:"name"`
	ConnStr string `yaml:"conn_str"`
}

type Config struct {
	Default    string               `yaml:"default,omitempty"`
	Profiles   []Profile            `yaml:"profiles"`
	Thresholds *severity.Thresholds `yaml:"thresholds,omitempty"`
	Layout     *graph.Layout        `yaml:"layout,omitempty"`
}

const template = `# pgplanviz configuration
#
# default: name of the profile used when neither --db nor --profile is given
# profiles: named PostgreSQL connection strings
default: local
profiles:
  - name: local
    conn_str: postgres://postgres@localhost:5432/postgres?sslmode=disable

# Badge thresholds. A metric above the threshold is medium, above twice the
# threshold it is high. cost is in planner units, time in milliseconds.
thresholds:
  cost: 100
  time: 1

# Graph layout in pixels. compact spaces siblings one column apart even when
# their subtrees are wide.
layout:
  row_height: 220
  column_width: 400
  compact: false
`

// Init writes the example config and returns its path. An existing file is
// only replaced when force is set.
func Init(force bool) (string, error) {
	path, err := configPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return path, fmt.Errorf("%w: %s (use --force to overwrite)", ErrConfigExists, path)
	}
	if err := ensureConfigDir(); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(template), 0600); err != nil {
		return "", fmt.Errorf("writing config %s: %w", path, err)
	}
	return path, nil
}

// Options returns the graph settings from the config file, with defaults for
// anything unset. A missing file yields the defaults.
func Options() (graph.Options, error) {
	opts := graph.DefaultOptions()
	cfg, err := load()
	if err != nil {
		if os.IsNotExist(err) {
			return opts, nil
		}
		return opts, err
	}
	if cfg.Thresholds != nil {
		opts.Thresholds = cfg.Thresholds.WithDefaults()
	}
	if cfg.Layout != nil {
		opts.Layout = cfg.Layout.WithDefaults()
	}
	return opts, nil
}

func Resolve(name string) (string, error) {
	cfg, err := load()
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no profiles configured")
		}
		return "", err
	}

	if p, ok := cfg.find(name); ok {
		return p.ConnStr, nil
	}
	return "", fmt.Errorf("profile %q not found", name)
}

func List() ([]Profile, error) {
	cfg, err := loadOrEmpty()
	if err != nil {
		return nil, err
	}
	return cfg.Profiles, nil
}

func Add(name, connStr string) error {
	cfg, err := loadOrEmpty()
	if err != nil {
		return err
	}

	for i := range cfg.Profiles {
		if cfg.Profiles[i].Name == name {
			cfg.Profiles[i].ConnStr = connStr
			return save(cfg)
		}
	}

	cfg.Profiles = append(cfg.Profiles, Profile{Name: name, ConnStr: connStr})
	return save(cfg)
}

func Remove(name string) error {
	cfg, err := load()
	if err != nil {
		return err
	}

	for i, p := range cfg.Profiles {
		if p.Name != name {
			continue
		}
		cfg.Profiles = append(cfg.Profiles[:i], cfg.Profiles[i+1:]...)
		if cfg.Default == name {
			cfg.Default = ""
		}
		return save(cfg)
	}

	return fmt.Errorf("profile %q not found", name)
}

// ResolveConnStr picks the connection string by precedence: explicit --db,
// then --profile, then the configured default. Empty means no database.
func ResolveConnStr(db, profileName string) (string, error) {
	if db != "" {
		return db, nil
	}
	if profileName != "" {
		return Resolve(profileName)
	}

	cfg, err := loadOrEmpty()
	if err != nil {
		return "", err
	}
	if cfg.Default != "" {
		return Resolve(cfg.Default)
	}
	return "", nil
}

func GetDefault() (string, error) {
	cfg, err := loadOrEmpty()
	if err != nil {
		return "", err
	}
	return cfg.Default, nil
}

func SetDefault(name string) error {
	cfg, err := loadOrEmpty()
	if err != nil {
		return err
	}
	if _, ok := cfg.find(name); !ok {
		return fmt.Errorf("profile %q not found", name)
	}

	cfg.Default = name
	return save(cfg)
}

func ClearDefault() error {
	cfg, err := load()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cfg.Default = ""
	return save(cfg)
}

func (c *Config) find(name string) (Profile, bool) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

func load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

func loadOrEmpty() (*Config, error) {
	cfg, err := load()
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	return cfg, err
}

func configDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("finding config directory: %w", err)
	}
	return filepath.Join(base, "pgplanviz"), nil
}

func configPath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

func ensureConfigDir() error {
	dir, err := configDirFunc()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

func save(cfg *Config) error {
	if err := ensureConfigDir(); err != nil {
		return err
	}

	path, err := configPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}
