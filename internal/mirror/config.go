package mirror

import (
	"errors"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	defaultMaxConns = 10
)

var validID = regexp.MustCompile(`^[a-z0-9_.-]+$`)

// IsValidID checks if the given mirror ID is valid.
func IsValidID(id string) bool {
	return validID.MatchString(id)
}

type tomlURL struct {
	*url.URL
}

func (u *tomlURL) UnmarshalText(text []byte) error {
	parsedURL, err := url.Parse(string(text))
	if err != nil {
		return err
	}
	switch parsedURL.Scheme {
	case "http":
	case "https":
	default:
		return errors.New("unsupported scheme: " + parsedURL.Scheme + " (use http or https)")
	}

	// for URL.ResolveReference
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
		parsedURL.RawPath += "/"
	}

	u.URL = parsedURL
	return nil
}

// MirrorConfig is the per-repository section of Config.
type MirrorConfig struct {
	// URL is the root URL of the Nexus 3 server.
	URL tomlURL `toml:"url"`

	// Repository is the name of the repository whose assets are
	// mirrored. Defaults to the mirror ID.
	Repository string `toml:"repository,omitempty"`

	// Username enables HTTP Basic Auth. The password is resolved by
	// the CLI layer and never read here.
	Username string `toml:"username,omitempty"`

	// MaxPages caps the catalog cursor walk as a guard against a
	// server that never terminates the chain. 0 means unlimited,
	// trusting the server.
	MaxPages int `toml:"max_pages,omitempty"`
}

// Check validates the configuration.
func (mc *MirrorConfig) Check() error {
	if mc.URL.URL == nil {
		return errors.New("url is not set")
	}
	if mc.MaxPages < 0 {
		return errors.New("max_pages must not be negative")
	}
	return nil
}

// RepositoryName returns the configured repository name, falling back
// to the mirror ID.
func (mc *MirrorConfig) RepositoryName(id string) string {
	if mc.Repository != "" {
		return mc.Repository
	}
	return id
}

// LogConfig represents slog configuration options.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Apply configures the global slog logger based on the configuration.
func (logConfig *LogConfig) Apply() error {
	var level slog.Level
	switch strings.ToLower(logConfig.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return errors.New("invalid log level: " + logConfig.Level)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(logConfig.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "plain", "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return errors.New("invalid log format: " + logConfig.Format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// Config is a struct to read TOML configurations.
//
// Use https://github.com/BurntSushi/toml as follows:
//
//	config := mirror.NewConfig()
//	md, err := toml.DecodeFile("/path/to/config.toml", config)
//	if err != nil {
//	    ...
//	}
type Config struct {
	// Dir is the base output directory. Each mirror writes its tree
	// under Dir/<mirror-id>.
	Dir string `toml:"dir"`

	// MaxConns bounds concurrent asset downloads per mirror. 1 gives
	// strictly sequential behavior.
	MaxConns int `toml:"max_conns"`

	Log     LogConfig                `toml:"log"`
	TLS     TLSConfig                `toml:"tls"`
	Mirrors map[string]*MirrorConfig `toml:"mirrors"`
}

// Check validates the configuration.
func (c *Config) Check() error {
	if c.Dir == "" {
		return errors.New("dir is not set")
	}
	if !filepath.IsAbs(c.Dir) {
		return errors.New("dir must be an absolute path")
	}
	if c.MaxConns < 1 {
		return errors.New("max_conns must be at least 1")
	}
	return nil
}

// NewConfig creates Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxConns: defaultMaxConns,
	}
}
