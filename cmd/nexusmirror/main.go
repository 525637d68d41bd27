// Package main implements the nexusmirror command-line tool for
// bulk-mirroring Nexus 3 repository assets.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nexusmirror/nexusmirror/internal/mirror"
	"github.com/nexusmirror/nexusmirror/internal/nexus"
)

const (
	defaultConfigPath = "/etc/nexusmirror/mirror.toml"

	// passwordEnv supplies the HTTP Basic Auth password without an
	// interactive prompt.
	passwordEnv = "NEXUS_PASSWORD"
)

// Exit statuses. Every terminal failure class maps to its own code so
// wrapping scripts can tell them apart.
const (
	exitOK           = 0
	exitPrecondition = 1
	exitNetwork      = 2
	exitProtocol     = 3
	exitDownload     = 4
)

var (
	// Build information - can be set via build flags
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"

	// Command-line flags
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "nexusmirror",
	Short: "Mirror Nexus 3 repository assets",
	Long: `nexusmirror is a tool for downloading all assets inside a Nexus 3
repository, reproducing the repository's internal path layout locally
and verifying every download against its SHA-1 digest.

Find more information at: https://github.com/nexusmirror/nexusmirror`,
}

var syncCmd = &cobra.Command{
	Use:   "sync [mirror-ids...]",
	Short: "Synchronize one or more configured repositories",
	Long: `Synchronizes one or more repositories based on the provided configuration.

Usage:
  # Synchronize all repositories in your configuration file
  nexusmirror sync

  # Synchronize only specific repositories
  nexusmirror sync maven-releases npm-proxy

  # Use a custom configuration file
  nexusmirror sync --config /path/to/mirror.toml

  # Incremental re-run: keep the output directory and skip assets whose
  # local file already matches the listed size
  nexusmirror sync --mirror

  # Skip SHA-1 verification of downloaded assets
  nexusmirror sync --no-verify

  # Suppress all output except errors
  nexusmirror sync --quiet

If no mirror IDs are specified, all repositories in the configuration
file will be synchronized.`,
	Run: runSync,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information including build details",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("nexusmirror %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", buildDate)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long:  `Validate the configuration file and report any issues.`,
	Run:   runValidate,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(validateCmd)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "configuration file path")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("verbose-errors", false, "show detailed error information including stack traces")

	syncCmd.Flags().BoolP("mirror", "m", false, "mirror mode; keep the output directory and skip size-matching assets")
	syncCmd.Flags().BoolP("no-verify", "n", false, "disable SHA-1 verification of downloaded assets")
	syncCmd.Flags().BoolP("quiet", "q", false, "suppress all output except for errors")
	syncCmd.Flags().StringP("username", "u", "", "HTTP Basic Auth username, overriding the configured one")
}

// formatError returns a human-friendly error message, optionally with
// stack trace.
func formatError(err error, verbose bool) string {
	if verbose {
		return fmt.Sprintf("%+v", err)
	}

	flattened := errors.FlattenDetails(err)
	if flattened != "" {
		return flattened
	}

	return err.Error()
}

// exitStatus maps a run error to a process exit code. ErrDownload is
// checked before the network sentinel because an asset-stage transport
// failure carries both marks.
func exitStatus(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, mirror.ErrPrecondition):
		return exitPrecondition
	case errors.Is(err, mirror.ErrDownload):
		return exitDownload
	case errors.Is(err, nexus.ErrNetwork):
		return exitNetwork
	case errors.Is(err, nexus.ErrProtocol):
		return exitProtocol
	}
	return exitPrecondition
}

// loadConfig decodes and validates the TOML configuration, applying
// the log settings and any command-line log-level override.
func loadConfig() (*mirror.Config, error) {
	config := mirror.NewConfig()
	meta, err := toml.DecodeFile(configPath, config)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Error("configuration file not found", "path", configPath)
			slog.Info("Please create a configuration file at the default location or specify one with the --config flag.")
			return nil, err
		}
		return nil, errors.Wrap(err, "decoding "+configPath)
	}

	// Undecoded keys usually mean a misspelled section.
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, errors.Newf("configuration contains unknown keys: %s", strings.Join(keys, ", "))
	}

	if err := config.Log.Apply(); err != nil {
		return nil, errors.Wrap(err, "log config")
	}
	if logLevel != "" {
		config.Log.Level = logLevel
		if err := config.Log.Apply(); err != nil {
			return nil, errors.Wrapf(err, "command-line log level %q", logLevel)
		}
	}

	return config, nil
}

// needsPassword reports whether any selected mirror configures a
// username and therefore requires a password.
func needsPassword(config *mirror.Config, mirrorIDs []string) bool {
	if len(mirrorIDs) == 0 {
		for _, mc := range config.Mirrors {
			if mc.Username != "" {
				return true
			}
		}
		return false
	}
	for _, id := range mirrorIDs {
		if mc, ok := config.Mirrors[id]; ok && mc.Username != "" {
			return true
		}
	}
	return false
}

// resolvePassword obtains the Basic Auth password from the
// NEXUS_PASSWORD environment variable or an interactive prompt. The
// core never reads the environment; credentials flow in explicitly.
func resolvePassword() (string, error) {
	if password := os.Getenv(passwordEnv); password != "" {
		return password, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.Newf("%s is not set and stdin is not a terminal", passwordEnv)
	}

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	return string(password), nil
}

func runSync(cmd *cobra.Command, args []string) {
	verboseErrors, _ := cmd.Flags().GetBool("verbose-errors")

	config, err := loadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", formatError(err, verboseErrors), "path", configPath)
		os.Exit(exitPrecondition)
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	if quiet {
		config.Log.Level = "error"
		if err := config.Log.Apply(); err != nil {
			slog.Error("failed to apply quiet log level", "error", err)
			os.Exit(exitPrecondition)
		}
	}

	if err := config.Check(); err != nil {
		slog.Error("invalid configuration", "error", err, "path", configPath)
		os.Exit(exitPrecondition)
	}

	if username, _ := cmd.Flags().GetString("username"); username != "" {
		for _, mc := range config.Mirrors {
			mc.Username = username
		}
	}

	opts := mirror.SyncOptions{Quiet: quiet}
	opts.MirrorMode, _ = cmd.Flags().GetBool("mirror")
	opts.NoVerify, _ = cmd.Flags().GetBool("no-verify")

	if needsPassword(config, args) {
		opts.Password, err = resolvePassword()
		if err != nil {
			slog.Error("failed to resolve password", "error", err)
			os.Exit(exitPrecondition)
		}
	}

	if err := mirror.Run(context.Background(), config, args, opts); err != nil {
		slog.Error("sync failed", "error", formatError(err, verboseErrors))
		if !verboseErrors {
			slog.Info("run with --verbose-errors for detailed stack traces")
		}
		os.Exit(exitStatus(err))
	}
}

func runValidate(cmd *cobra.Command, _ []string) {
	verboseErrors, _ := cmd.Flags().GetBool("verbose-errors")

	config, err := loadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", formatError(err, verboseErrors), "path", configPath)
		os.Exit(1)
	}

	var validationErrors []error

	if err := config.Check(); err != nil {
		validationErrors = append(validationErrors, errors.Wrap(err, "global config"))
	}

	if err := config.TLS.Validate(); err != nil {
		validationErrors = append(validationErrors, errors.Wrap(err, "tls config"))
	}

	for mirrorID, mirrorConfig := range config.Mirrors {
		if !mirror.IsValidID(mirrorID) {
			validationErrors = append(validationErrors, errors.New("invalid mirror ID: "+mirrorID))
		}
		if err := mirrorConfig.Check(); err != nil {
			validationErrors = append(validationErrors, errors.Wrap(err, "mirror \""+mirrorID+"\""))
		}
	}

	if len(validationErrors) > 0 {
		slog.Error("the toml configuration file is not valid")
		for _, err := range validationErrors {
			slog.Error(err.Error())
		}
		os.Exit(1)
	}

	slog.Info("the toml configuration file passes validation checks")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
