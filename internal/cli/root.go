// Package cli implements the fleetctl command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/printfleet/fleetclient"
	"github.com/printfleet/fleetclient/tokenstore"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	ConfigPath string
	APIURL     string
	Verbose    bool
}

// fileConfig is the on-disk fleetctl configuration.
type fileConfig struct {
	APIURL    string `yaml:"api_url"`
	TokenPath string `yaml:"token_path"`
}

// NewRootCommand creates the fleetctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "fleetctl",
		Short:         "Manage a printer fleet from the command line",
		Long:          "fleetctl talks to a fleet backend: sign in, inspect printers, and work alerts.\nConfiguration comes from ~/.config/fleetctl/config.yaml, FLEET_* environment\nvariables, and flags, in rising precedence.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config file (default: <user config dir>/fleetctl/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", "", "backend API root, e.g. https://fleet.example.com/api")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewPrintersCommand(opts))
	cmd.AddCommand(NewAlertsCommand(opts))

	return cmd
}

func configDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, "fleetctl"), nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return fc, err
		}
		path = filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(path); err != nil {
			// No config file is fine when it was not named explicitly.
			return fc, nil
		}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

// newClient builds a booted-ready client from config file, environment, and
// flags.
func newClient(opts *RootOptions) (*fleetclient.Client, error) {
	fc, err := loadFileConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	cfg, err := fleetclient.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if os.Getenv("FLEET_API_URL") == "" && fc.APIURL != "" {
		cfg.API.BaseURL = fc.APIURL
	}
	if opts.APIURL != "" {
		cfg.API.BaseURL = opts.APIURL
	}
	cfg.API.UserAgent = "fleetctl"

	tokenPath := cfg.Storage.TokenPath
	if tokenPath == "" {
		tokenPath = fc.TokenPath
	}
	if tokenPath == "" {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		tokenPath = filepath.Join(dir, "token.json")
	}

	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return fleetclient.New().
		WithConfig(cfg).
		WithTokenStore(tokenstore.NewFile(tokenPath)).
		WithLogger(logger).
		Build()
}
