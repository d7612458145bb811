package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/sparkcoach/internal/client"
	"github.com/lazypower/sparkcoach/internal/config"
	"github.com/lazypower/sparkcoach/internal/server"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "sparkcoach",
	Short: "Retention and engagement engine for a learning vault",
	Long: "sparkcoach watches the resources in a markdown vault, flags the ones you are\n" +
		"drifting away from, writes re-engagement nudges, and runs spaced-repetition quizzes.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default ~/.sparkcoach/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(nudgesCmd)
	rootCmd.AddCommand(quizCmd)
	rootCmd.AddCommand(resourcesCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(tokenCmd)
}

func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// apiClient returns a client for the configured server. When auth is
// enabled it mints a short-lived token from the shared secret.
func apiClient(cfg config.Config) (*client.Client, error) {
	var token string
	if cfg.Auth.JWTSecret != "" {
		var err error
		token, err = server.IssueToken(cfg.Auth.JWTSecret, cfg.Auth.Subject, 10*time.Minute, time.Now())
		if err != nil {
			return nil, err
		}
	}
	return client.New(cfg.ClientURL(), token, client.DefaultTimeout), nil
}
