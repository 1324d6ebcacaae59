package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

/* Config holds the deployment configuration for the provisioning service.
 * It is loaded once in main and passed into constructors so tests can
 * inject fixtures instead of mutating process state.
 */

type Config struct {
	Port string `mapstructure:"PORT"`

	// GitHub API credentials and the fixed repository to grant access to
	GithubToken string `mapstructure:"GITHUB_TOKEN"`
	GithubOwner string `mapstructure:"GITHUB_OWNER"`
	GithubRepo  string `mapstructure:"GITHUB_REPO"`

	// GithubAPIURL overrides the API base URL (staging, tests)
	GithubAPIURL string `mapstructure:"GITHUB_API_URL"`

	// DodoWebhookSecret is the shared signing secret from the payment
	// provider. Empty means deliveries are accepted unverified.
	DodoWebhookSecret string `mapstructure:"DODO_WEBHOOK_SECRET"`
}

// GithubConfigured reports whether all GitHub settings needed for the
// provisioning pipeline are present.
func (c *Config) GithubConfigured() bool {
	return c.GithubToken != "" && c.GithubOwner != "" && c.GithubRepo != ""
}

func GetConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	for _, key := range []string{
		"PORT",
		"GITHUB_TOKEN",
		"GITHUB_OWNER",
		"GITHUB_REPO",
		"GITHUB_API_URL",
		"DODO_WEBHOOK_SECRET",
	} {
		if err := viper.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env var %s: %w", key, err)
		}
	}
	viper.SetDefault("PORT", "8080")

	// The config file is optional: env-only deployments are common on the
	// platforms this service targets.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	return &config, nil
}
