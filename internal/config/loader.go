package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	// Set default values
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("XUI_VERIFY_SSL", false)
	v.SetDefault("XUI_EXTERNAL_PORT", 443)
	v.SetDefault("VLESS_PORT", 443)
	v.SetDefault("VLESS_SECURITY", "tls")
	v.SetDefault("VLESS_TYPE", "tcp")
	v.SetDefault("DATABASE_PATH", "data/vpn_bot.db")
	v.SetDefault("TRAFFIC_SYNC_SPEC", "@every 1h")

	// Define environment variables
	v.BindEnv("TG_TOKEN")
	v.BindEnv("TG_ADMIN_IDS")
	v.BindEnv("XUI_BASE_URL")
	v.BindEnv("XUI_USERNAME")
	v.BindEnv("XUI_PASSWORD")
	v.BindEnv("XUI_VERIFY_SSL")
	v.BindEnv("XUI_EXTERNAL_ADDRESS")
	v.BindEnv("XUI_EXTERNAL_PORT")
	v.BindEnv("VLESS_SERVER")
	v.BindEnv("VLESS_PORT")
	v.BindEnv("VLESS_SNI")
	v.BindEnv("VLESS_SECURITY")
	v.BindEnv("VLESS_TYPE")
	v.BindEnv("DATABASE_PATH")
	v.BindEnv("TRAFFIC_SYNC_SPEC")
	v.BindEnv("LOG_LEVEL")

	cfg := &Config{
		LogLevel: v.GetString("LOG_LEVEL"),
		SyncSpec: v.GetString("TRAFFIC_SYNC_SPEC"),
		Telegram: TelegramConfig{
			Token: v.GetString("TG_TOKEN"),
		},
		Panel: PanelConfig{
			BaseURL:   strings.TrimRight(strings.TrimSpace(v.GetString("XUI_BASE_URL")), "/"),
			Username:  strings.TrimSpace(v.GetString("XUI_USERNAME")),
			Password:  strings.TrimSpace(v.GetString("XUI_PASSWORD")),
			VerifySSL: v.GetBool("XUI_VERIFY_SSL"),
		},
		Link: LinkConfig{
			ExternalAddress: strings.TrimSpace(v.GetString("XUI_EXTERNAL_ADDRESS")),
			ExternalPort:    v.GetInt("XUI_EXTERNAL_PORT"),
			Fallback: FallbackLinkConfig{
				Server:   strings.TrimSpace(v.GetString("VLESS_SERVER")),
				Port:     v.GetInt("VLESS_PORT"),
				SNI:      strings.TrimSpace(v.GetString("VLESS_SNI")),
				Security: v.GetString("VLESS_SECURITY"),
				Type:     v.GetString("VLESS_TYPE"),
			},
		},
		Database: DatabaseConfig{
			Path: v.GetString("DATABASE_PATH"),
		},
	}

	// Parse admin IDs
	adminIDsStr := v.GetString("TG_ADMIN_IDS")
	if adminIDsStr != "" {
		adminIDsSlice := strings.Split(adminIDsStr, ",")
		adminIDs := make([]int64, 0, len(adminIDsSlice))
		for _, idStr := range adminIDsSlice {
			var id int64
			if _, err := fmt.Sscanf(strings.TrimSpace(idStr), "%d", &id); err == nil {
				adminIDs = append(adminIDs, id)
			}
		}
		cfg.Telegram.AdminIDs = adminIDs
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Telegram.Token == "" {
		return errors.New("TG_TOKEN is required")
	}

	if len(cfg.Telegram.AdminIDs) == 0 {
		return errors.New("TG_ADMIN_IDS is required")
	}

	if cfg.Panel.BaseURL == "" {
		return errors.New("XUI_BASE_URL is required")
	}
	if !strings.HasPrefix(cfg.Panel.BaseURL, "http://") && !strings.HasPrefix(cfg.Panel.BaseURL, "https://") {
		return fmt.Errorf("XUI_BASE_URL must start with http:// or https://, got %q", cfg.Panel.BaseURL)
	}
	if cfg.Panel.Username == "" {
		return errors.New("XUI_USERNAME is required")
	}
	if cfg.Panel.Password == "" {
		return errors.New("XUI_PASSWORD is required")
	}

	return nil
}
