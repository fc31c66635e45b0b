package config

// Config represents the application configuration
type Config struct {
	Telegram TelegramConfig
	Panel    PanelConfig
	Link     LinkConfig
	Database DatabaseConfig
	SyncSpec string
	LogLevel string
}

// TelegramConfig holds the Telegram bot configuration
type TelegramConfig struct {
	Token    string
	AdminIDs []int64
}

// PanelConfig holds the 3x-ui panel connection configuration
type PanelConfig struct {
	BaseURL   string
	Username  string
	Password  string
	VerifySSL bool
}

// LinkConfig holds the settings used when deriving connection links
type LinkConfig struct {
	// ExternalAddress overrides the host of every generated link when set
	ExternalAddress string
	ExternalPort    int
	Fallback        FallbackLinkConfig
}

// FallbackLinkConfig describes the VLESS link produced when no inbound
// data is available from the panel at all
type FallbackLinkConfig struct {
	Server   string
	Port     int
	SNI      string
	Security string
	Type     string
}

// DatabaseConfig holds the SQLite configuration
type DatabaseConfig struct {
	Path string
}
