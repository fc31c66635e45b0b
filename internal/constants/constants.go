package constants

const (
	// Network constants
	ConnectTimeout = 10 // seconds
	RequestTimeout = 30 // seconds

	// Cache constants
	StateExpiration      = 30 // minutes
	StateCleanupInterval = 10 // minutes

	// Client constants
	SubIDLength        = 16
	RealityFlow        = "xtls-rprx-vision"
	DefaultFingerprint = "random"
	EmailPrefix        = "user_"

	// Traffic constants
	BytesInGB = 1024 * 1024 * 1024

	// Formatting constants
	TimestampFormat = "2006-01-02 15:04:05"
	DateFormat      = "2006-01-02"
)
