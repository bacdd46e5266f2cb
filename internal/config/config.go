// Package config provides the configuration schema and loader for the
// voxgate speech-to-text gateway.
package config

// LogLevel controls log verbosity for the gateway server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for voxgate. It is typically
// loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Limiter LimiterConfig `yaml:"limiter"`
}

// ServerConfig holds network and logging settings for the gateway's HTTP
// listener.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// EngineConfig configures the whisper.cpp transcription backend.
type EngineConfig struct {
	// ModelPath is the filesystem path to a whisper.cpp GGML model file.
	ModelPath string `yaml:"model_path"`

	// DefaultLanguage is substituted when a session never sends a
	// "language" control message. Defaults to "auto" when empty.
	DefaultLanguage string `yaml:"default_language"`
}

// LimiterConfig configures the process-wide transcription concurrency cap.
type LimiterConfig struct {
	// MaxConcurrent is the maximum number of whisper.cpp inference calls
	// allowed to run at once, across every session. Must be >= 1.
	MaxConcurrent int `yaml:"max_concurrent"`
}
