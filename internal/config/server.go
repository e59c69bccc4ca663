// Package config provides configuration management for the permit office.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// Upload storage backends.
const (
	UploadBackendLocal = "local"
	UploadBackendS3    = "s3"
)

// Defaults applied when the corresponding variable is unset or invalid.
const (
	DefaultListenAddr            = ":8080"
	DefaultDatabasePath          = "data/aurospan.db"
	DefaultUploadDir             = "uploaded_permit_files"
	DefaultMaxUploadBytes        = 10 << 20
	DefaultMaxFilesPerSubmission = 10
	DefaultSessionMaxAge         = 86400
	DefaultLoginTimeout          = 10 * time.Second
	DefaultRateLimitRequests     = 60
	DefaultRateLimitPeriod       = time.Minute
)

// Upper bounds for the upload limits. Their product stays far below the
// largest request body length net/http can represent.
const (
	MaxUploadBytesLimit        = 1 << 30
	MaxFilesPerSubmissionLimit = 100
)

// ErrInvalidConfig is returned when required configuration is missing or malformed.
var ErrInvalidConfig = errors.New("invalid configuration")

// S3Config holds settings for the S3-compatible upload backend.
type S3Config struct {
	Endpoint        string
	Bucket          string
	Prefix          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// DiscordConfig holds the OAuth application and bot credentials.
type DiscordConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	BotToken     string
	GuildID      string
	APIBase      string
	WebhookURL   string
}

// ProxyConfig holds outbound proxy settings.
type ProxyConfig struct {
	HTTPProxy   string
	HTTPSProxy  string
	SOCKS5Proxy string
	NoProxy     string
}

// HasProxy reports whether any proxy is configured.
func (p *ProxyConfig) HasProxy() bool {
	return p.HTTPProxy != "" || p.HTTPSProxy != "" || p.SOCKS5Proxy != ""
}

// ServerConfig holds server-level configuration loaded from environment variables.
type ServerConfig struct {
	Environment  Environment
	ListenAddr   string
	DatabasePath string

	UploadBackend         string
	UploadDir             string
	S3                    S3Config
	MaxUploadBytes        int64
	MaxFilesPerSubmission int

	Discord      DiscordConfig
	AdminRoleIDs []string // empty means use the built-in defaults

	SessionSecret string
	SessionMaxAge int // session lifetime in seconds (default: 86400)
	LoginTimeout  time.Duration

	RateLimitRequests int64
	RateLimitPeriod   time.Duration
	RedisURL          string

	Proxy         ProxyConfig
	PublicBaseURL string
}

// IsProduction reports whether the server runs in production.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Load reads server configuration from environment variables and validates it.
func Load() (*ServerConfig, error) {
	cfg := LoadServerConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadServerConfig reads server configuration from environment variables.
// Invalid values fall back to their defaults.
func LoadServerConfig() ServerConfig {
	env := Environment(os.Getenv("ENV"))
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		env = EnvDevelopment
	}

	listenAddr := getEnv("LISTEN_ADDR", "")
	if listenAddr == "" {
		if port := getEnv("PORT", ""); port != "" {
			listenAddr = ":" + port
		} else {
			listenAddr = DefaultListenAddr
		}
	}

	backend := strings.ToLower(getEnv("UPLOAD_BACKEND", UploadBackendLocal))

	maxUpload := int64(getEnvInt("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes))
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}

	maxFiles := getEnvInt("MAX_FILES_PER_SUBMISSION", DefaultMaxFilesPerSubmission)
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFilesPerSubmission
	}

	sessionMaxAge := getEnvInt("SESSION_MAX_AGE", DefaultSessionMaxAge)
	if sessionMaxAge < 0 {
		sessionMaxAge = DefaultSessionMaxAge
	}

	loginTimeout := getEnvDuration("LOGIN_TIMEOUT", DefaultLoginTimeout)
	if loginTimeout <= 0 {
		loginTimeout = DefaultLoginTimeout
	}

	rateRequests := int64(getEnvInt("RATE_LIMIT_REQUESTS", DefaultRateLimitRequests))
	if rateRequests <= 0 {
		rateRequests = DefaultRateLimitRequests
	}
	ratePeriod := getEnvDuration("RATE_LIMIT_PERIOD", DefaultRateLimitPeriod)
	if ratePeriod <= 0 {
		ratePeriod = DefaultRateLimitPeriod
	}

	return ServerConfig{
		Environment:           env,
		ListenAddr:            listenAddr,
		DatabasePath:          getEnv("DATABASE_PATH", DefaultDatabasePath),
		UploadBackend:         backend,
		UploadDir:             getEnv("UPLOAD_DIR", DefaultUploadDir),
		MaxUploadBytes:        maxUpload,
		MaxFilesPerSubmission: maxFiles,
		S3: S3Config{
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Bucket:          getEnv("S3_BUCKET", ""),
			Prefix:          getEnv("S3_PREFIX", ""),
			Region:          getEnv("S3_REGION", "us-east-1"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			UseSSL:          getEnvBool("S3_USE_SSL", true),
		},
		Discord: DiscordConfig{
			ClientID:     getEnv("DISCORD_CLIENT_ID", ""),
			ClientSecret: getEnv("DISCORD_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("DISCORD_REDIRECT_URI", ""),
			BotToken:     getEnv("DISCORD_BOT_TOKEN", ""),
			GuildID:      getEnv("DISCORD_GUILD_ID", ""),
			APIBase:      strings.TrimSuffix(getEnv("DISCORD_API_BASE", ""), "/"),
			WebhookURL:   getEnv("DISCORD_WEBHOOK_URL", ""),
		},
		AdminRoleIDs:      getEnvList("ADMIN_ROLE_IDS"),
		SessionSecret:     os.Getenv("SESSION_SECRET_KEY"),
		SessionMaxAge:     sessionMaxAge,
		LoginTimeout:      loginTimeout,
		RateLimitRequests: rateRequests,
		RateLimitPeriod:   ratePeriod,
		RedisURL:          getEnv("REDIS_URL", ""),
		Proxy: ProxyConfig{
			HTTPProxy:   getEnv("HTTP_PROXY_URL", ""),
			HTTPSProxy:  getEnv("HTTPS_PROXY_URL", ""),
			SOCKS5Proxy: getEnv("SOCKS5_PROXY_URL", ""),
			NoProxy:     getEnv("NO_PROXY_HOSTS", ""),
		},
		PublicBaseURL: strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", ""), "/"),
	}
}

// Validate checks that all required settings are present and consistent.
// Discord credentials are only required in production so the lore pages
// can be served locally without an OAuth application.
func (c *ServerConfig) Validate() error {
	var problems []string

	if len(c.SessionSecret) < 32 {
		problems = append(problems, "SESSION_SECRET_KEY must be at least 32 bytes")
	}

	switch c.UploadBackend {
	case UploadBackendLocal:
		if c.UploadDir == "" {
			problems = append(problems, "UPLOAD_DIR is required for the local upload backend")
		}
	case UploadBackendS3:
		if c.S3.Bucket == "" {
			problems = append(problems, "S3_BUCKET is required for the s3 upload backend")
		}
		if c.S3.AccessKeyID == "" || c.S3.SecretAccessKey == "" {
			problems = append(problems, "S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required for the s3 upload backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("UPLOAD_BACKEND %q is not one of local, s3", c.UploadBackend))
	}

	if c.MaxUploadBytes > MaxUploadBytesLimit {
		problems = append(problems, fmt.Sprintf("MAX_UPLOAD_BYTES must not exceed %d", MaxUploadBytesLimit))
	}
	if c.MaxFilesPerSubmission > MaxFilesPerSubmissionLimit {
		problems = append(problems, fmt.Sprintf("MAX_FILES_PER_SUBMISSION must not exceed %d", MaxFilesPerSubmissionLimit))
	}

	if c.IsProduction() {
		required := map[string]string{
			"DISCORD_CLIENT_ID":     c.Discord.ClientID,
			"DISCORD_CLIENT_SECRET": c.Discord.ClientSecret,
			"DISCORD_REDIRECT_URI":  c.Discord.RedirectURI,
			"DISCORD_BOT_TOKEN":     c.Discord.BotToken,
			"DISCORD_GUILD_ID":      c.Discord.GuildID,
		}
		for _, key := range []string{"DISCORD_CLIENT_ID", "DISCORD_CLIENT_SECRET", "DISCORD_REDIRECT_URI", "DISCORD_BOT_TOKEN", "DISCORD_GUILD_ID"} {
			if required[key] == "" {
				problems = append(problems, key+" is required in production")
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// getEnv reads a string from an environment variable, returning the default if unset.
func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

// getEnvBool reads a boolean from an environment variable, returning the default if unset or invalid.
func getEnvBool(key string, defaultVal bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvDuration reads a duration such as "10s" or a bare number of seconds.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList reads a comma-separated list, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
