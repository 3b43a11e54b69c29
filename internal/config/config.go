// Package config handles connector configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"fedcat/internal/domain"
)

// Recognized option keys.
const (
	KeySourceType             = "source_type"
	KeyAutoDiscoverEndpoint   = "auto_discover_endpoint"
	KeyDomainMapping          = "domain_mapping"
	KeyQueryTimeoutCluster    = "query_timeout_cluster"
	KeyShardSplitting         = "shard_splitting"
	KeyMaxSplitsPerCall       = "max_splits_per_call"
	KeyDisableGlue            = "disable_glue"
	KeyGlueCatalogID          = "glue_catalog_id"
	KeyAWSRegion              = "aws_region"
	KeyAWSAccessKeyID         = "aws_access_key_id"
	KeyAWSSecretAccessKey     = "aws_secret_access_key"
	KeyAWSSessionToken        = "aws_session_token"
	KeySigV4Signing           = "sigv4_signing"
	KeyIcebergRestURI         = "iceberg_rest_uri"
	KeyIcebergRestWarehouse   = "iceberg_rest_warehouse"
	KeyIcebergRestCredential  = "iceberg_rest_credential"
	KeyIcebergRestHeaders     = "iceberg_rest_headers"
	KeySpillBucket            = "spill_bucket"
	KeySpillPrefix            = "spill_prefix"
	KeySpillProbe             = "spill_probe"
	KeyKMSKeyID               = "kms_key_id"
	KeyDisableSpillEncryption = "disable_spill_encryption"
	KeyListenAddr             = "listen_addr"
	KeyLogLevel               = "log_level"
	KeyEnv                    = "env"
	KeyRateLimitRPS           = "rate_limit_rps"
	KeyRateLimitBurst         = "rate_limit_burst"
	KeyCORSAllowedOrigins     = "cors_allowed_origins"
	KeyDomainRefreshSchedule  = "domain_refresh_schedule"
	KeyAPIJWTSecret           = "api_jwt_secret"
	KeyAPIJWKSURL             = "api_jwks_url"
	KeyAPIJWTIssuer           = "api_jwt_issuer"
	KeyAPIJWTAudience         = "api_jwt_audience"
)

var knownKeys = []string{
	KeySourceType, KeyAutoDiscoverEndpoint, KeyDomainMapping, KeyQueryTimeoutCluster,
	KeyShardSplitting, KeyMaxSplitsPerCall, KeyDisableGlue, KeyGlueCatalogID, KeyAWSRegion,
	KeyAWSAccessKeyID, KeyAWSSecretAccessKey, KeyAWSSessionToken,
	KeySigV4Signing, KeyIcebergRestURI, KeyIcebergRestWarehouse, KeyIcebergRestCredential,
	KeyIcebergRestHeaders, KeySpillBucket, KeySpillPrefix, KeySpillProbe, KeyKMSKeyID,
	KeyDisableSpillEncryption, KeyListenAddr, KeyLogLevel, KeyEnv, KeyRateLimitRPS,
	KeyRateLimitBurst, KeyCORSAllowedOrigins, KeyDomainRefreshSchedule,
	KeyAPIJWTSecret, KeyAPIJWKSURL, KeyAPIJWTIssuer, KeyAPIJWTAudience,
}

// Source kinds.
const (
	SourceElasticsearch = "elasticsearch"
	SourceIceberg       = "iceberg"
)

// DefaultSpillPrefix is used when spill_prefix is not set.
const DefaultSpillPrefix = "athena-federation-spill"

// Redacted replaces sensitive configuration values.
const Redacted = "REDACTED"

// IcebergConfig holds the REST catalog connection parameters.
type IcebergConfig struct {
	URI        string
	Warehouse  string
	Credential string
	Headers    map[string]string
}

// AuthConfig selects how API bearer tokens are verified. A shared secret
// enables HS256 tokens; a JWKS URL enables asymmetric tokens from an
// identity provider. Authentication is off when neither is set.
type AuthConfig struct {
	JWTSecret string
	JWKSURL   string
	Issuer    string
	Audience  string
}

// Enabled reports whether API requests must carry a bearer token.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != "" || a.JWKSURL != ""
}

// SpillConfig holds where readers spill data and how it is encrypted.
type SpillConfig struct {
	Bucket            string // s3://, gs:// or abfss:// root
	Prefix            string
	Probe             bool
	KMSKeyID          string
	DisableEncryption bool
}

// Config holds the configuration of one connector instance.
type Config struct {
	SourceType string

	// Search sources.
	AutoDiscoverEndpoint bool
	DomainMapping        string
	QueryTimeoutCluster  time.Duration
	ShardSplitting       bool
	MaxSplitsPerCall     int
	SigV4Signing         bool

	// DomainRefreshSchedule is a cron expression for periodic discovery
	// refreshes.
	DomainRefreshSchedule string

	// Registry.
	DisableGlue   bool
	GlueCatalogID string
	AWSRegion     string

	// Static AWS credentials; the default provider chain is used when unset.
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string

	Iceberg IcebergConfig
	Spill   SpillConfig
	Auth    AuthConfig

	ListenAddr     string
	LogLevel       string
	Env            string
	RateLimitRPS   float64
	RateLimitBurst int

	// CORSAllowedOrigins enables CORS on the API when non-empty.
	CORSAllowedOrigins []string

	// Options is the raw option map the config was built from.
	Options map[string]string

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables. Option keys
// are matched case-insensitively, so both domain_mapping and DOMAIN_MAPPING
// are recognized.
func LoadFromEnv() (*Config, error) {
	return Load(EnvOptions())
}

// EnvOptions collects the known option keys from the environment, accepting
// lower- and upper-case names.
func EnvOptions() map[string]string {
	opts := make(map[string]string)
	for _, key := range knownKeys {
		if v, ok := os.LookupEnv(key); ok {
			opts[key] = v
		} else if v, ok := os.LookupEnv(strings.ToUpper(key)); ok {
			opts[key] = v
		}
	}
	return opts
}

// Load builds a Config from an option map and validates it. Any missing or
// malformed required option is returned as a *domain.ConfigurationError.
func Load(opts map[string]string) (*Config, error) {
	raw := make(map[string]string, len(opts))
	for k, v := range opts {
		raw[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}

	cfg := &Config{
		SourceType:           strings.ToLower(raw[KeySourceType]),
		AutoDiscoverEndpoint: strings.EqualFold(raw[KeyAutoDiscoverEndpoint], "true"),
		DomainMapping:        raw[KeyDomainMapping],
		GlueCatalogID:        raw[KeyGlueCatalogID],
		AWSRegion:            raw[KeyAWSRegion],
		AWSAccessKeyID:       raw[KeyAWSAccessKeyID],
		AWSSecretAccessKey:   raw[KeyAWSSecretAccessKey],
		AWSSessionToken:      raw[KeyAWSSessionToken],
		ListenAddr:           raw[KeyListenAddr],
		LogLevel:             raw[KeyLogLevel],
		Env:                  raw[KeyEnv],
		Options:              raw,
		Iceberg: IcebergConfig{
			URI:        raw[KeyIcebergRestURI],
			Warehouse:  raw[KeyIcebergRestWarehouse],
			Credential: raw[KeyIcebergRestCredential],
		},
		Spill: SpillConfig{
			Bucket:   raw[KeySpillBucket],
			Prefix:   raw[KeySpillPrefix],
			KMSKeyID: raw[KeyKMSKeyID],
		},
		Auth: AuthConfig{
			JWTSecret: raw[KeyAPIJWTSecret],
			JWKSURL:   raw[KeyAPIJWKSURL],
			Issuer:    raw[KeyAPIJWTIssuer],
			Audience:  raw[KeyAPIJWTAudience],
		},
	}

	cfg.DomainRefreshSchedule = raw[KeyDomainRefreshSchedule]

	var err error
	if cfg.DisableGlue, err = parseBool(raw, KeyDisableGlue, false); err != nil {
		return nil, err
	}
	if cfg.ShardSplitting, err = parseBool(raw, KeyShardSplitting, true); err != nil {
		return nil, err
	}
	if cfg.SigV4Signing, err = parseBool(raw, KeySigV4Signing, cfg.AutoDiscoverEndpoint); err != nil {
		return nil, err
	}
	if cfg.Spill.Probe, err = parseBool(raw, KeySpillProbe, false); err != nil {
		return nil, err
	}
	if cfg.Spill.DisableEncryption, err = parseBool(raw, KeyDisableSpillEncryption, false); err != nil {
		return nil, err
	}

	timeoutSecs := 10
	if v := raw[KeyQueryTimeoutCluster]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, domain.ErrConfiguration(KeyQueryTimeoutCluster, "must be a positive number of seconds, got %q", v)
		}
		timeoutSecs = n
	}
	cfg.QueryTimeoutCluster = time.Duration(timeoutSecs) * time.Second

	if v := raw[KeyMaxSplitsPerCall]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, domain.ErrConfiguration(KeyMaxSplitsPerCall, "must be a non-negative integer, got %q", v)
		}
		cfg.MaxSplitsPerCall = n
	}

	// Rate limiting
	if v := raw[KeyRateLimitRPS]; v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring malformed %s=%q", KeyRateLimitRPS, v))
		}
	}
	if v := raw[KeyRateLimitBurst]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring malformed %s=%q", KeyRateLimitBurst, v))
		}
	}

	for _, origin := range strings.Split(raw[KeyCORSAllowedOrigins], ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	if v, ok := raw[KeyIcebergRestHeaders]; ok && v != "" {
		headers, err := ParseHeaders(v)
		if err != nil {
			return nil, err
		}
		cfg.Iceberg.Headers = headers
	}

	// Defaults
	if cfg.SourceType == "" {
		cfg.SourceType = SourceElasticsearch
	}
	if cfg.Spill.Prefix == "" {
		cfg.Spill.Prefix = DefaultSpillPrefix
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if cfg.Spill.Bucket == "" {
		cfg.Warnings = append(cfg.Warnings, "spill_bucket not set; splits carry no spill location")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.SourceType {
	case SourceElasticsearch:
		if c.AutoDiscoverEndpoint && c.AWSRegion == "" {
			c.Warnings = append(c.Warnings, "aws_region not set; relying on the default AWS region chain for discovery")
		}
	case SourceIceberg:
		if c.Iceberg.URI == "" {
			return domain.ErrConfiguration(KeyIcebergRestURI, "must be set")
		}
		if _, err := url.ParseRequestURI(c.Iceberg.URI); err != nil {
			return domain.ErrConfiguration(KeyIcebergRestURI, "invalid URI %q", c.Iceberg.URI)
		}
		if c.Iceberg.Warehouse == "" {
			return domain.ErrConfiguration(KeyIcebergRestWarehouse, "must be set")
		}
		if c.Iceberg.Credential == "" {
			return domain.ErrConfiguration(KeyIcebergRestCredential, "must be set")
		}
	default:
		return domain.ErrConfiguration(KeySourceType, "unknown source type %q", c.SourceType)
	}
	if (c.AWSAccessKeyID == "") != (c.AWSSecretAccessKey == "") {
		return domain.ErrConfiguration(KeyAWSAccessKeyID, "aws_access_key_id and aws_secret_access_key must be set together")
	}
	if c.DomainRefreshSchedule != "" && !(c.SourceType == SourceElasticsearch && c.AutoDiscoverEndpoint) {
		c.Warnings = append(c.Warnings, "domain_refresh_schedule ignored without auto_discover_endpoint")
	}
	if c.Auth.JWTSecret != "" && c.Auth.JWKSURL != "" {
		return domain.ErrConfiguration(KeyAPIJWTSecret, "api_jwt_secret and api_jwks_url are mutually exclusive")
	}
	if c.Auth.JWKSURL != "" {
		if _, err := url.ParseRequestURI(c.Auth.JWKSURL); err != nil {
			return domain.ErrConfiguration(KeyAPIJWKSURL, "invalid URL %q", c.Auth.JWKSURL)
		}
		if c.Auth.Issuer == "" {
			return domain.ErrConfiguration(KeyAPIJWTIssuer, "required with api_jwks_url")
		}
	}
	if c.Spill.Probe && c.Spill.Bucket == "" {
		return domain.ErrConfiguration(KeySpillProbe, "requires spill_bucket")
	}
	return nil
}

// ParseHeaders parses comma-separated key=value pairs. A pair without exactly
// one '=' or with an empty key is rejected.
func ParseHeaders(s string) (map[string]string, error) {
	headers := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		kv := strings.Split(part, "=")
		if len(kv) != 2 || strings.TrimSpace(kv[0]) == "" {
			return nil, domain.ErrConfiguration(KeyIcebergRestHeaders, "bad header configuration: %q", part)
		}
		headers[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return headers, nil
}

// IsSensitive reports whether a configuration key names a secret value.
func IsSensitive(key string) bool {
	k := strings.ToLower(key)
	for _, marker := range []string{"credential", "token", "password", "secret", "authorization"} {
		if strings.Contains(k, marker) {
			return true
		}
	}
	return false
}

// RedactMap returns a copy of m with sensitive values replaced.
func RedactMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch {
		case IsSensitive(k):
			out[k] = Redacted
		case k == KeyDomainMapping:
			out[k] = redactMapping(v)
		default:
			out[k] = v
		}
	}
	return out
}

// RedactedOptions returns the raw options with sensitive values replaced,
// rendered as sorted key=value strings for logging.
func (c *Config) RedactedOptions() []string {
	redacted := RedactMap(c.Options)
	out := make([]string, 0, len(redacted))
	for k, v := range redacted {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// redactMapping strips passwords embedded in domain mapping endpoints.
func redactMapping(mapping string) string {
	parts := strings.Split(mapping, ",")
	for i, part := range parts {
		name, endpoint, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		u, err := url.Parse(strings.TrimSpace(endpoint))
		if err != nil || u.User == nil {
			continue
		}
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), Redacted)
		}
		parts[i] = name + "=" + u.String()
	}
	return strings.Join(parts, ",")
}

func parseBool(raw map[string]string, key string, defaultVal bool) (bool, error) {
	v := strings.ToLower(raw[key])
	switch v {
	case "":
		return defaultVal, nil
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, domain.ErrConfiguration(key, "expected a boolean, got %q", raw[key])
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
