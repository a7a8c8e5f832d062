package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL            = "http://127.0.0.1:7444"
	DefaultDBFileName        = ".replicas.db"
	DefaultLogLevel          = "debug"
	DefaultRemoteHTTPTimeout = 5 * time.Minute
	DefaultRemoteUserAgent   = "replicas-verifier"
	DefaultVerifyConcurrency = 4

	configFileName           = ".replicas.toml"
	configDirEnvKey          = "REPLICAS_CONFIG_DIR"
	trustProjectConfigEnvKey = "REPLICAS_TRUST_PROJECT_CONFIG"
	fileStorePathEnvKey      = "REPLICAS_FILE_STORE_PATH"
)

// ProviderKind selects how a download provider's bytes are fetched.
type ProviderKind string

const (
	ProviderKindHTTP ProviderKind = "http"
	ProviderKindS3   ProviderKind = "s3"
)

// DownloadProvider registers a non-local storage provider. Replicas whose
// protocol matches Protocol are never treated as local.
type DownloadProvider struct {
	Protocol  string       `toml:"protocol"`
	Name      string       `toml:"name"`
	Kind      ProviderKind `toml:"kind"`
	URLPrefix string       `toml:"url_prefix"`
	Bucket    string       `toml:"bucket"`
	Region    string       `toml:"region"`
	Endpoint  string       `toml:"endpoint"`
}

// RemoteConfig tunes remote openers.
type RemoteConfig struct {
	HTTPTimeout string `toml:"http_timeout"`
	UserAgent   string `toml:"user_agent"`
}

// VerifyConfig tunes batch verification.
type VerifyConfig struct {
	Concurrency int `toml:"concurrency"`
}

// Config defines runtime configuration for the replica service.
type Config struct {
	APIURL                   string             `toml:"api_url"`
	DBPath                   string             `toml:"db_path"`
	LogLevel                 string             `toml:"log_level"`
	FileStorePath            string             `toml:"file_store_path"`
	Remote                   RemoteConfig       `toml:"remote"`
	Verify                   VerifyConfig       `toml:"verify"`
	DownloadProviders        []DownloadProvider `toml:"download_providers"`
	TrustedProjectConfigPath string             `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		DBPath:   "",
		LogLevel: DefaultLogLevel,
		Remote: RemoteConfig{
			HTTPTimeout: DefaultRemoteHTTPTimeout.String(),
			UserAgent:   DefaultRemoteUserAgent,
		},
		Verify: VerifyConfig{Concurrency: DefaultVerifyConcurrency},
	}
}

// FileStoreRoot returns the configured local storage root.
func (c *Config) FileStoreRoot() (string, bool) {
	if c == nil {
		return "", false
	}
	root := strings.TrimSpace(c.FileStorePath)
	if root == "" {
		return "", false
	}
	return root, true
}

// ProviderProtocols lists the protocol identifiers of registered download providers.
func (c *Config) ProviderProtocols() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.DownloadProviders))
	for _, p := range c.DownloadProviders {
		protocol := strings.TrimSpace(p.Protocol)
		if protocol == "" {
			continue
		}
		out = append(out, protocol)
	}
	return out
}

// HTTPTimeout parses remote.http_timeout, falling back to the default.
func (c *Config) HTTPTimeout() time.Duration {
	if c == nil {
		return DefaultRemoteHTTPTimeout
	}
	return parseDuration(c.Remote.HTTPTimeout, DefaultRemoteHTTPTimeout)
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

// download_providers is an array of tables and is edited in the file directly.
var allowedKeys = []string{
	"api_url",
	"db_path",
	"log_level",
	"file_store_path",
	"remote.http_timeout",
	"remote.user_agent",
	"verify.concurrency",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "file_store_path":
		return c.FileStorePath, nil
	case "remote.http_timeout":
		return c.Remote.HTTPTimeout, nil
	case "remote.user_agent":
		return c.Remote.UserAgent, nil
	case "verify.concurrency":
		return strconv.Itoa(c.Verify.Concurrency), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}

	if apiURL := os.Getenv("REPLICAS_API_URL"); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dbPath := os.Getenv("REPLICAS_DB"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if root := strings.TrimSpace(os.Getenv(fileStorePathEnvKey)); root != "" {
		cfg.FileStorePath = root
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "verify.concurrency":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "remote.http_timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return nil, fmt.Errorf("%s must be a duration like 30s or 5m", key)
		}
		return value, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if strings.TrimSpace(c.Remote.UserAgent) == "" {
		c.Remote.UserAgent = DefaultRemoteUserAgent
	}
	if c.Verify.Concurrency <= 0 {
		c.Verify.Concurrency = DefaultVerifyConcurrency
	}
	if root := strings.TrimSpace(c.FileStorePath); root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("resolve file_store_path: %w", err)
		}
		c.FileStorePath = abs
	}
	return normalizeProviders(c.DownloadProviders)
}

func normalizeProviders(providers []DownloadProvider) error {
	seen := map[string]struct{}{}
	for i := range providers {
		p := &providers[i]
		p.Protocol = strings.ToLower(strings.TrimSpace(p.Protocol))
		if p.Protocol == "" {
			return fmt.Errorf("download_providers[%d]: protocol is required", i)
		}
		if _, ok := seen[p.Protocol]; ok {
			return fmt.Errorf("download_providers[%d]: duplicate protocol %q", i, p.Protocol)
		}
		seen[p.Protocol] = struct{}{}
		if p.Kind == "" {
			p.Kind = ProviderKindHTTP
		}
		switch p.Kind {
		case ProviderKindHTTP:
		case ProviderKindS3:
			if strings.TrimSpace(p.Bucket) == "" || strings.TrimSpace(p.URLPrefix) == "" {
				return fmt.Errorf("download_providers[%d]: s3 providers need bucket and url_prefix", i)
			}
		default:
			return fmt.Errorf("download_providers[%d]: unknown kind %q", i, p.Kind)
		}
	}
	sort.SliceStable(providers, func(i, j int) bool {
		return len(providers[i].URLPrefix) > len(providers[j].URLPrefix)
	})
	return nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
