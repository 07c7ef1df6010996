// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/tlchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete tlchat configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
	Gateway GatewayConfig `toml:"gateway"`
	UI      UIConfig      `toml:"ui"`
}

// APIConfig locates the answer service.
type APIConfig struct {
	// URL is the base the client appends /chat and /sessions/{id} to.
	URL string `toml:"url"`
}

// StorageConfig selects the session store.
type StorageConfig struct {
	// Backend is "file", "sqlite" or "memory".
	Backend string `toml:"backend"`
	// DataDir holds session records, drafts and the TUI log.
	DataDir string `toml:"data_dir"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level string `toml:"level"`
	// Dev switches to the human-readable console writer.
	Dev bool `toml:"dev"`
	// File receives logs while the TUI owns the terminal. Empty means
	// tlchat.log inside the data directory.
	File string `toml:"file"`
}

// GatewayConfig configures `tlchat gateway`.
type GatewayConfig struct {
	Listen         string   `toml:"listen"`
	UpstreamURL    string   `toml:"upstream_url"`
	AllowedOrigins []string `toml:"allowed_origins"`
	// Environment is "development" or "production"; production logs
	// sanitized errors only.
	Environment string  `toml:"environment"`
	RatePerSec  float64 `toml:"rate_per_sec"`
	Burst       int     `toml:"burst"`
	ServiceName string  `toml:"service_name"`
}

// UIConfig holds terminal front-end preferences.
type UIConfig struct {
	// Theme is "auto", "dark" or "light" and picks the markdown style.
	Theme string `toml:"theme"`
	// ShowTimestamps prints message times in the transcript.
	ShowTimestamps bool `toml:"show_timestamps"`
	// SidebarWidth is the session list width in columns.
	SidebarWidth int `toml:"sidebar_width"`
}

// Recognised enumerations.
var (
	validBackends     = []string{"file", "sqlite", "memory"}
	validLogLevels    = []string{"debug", "info", "warn", "error"}
	validEnvironments = []string{"development", "production"}
	validThemes       = []string{"auto", "dark", "light"}
)

// DefaultAllowedOrigins are the browser origins accepted by the gateway when
// none are configured.
var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:3001",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:3001",
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	dataDir := ""
	if dir, err := ConfigDir(); err == nil {
		dataDir = filepath.Join(dir, "data")
	}

	return &Config{
		API: APIConfig{
			URL: "http://localhost:3001/api",
		},
		Storage: StorageConfig{
			Backend: "file",
			DataDir: dataDir,
		},
		Log: LogConfig{
			Level: "info",
		},
		Gateway: GatewayConfig{
			Listen:         "127.0.0.1:3001",
			UpstreamURL:    "http://localhost:8000",
			AllowedOrigins: append([]string(nil), DefaultAllowedOrigins...),
			Environment:    "development",
			RatePerSec:     20,
			Burst:          50,
			ServiceName:    "tlchat gateway",
		},
		UI: UIConfig{
			Theme:        "auto",
			SidebarWidth: 28,
		},
	}
}

// SetDefaults fills empty fields from Default.
func (c *Config) SetDefaults() {
	d := Default()

	if c.API.URL == "" {
		c.API.URL = d.API.URL
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = d.Storage.DataDir
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Gateway.Listen == "" {
		c.Gateway.Listen = d.Gateway.Listen
	}
	if c.Gateway.UpstreamURL == "" {
		c.Gateway.UpstreamURL = d.Gateway.UpstreamURL
	}
	if len(c.Gateway.AllowedOrigins) == 0 {
		c.Gateway.AllowedOrigins = d.Gateway.AllowedOrigins
	}
	if c.Gateway.Environment == "" {
		c.Gateway.Environment = d.Gateway.Environment
	}
	if c.Gateway.RatePerSec == 0 {
		c.Gateway.RatePerSec = d.Gateway.RatePerSec
	}
	if c.Gateway.Burst == 0 {
		c.Gateway.Burst = d.Gateway.Burst
	}
	if c.Gateway.ServiceName == "" {
		c.Gateway.ServiceName = d.Gateway.ServiceName
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.SidebarWidth == 0 {
		c.UI.SidebarWidth = d.UI.SidebarWidth
	}
}

// LogFile returns the configured log file, defaulting into the data dir.
func (c *Config) LogFile() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(c.Storage.DataDir, "tlchat.log")
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the tlchat configuration directory.
func ConfigDir() (string, error) {
	if dir := os.Getenv("TLCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".tlchat"), nil
}

// ConfigPathTOML returns the default config file path.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir creates the configuration directory with 0700 permissions.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the default config file if present, then applies environment
// overrides, defaults and validation.
func Load() (*Config, error) {
	path, err := ConfigPathTOML()
	if err != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		return cfg, cfg.Validate()
	}
	return LoadFromPath(path)
}

// LoadFromPath is Load with an explicit file. A missing file is not an
// error; a malformed one is.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config: %w", err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes path over cfg. Unknown keys are rejected so typos do not
// pass silently.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default config file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# tlchat configuration file\n")
	buf.WriteString("# Generated by tlchat - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0o600, 0o700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and returns ValidateErrors on failure.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if err := validateHTTPURL(c.API.URL); err != nil {
		errs = append(errs, ValidationError{"api.url", err.Error()})
	}

	if !oneOf(c.Storage.Backend, validBackends) {
		errs = append(errs, ValidationError{"storage.backend", fmt.Sprintf("must be one of %v", validBackends)})
	}
	if c.Storage.Backend != "memory" && c.Storage.DataDir == "" {
		errs = append(errs, ValidationError{"storage.data_dir", "required for persistent backends"})
	}

	if !oneOf(strings.ToLower(c.Log.Level), validLogLevels) {
		errs = append(errs, ValidationError{"log.level", fmt.Sprintf("must be one of %v", validLogLevels)})
	}

	if _, _, err := net.SplitHostPort(c.Gateway.Listen); err != nil {
		errs = append(errs, ValidationError{"gateway.listen", "must be host:port"})
	}
	if err := validateHTTPURL(c.Gateway.UpstreamURL); err != nil {
		errs = append(errs, ValidationError{"gateway.upstream_url", err.Error()})
	}
	for _, origin := range c.Gateway.AllowedOrigins {
		if err := validateHTTPURL(origin); err != nil {
			errs = append(errs, ValidationError{"gateway.allowed_origins", fmt.Sprintf("%q: %v", origin, err)})
		}
	}
	if !oneOf(c.Gateway.Environment, validEnvironments) {
		errs = append(errs, ValidationError{"gateway.environment", fmt.Sprintf("must be one of %v", validEnvironments)})
	}
	if c.Gateway.RatePerSec < 0 {
		errs = append(errs, ValidationError{"gateway.rate_per_sec", "must not be negative"})
	}
	if c.Gateway.Burst < 0 {
		errs = append(errs, ValidationError{"gateway.burst", "must not be negative"})
	}

	if !oneOf(c.UI.Theme, validThemes) {
		errs = append(errs, ValidationError{"ui.theme", fmt.Sprintf("must be one of %v", validThemes)})
	}
	if c.UI.SidebarWidth < 0 || c.UI.SidebarWidth > 80 {
		errs = append(errs, ValidationError{"ui.sidebar_width", "must be between 0 and 80"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - TLCHAT_API_URL: api.url
//   - TLCHAT_STORE: storage.backend
//   - TLCHAT_DATA_DIR: storage.data_dir
//   - TLCHAT_LOG_LEVEL: log.level
//   - TLCHAT_LOG_DEV: "1" or "true" for console logging
//   - TLCHAT_GATEWAY_LISTEN: gateway.listen
//   - TLCHAT_UPSTREAM_URL, PYTHON_API_URL: gateway.upstream_url
//   - TLCHAT_ALLOWED_ORIGINS, ALLOWED_ORIGINS: comma-separated origins
//   - TLCHAT_ENV, NODE_ENV: gateway.environment
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("TLCHAT_API_URL"); v != "" {
		c.API.URL = v
	}
	if v := os.Getenv("TLCHAT_STORE"); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("TLCHAT_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("TLCHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("TLCHAT_LOG_DEV"); v != "" {
		c.Log.Dev = parseBool(v)
	}
	if v := os.Getenv("TLCHAT_GATEWAY_LISTEN"); v != "" {
		c.Gateway.Listen = v
	}

	if v := firstEnv("TLCHAT_UPSTREAM_URL", "PYTHON_API_URL"); v != "" {
		c.Gateway.UpstreamURL = v
	}
	if v := firstEnv("TLCHAT_ALLOWED_ORIGINS", "ALLOWED_ORIGINS"); v != "" {
		c.Gateway.AllowedOrigins = SplitOrigins(v)
	}
	if v := firstEnv("TLCHAT_ENV", "NODE_ENV"); v != "" {
		c.Gateway.Environment = strings.ToLower(v)
	}
}

// SplitOrigins parses a comma-separated origin list, trimming blanks.
func SplitOrigins(v string) []string {
	var out []string
	for _, o := range strings.Split(v, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true" || v == "yes"
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value by dotted TOML key, e.g. "gateway.listen".
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value by dotted TOML key. String input is converted to the
// field's type; slices take a comma-separated list.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	if key == "" || len(parts) == 0 {
		return reflect.Value{}, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i], "."))
		}
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return v, nil
}

// fieldByTag finds the struct field whose toml tag is name.
func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if strings.EqualFold(tag, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				field.Set(reflect.ValueOf(SplitOrigins(strVal)))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every settable key in dotted form.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		prefix := section.Tag.Get("toml")
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, prefix+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Gateway.AllowedOrigins = append([]string(nil), c.Gateway.AllowedOrigins...)
	return &clone
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return buf.String()
}
