package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sptgo/gameserver/internal/errors"
	"github.com/sptgo/gameserver/internal/jsonutil"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "http.json"

	// DefaultIP is the default bind address.
	DefaultIP = "127.0.0.1"

	// DefaultPort is the default listening port.
	DefaultPort = 6969

	// DefaultMaxBodySize bounds request bodies before decompression.
	DefaultMaxBodySize = 32 << 20

	// DefaultMetricsPath is where Prometheus metrics are served.
	DefaultMetricsPath = "/metrics"
)

// Activity store backends.
const (
	ActivityMemory = "memory"
	ActivityRedis  = "redis"
	ActivitySQLite = "sqlite"
)

// File store backends.
const (
	FilesDisk = "disk"
	FilesS3   = "s3"
)

// Config represents the complete http.json configuration.
type Config struct {
	// IP is the address to bind to.
	IP string `json:"ip,omitempty"`

	// Port is the listening port.
	Port int `json:"port,omitempty"`

	// TLS enables HTTPS when both files are set.
	TLS TLSConfig `json:"tls,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"logLevel,omitempty"`

	// LogFormat is text or json.
	LogFormat string `json:"logFormat,omitempty"`

	// Release disables the REQUEST=/RESPONSE= log records.
	Release bool `json:"release,omitempty"`

	// MaxBodySize is the largest accepted request body in bytes.
	MaxBodySize int64 `json:"maxBodySize,omitempty"`

	// MetricsPath is where metrics are served. "-" disables the endpoint.
	MetricsPath string `json:"metricsPath,omitempty"`

	// Notifier configures the notification channel.
	Notifier NotifierConfig `json:"notifier,omitempty"`

	// Activity configures where session activity is stored.
	Activity ActivityConfig `json:"activity,omitempty"`

	// Files configures where image and bundle files are read from.
	Files FilesConfig `json:"files,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// TLSConfig contains certificate settings.
type TLSConfig struct {
	CertFile string `json:"certFile,omitempty"`
	KeyFile  string `json:"keyFile,omitempty"`
}

// NotifierConfig contains notifier WebSocket and long-poll settings.
type NotifierConfig struct {
	// KeepAlive is the ping interval on notifier sockets (e.g., "90s").
	KeepAlive string `json:"keepalive,omitempty"`

	// PollTimeout bounds one long-poll request (e.g., "30s").
	PollTimeout string `json:"pollTimeout,omitempty"`

	// MessagesPerSecond limits inbound socket messages per connection.
	MessagesPerSecond float64 `json:"messagesPerSecond,omitempty"`

	// Burst is the inbound message burst allowance.
	Burst int `json:"burst,omitempty"`

	// QueueSize bounds undelivered notifications per session.
	QueueSize int `json:"queueSize,omitempty"`
}

// ActivityConfig contains session activity store settings.
type ActivityConfig struct {
	// Backend is memory, redis or sqlite.
	Backend string `json:"backend,omitempty"`

	// RedisAddr is the redis host:port.
	RedisAddr string `json:"redisAddr,omitempty"`

	// RedisKey is the sorted-set key holding activity.
	RedisKey string `json:"redisKey,omitempty"`

	// SQLitePath is the sqlite database file.
	SQLitePath string `json:"sqlitePath,omitempty"`

	// TTL is how long an idle session is kept (e.g., "24h").
	TTL string `json:"ttl,omitempty"`
}

// FilesConfig contains file store settings.
type FilesConfig struct {
	// Backend is disk or s3.
	Backend string `json:"backend,omitempty"`

	// Dir is the root directory for the disk backend.
	Dir string `json:"dir,omitempty"`

	Bucket   string `json:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
	Region   string `json:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		IP:          DefaultIP,
		Port:        DefaultPort,
		LogLevel:    "info",
		LogFormat:   "text",
		MaxBodySize: DefaultMaxBodySize,
		MetricsPath: DefaultMetricsPath,
		Notifier: NotifierConfig{
			KeepAlive:         "90s",
			PollTimeout:       "30s",
			MessagesPerSecond: 10,
			Burst:             20,
			QueueSize:         256,
		},
		Activity: ActivityConfig{
			Backend:    ActivityMemory,
			RedisKey:   "spt:activity",
			SQLitePath: "activity.db",
			TTL:        "24h",
		},
		Files: FilesConfig{
			Backend: FilesDisk,
			Dir:     "files",
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for http.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No " + ConfigFileName + " found at " + path).
				WithSuggestion("Run 'sptserver serve' without --config to use defaults, or create the file").
				Wrap(err)
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := New()
	if err := jsonutil.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E102").
			WithDetail("Failed to parse " + path + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON").
			Wrap(err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := jsonutil.Marshal(c)
	if err != nil {
		return errors.New("E104").Wrap(err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return errors.New("E104").Wrap(err)
	}
	out.WriteByte('\n')

	if err := os.WriteFile(path, out.Bytes(), 0644); err != nil {
		return errors.New("E104").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for fields the file zeroed.
func (c *Config) applyDefaults() {
	d := New()

	if c.IP == "" {
		c.IP = d.IP
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.MaxBodySize == 0 {
		c.MaxBodySize = d.MaxBodySize
	}
	if c.MetricsPath == "" {
		c.MetricsPath = d.MetricsPath
	}

	// Notifier
	if c.Notifier.KeepAlive == "" {
		c.Notifier.KeepAlive = d.Notifier.KeepAlive
	}
	if c.Notifier.PollTimeout == "" {
		c.Notifier.PollTimeout = d.Notifier.PollTimeout
	}
	if c.Notifier.MessagesPerSecond == 0 {
		c.Notifier.MessagesPerSecond = d.Notifier.MessagesPerSecond
	}
	if c.Notifier.Burst == 0 {
		c.Notifier.Burst = d.Notifier.Burst
	}
	if c.Notifier.QueueSize == 0 {
		c.Notifier.QueueSize = d.Notifier.QueueSize
	}

	// Activity
	c.Activity.Backend = strings.ToLower(c.Activity.Backend)
	if c.Activity.Backend == "" {
		c.Activity.Backend = d.Activity.Backend
	}
	if c.Activity.RedisKey == "" {
		c.Activity.RedisKey = d.Activity.RedisKey
	}
	if c.Activity.SQLitePath == "" {
		c.Activity.SQLitePath = d.Activity.SQLitePath
	}
	if c.Activity.TTL == "" {
		c.Activity.TTL = d.Activity.TTL
	}

	// Files
	c.Files.Backend = strings.ToLower(c.Files.Backend)
	if c.Files.Backend == "" {
		c.Files.Backend = d.Files.Backend
	}
	if c.Files.Dir == "" {
		c.Files.Dir = d.Files.Dir
	}
}

// Validate checks if the configuration is valid. The first problem found is
// returned as an E103 error naming the field.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return invalid("port", "Port must be between 1 and 65535, got "+strconv.Itoa(c.Port))
	}
	if net.ParseIP(c.IP) == nil {
		return invalid("ip", "IP must be a literal address, got "+strconv.Quote(c.IP))
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return invalid("tls", "Both certFile and keyFile must be set to enable TLS")
	}
	if _, err := c.SlogLevel(); err != nil {
		return invalid("logLevel", "Unknown log level "+strconv.Quote(c.LogLevel)).
			WithSuggestion("Use debug, info, warn or error")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return invalid("logFormat", "Unknown log format "+strconv.Quote(c.LogFormat)).
			WithSuggestion("Use text or json")
	}
	if c.MaxBodySize <= 0 {
		return invalid("maxBodySize", "maxBodySize must be positive")
	}
	if c.MetricsPath != "-" && !strings.HasPrefix(c.MetricsPath, "/") {
		return invalid("metricsPath", "metricsPath must start with \"/\" or be \"-\"")
	}

	for _, f := range []struct{ field, value string }{
		{"notifier.keepalive", c.Notifier.KeepAlive},
		{"notifier.pollTimeout", c.Notifier.PollTimeout},
		{"activity.ttl", c.Activity.TTL},
	} {
		if d, err := time.ParseDuration(f.value); err != nil || d <= 0 {
			return invalid(f.field, "Expected a positive duration, got "+strconv.Quote(f.value)).
				WithExample(`"30s", "5m", "24h"`)
		}
	}
	if c.Notifier.MessagesPerSecond < 0 || c.Notifier.Burst < 0 || c.Notifier.QueueSize < 0 {
		return invalid("notifier", "Notifier limits must not be negative")
	}

	switch c.Activity.Backend {
	case ActivityMemory, ActivitySQLite:
	case ActivityRedis:
		if c.Activity.RedisAddr == "" {
			return invalid("activity.redisAddr", "The redis backend needs redisAddr").
				WithExample(`"activity": {"backend": "redis", "redisAddr": "127.0.0.1:6379"}`)
		}
	default:
		return invalid("activity.backend", "Unknown activity backend "+strconv.Quote(c.Activity.Backend)).
			WithSuggestion("Use memory, redis or sqlite")
	}

	switch c.Files.Backend {
	case FilesDisk:
	case FilesS3:
		if c.Files.Bucket == "" {
			return invalid("files.bucket", "The s3 backend needs a bucket").
				WithExample(`"files": {"backend": "s3", "bucket": "spt-files", "region": "eu-west-1"}`)
		}
	default:
		return invalid("files.backend", "Unknown files backend "+strconv.Quote(c.Files.Backend)).
			WithSuggestion("Use disk or s3")
	}
	return nil
}

func invalid(field, detail string) *errors.Error {
	return errors.New("E103").WithField(field).WithDetail(detail)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []string {
	var warnings []string
	if !c.Release {
		warnings = append(warnings, "release is false: every request and response is logged")
	}
	if c.Activity.Backend == ActivityMemory {
		warnings = append(warnings, "activity backend is memory: session activity is lost on restart")
	}
	if c.Files.Backend == FilesDisk {
		if _, err := os.Stat(c.FilesPath()); err != nil {
			warnings = append(warnings, "files directory "+c.FilesPath()+" is not readable")
		}
	}
	return warnings
}

// Address returns the host:port to listen on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.LogLevel))
	return level, err
}

// KeepAlive returns the notifier ping interval.
func (c *Config) KeepAlive() time.Duration {
	return mustDuration(c.Notifier.KeepAlive)
}

// PollTimeout returns the long-poll wait bound.
func (c *Config) PollTimeout() time.Duration {
	return mustDuration(c.Notifier.PollTimeout)
}

// ActivityTTL returns how long idle sessions are kept.
func (c *Config) ActivityTTL() time.Duration {
	return mustDuration(c.Activity.TTL)
}

// mustDuration parses a validated duration; invalid input yields zero so the
// consumer falls back to its own default.
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// FilesPath returns the absolute path to the disk files directory.
func (c *Config) FilesPath() string {
	return c.resolve(c.Files.Dir)
}

// SQLitePath returns the path to the sqlite activity database.
func (c *Config) SQLitePath() string {
	return c.resolve(c.Activity.SQLitePath)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}
