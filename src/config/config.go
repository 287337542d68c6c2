package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/tsae/src/common"
	"github.com/mosaicnetworks/tsae/src/proxy"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultSQLiteFile is the default name of the SQLite database file
	DefaultSQLiteFile = "tsae.db"
)

// Store types.
const (
	InmemStore  = "inmem"
	BadgerStore = "badger"
	SQLiteStore = "sqlite"
)

// Default configuration values.
const (
	DefaultLogLevel                 = "debug"
	DefaultBindAddr                 = "127.0.0.1:1337"
	DefaultServiceAddr              = "127.0.0.1:8000"
	DefaultHeartbeatTimeout         = 1000 * time.Millisecond
	DefaultTCPTimeout               = 1000 * time.Millisecond
	DefaultSessionTimeout           = 10000 * time.Millisecond
	DefaultNumPartners              = 1
	DefaultStore                    = InmemStore
	DefaultPurgeLog                 = true
	DefaultMaxSerializationFailures = 10
)

// Config contains all the configuration properties of a TSAE node.
type Config struct {
	// DataDir is the top-level directory containing the node's configuration
	// and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, if set, is a file to which every log entry is also written.
	LogFile string `mapstructure:"log-file"`

	// BindAddr is the local address:port where this node serves anti-entropy
	// sessions. In some cases, there may be a routable address that cannot be
	// bound. Use AdvertiseAddr to advertise a different address to support
	// this.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes. It is also the address by which the node finds itself in
	// peers.json.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// HeartbeatTimeout is the interval between two rounds of originated
	// sessions. Every round is delayed by a random jitter of up to half the
	// interval.
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat"`

	// TCPTimeout is the timeout of connection establishment, and of every
	// message read or write within a session.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// SessionTimeout bounds the total duration of a session.
	SessionTimeout time.Duration `mapstructure:"session-timeout"`

	// NumPartners is the number of random partners a node starts a session
	// with on every heartbeat.
	NumPartners int `mapstructure:"partners"`

	// Store selects the store backend: inmem, badger or sqlite.
	Store string `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// Bootstrap determines whether or not to load the node's state from an
	// existing database. Only relevant with a persistent store.
	Bootstrap bool `mapstructure:"bootstrap"`

	// PurgeLog enables purging, after every session, the operations that all
	// participants have acknowledged.
	PurgeLog bool `mapstructure:"purge"`

	// MaxSerializationFailures is the number of consecutive sessions failing
	// to decode a peer's messages after which the node suspends itself. 0
	// disables suspension.
	MaxSerializationFailures int `mapstructure:"max-serialization-failures"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// Proxy is the application proxy that enables the node to communicate with
	// the application.
	Proxy proxy.AppProxy

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:                  DefaultDataDir(),
		LogLevel:                 DefaultLogLevel,
		BindAddr:                 DefaultBindAddr,
		ServiceAddr:              DefaultServiceAddr,
		HeartbeatTimeout:         DefaultHeartbeatTimeout,
		TCPTimeout:               DefaultTCPTimeout,
		SessionTimeout:           DefaultSessionTimeout,
		NumPartners:              DefaultNumPartners,
		Store:                    DefaultStore,
		DatabaseDir:              DefaultDatabaseDir(),
		PurgeLog:                 DefaultPurgeLog,
		MaxSerializationFailures: DefaultMaxSerializationFailures,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the database directory
// if it is currently set to the default value. If the database directory is
// not currently the default, it means the user has explicitely set it to
// something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// SQLiteFile returns the full path of the SQLite database file.
func (c *Config) SQLiteFile() string {
	return filepath.Join(c.DatabaseDir, DefaultSQLiteFile)
}

// Logger returns a formatted logrus Entry, with prefix set to "tsae".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				c.LogFile,
				&logrus.JSONFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "tsae")
}

// DefaultDatabaseDir returns the default path for the database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level TSAE config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".TSAE")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "TSAE")
		} else {
			return filepath.Join(home, ".tsae")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
