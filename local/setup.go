package local

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Charnelx/thread-local/internal/log"
)

const defaultSweepInterval = time.Minute

var (
	setupOnce     sync.Once
	setupErr      error
	sweepInterval atomic.Int64
)

func init() {
	sweepInterval.Store(int64(defaultSweepInterval))
}

// Config holds process-wide settings for the library.
type Config struct {
	// LogLevel sets the logging level (DEBUG, INFO, WARN, ERROR)
	LogLevel string
	// LogFormat sets the logging format (text, json)
	LogFormat string
	// Logger provides a custom slog instance that overrides LogLevel and LogFormat
	Logger *slog.Logger
	// Debug enables debug logging (overrides LogLevel)
	Debug bool
	// SweepInterval is the default interval of StartReaper
	SweepInterval time.Duration
}

// Setup applies cfg once per process. Empty fields fall back to the
// THREADLOCAL_* environment variables. Later calls return the first result.
func Setup(cfg *Config) error {
	setupOnce.Do(func() {
		setupErr = doSetup(populateConfigFromEnv(cfg))
	})
	return setupErr
}

func doSetup(cfg *Config) error {
	logLevel := cfg.LogLevel
	if logLevel == "" {
		logLevel = "WARN"
	}
	if cfg.Debug {
		logLevel = "DEBUG"
	}
	if err := log.SetLogLevel(logLevel); err != nil {
		return err
	}

	if cfg.LogFormat != "" {
		if err := log.SetFormat(cfg.LogFormat); err != nil {
			return err
		}
	}

	if cfg.Logger != nil {
		log.SetLogger(cfg.Logger)
	}

	if cfg.SweepInterval > 0 {
		sweepInterval.Store(int64(cfg.SweepInterval))
	}

	log.Info("threadlocal configured",
		slog.String("level", logLevel),
		slog.Duration("sweep_interval", SweepInterval()))
	return nil
}

// populateConfigFromEnv fills zero-value config fields from environment variables.
// Returns a new Config without modifying the input.
func populateConfigFromEnv(cfg *Config) *Config {
	result := Config{}
	if cfg != nil {
		result = *cfg
	}

	if result.LogLevel == "" {
		result.LogLevel = os.Getenv("THREADLOCAL_LOG_LEVEL")
	}
	if result.LogFormat == "" {
		result.LogFormat = os.Getenv("THREADLOCAL_LOG_FORMAT")
	}
	if !result.Debug {
		result.Debug = getEnvBool("THREADLOCAL_DEBUG")
	}
	if result.SweepInterval == 0 {
		if d, err := time.ParseDuration(os.Getenv("THREADLOCAL_SWEEP_INTERVAL")); err == nil {
			result.SweepInterval = d
		}
	}

	return &result
}

func getEnvBool(name string) bool {
	v := strings.ToLower(os.Getenv(name))
	return v == "true" || v == "1"
}

// SweepInterval returns the default interval used by StartReaper.
func SweepInterval() time.Duration {
	return time.Duration(sweepInterval.Load())
}
