package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"autobump/internal/core"
)

// ServerConfig holds server-related settings.
type ServerConfig struct {
	Addr      string
	AuthToken string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// BarkConfig holds Bark notification settings.
type BarkConfig struct {
	URL     string
	Enabled bool
}

// Config holds all runtime configuration options for the daemon.
type Config struct {
	Server ServerConfig
	Log    LogConfig
	Bark   BarkConfig

	StateDir      string
	Mode          string
	UseUTC        bool
	ShutdownGrace time.Duration

	// Scheduling overrides layered onto core.DefaultSchedulingConfig.
	BumpHour        int
	MaxBumpsPerTask int
	WorkStartHour   int
	WorkEndHour     int
}

const (
	defaultAddr          = "0.0.0.0:7171"
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
	defaultMode          = "http"
	defaultShutdownGrace = 5 * time.Second
)

// getEnvString returns the environment variable value or default
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt returns the environment variable as int or default
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvBool returns the environment variable as bool or default
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		lower := strings.ToLower(val)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultVal
}

// getEnvDuration returns the environment variable as duration or default
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// Parse parses command line flags and environment variables into Config.
// Priority: CLI flags > Environment variables > .env file > defaults
func Parse() (*Config, error) {
	// Load .env file if exists (silent fail if not present)
	envFiles := []string{".env"}
	if configDir, err := os.UserConfigDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(configDir, "autobump", ".env"))
	}
	_ = godotenv.Load(envFiles...) // Ignore error - file is optional

	defaults := core.DefaultSchedulingConfig()

	cfg := &Config{
		Server: ServerConfig{
			Addr:      getEnvString("AUTOBUMP_ADDR", defaultAddr),
			AuthToken: getEnvString("AUTOBUMP_AUTH_TOKEN", ""),
		},
		Log: LogConfig{
			Level:  getEnvString("AUTOBUMP_LOG_LEVEL", defaultLogLevel),
			Format: getEnvString("AUTOBUMP_LOG_FORMAT", defaultLogFormat),
		},
		Bark: BarkConfig{
			URL:     getEnvString("AUTOBUMP_BARK_URL", ""),
			Enabled: getEnvBool("AUTOBUMP_BARK_ENABLED", false),
		},
		StateDir:        getEnvString("AUTOBUMP_STATE_DIR", ""),
		Mode:            getEnvString("AUTOBUMP_MODE", defaultMode),
		UseUTC:          getEnvBool("AUTOBUMP_USE_UTC", false),
		ShutdownGrace:   getEnvDuration("AUTOBUMP_SHUTDOWN_GRACE", defaultShutdownGrace),
		BumpHour:        getEnvInt("AUTOBUMP_BUMP_HOUR", defaults.BumpHour),
		MaxBumpsPerTask: getEnvInt("AUTOBUMP_MAX_BUMPS", defaults.MaxBumpsPerTask),
		WorkStartHour:   getEnvInt("AUTOBUMP_WORK_START", defaults.WorkingHours.Start),
		WorkEndHour:     getEnvInt("AUTOBUMP_WORK_END", defaults.WorkingHours.End),
	}

	var addr, logLevel, logFormat, stateDir, mode string
	var useUTC bool
	var shutdownGrace time.Duration
	var bumpHour, maxBumps int

	flag.StringVar(&addr, "addr", "", "HTTP listen address (overrides env)")
	flag.StringVar(&stateDir, "state-dir", "", "Directory to store the database")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&logFormat, "log-format", "", "Log format (text or json)")
	flag.StringVar(&mode, "mode", "", "Run mode: http, mcp or both")
	flag.BoolVar(&useUTC, "use-utc", false, "Use UTC for batch scheduling instead of system local time")
	flag.DurationVar(&shutdownGrace, "shutdown-grace", 0, "Grace period when shutting down")
	flag.IntVar(&bumpHour, "bump-hour", -1, "Hour of day (0-23) the nightly bump batch runs")
	flag.IntVar(&maxBumps, "max-bumps", 0, "Maximum automatic bumps per task")

	flag.Parse()

	if addr != "" {
		cfg.Server.Addr = addr
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	if mode != "" {
		cfg.Mode = mode
	}
	if bumpHour >= 0 {
		cfg.BumpHour = bumpHour
	}
	if maxBumps > 0 {
		cfg.MaxBumpsPerTask = maxBumps
	}
	// For bool flags, check if explicitly set via flag.Visit
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "use-utc":
			cfg.UseUTC = useUTC
		case "shutdown-grace":
			cfg.ShutdownGrace = shutdownGrace
		}
	})

	if cfg.StateDir == "" {
		dir, err := defaultStateDir()
		if err != nil {
			return nil, fmt.Errorf("resolve default state dir: %w", err)
		}
		cfg.StateDir = dir
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Scheduling builds the engine configuration from the defaults with the
// daemon-level overrides applied.
func (c *Config) Scheduling() core.SchedulingConfig {
	sched := core.DefaultSchedulingConfig()
	sched.BumpHour = c.BumpHour
	sched.MaxBumpsPerTask = c.MaxBumpsPerTask
	sched.WorkingHours.Start = c.WorkStartHour
	sched.WorkingHours.End = c.WorkEndHour
	return sched
}

func (c *Config) validate() error {
	if c.BumpHour < 0 || c.BumpHour > 23 {
		return fmt.Errorf("bump hour must be 0-23, got %d", c.BumpHour)
	}
	if c.MaxBumpsPerTask < 1 {
		return fmt.Errorf("max bumps per task must be positive, got %d", c.MaxBumpsPerTask)
	}
	if c.WorkStartHour < 0 || c.WorkEndHour > 24 || c.WorkStartHour >= c.WorkEndHour {
		return fmt.Errorf("invalid working hours %d-%d", c.WorkStartHour, c.WorkEndHour)
	}
	switch c.Mode {
	case "http", "mcp", "both":
	default:
		return fmt.Errorf("invalid mode %q: must be http, mcp or both", c.Mode)
	}
	return nil
}

func defaultStateDir() (string, error) {
	baseDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(baseDir, "autobump")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}
