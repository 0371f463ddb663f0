package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	// EnvPrefix is prepended to every client environment variable.
	EnvPrefix = "INTENTSCOUT_"

	// SandboxEnvPrefix is prepended to every sandbox environment variable.
	SandboxEnvPrefix = "SCOUT_SANDBOX_"

	DefaultBaseURL = "https://api.intentscout.ai/"
	DefaultTimeout = 30 * time.Second
)

// Config holds the client configuration.
// See .env.example for more documentation
type Config struct {
	BaseURL   string        `env:"API_BASE_URL" envDefault:"https://api.intentscout.ai/"`
	Timeout   time.Duration `env:"API_TIMEOUT" envDefault:"30s"`
	Token     string        `env:"API_TOKEN" envDefault:""`
	DebugLogs bool          `env:"DEBUG_LOGS" envDefault:"false"`

	// Auth provider (Supabase / GoTrue)
	SupabaseURL     string `env:"SUPABASE_URL" envDefault:""`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY" envDefault:""`
	RefreshToken    string `env:"REFRESH_TOKEN" envDefault:""`

	Log LogConfig
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// SandboxConfig configures the scout-sandbox backend emulator.
type SandboxConfig struct {
	ServerAddress string        `env:"SERVER_ADDRESS" envDefault:":8787"`
	DatabaseURL   string        `env:"DATABASE_URL" envDefault:""`
	JWTSecret     string        `env:"JWT_SECRET" envDefault:"sandbox-secret"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
	Version       string        `env:"VERSION" envDefault:"dev"`

	// Refresh token accepted by the token endpoint, and the user it signs in.
	DevRefreshToken string `env:"DEV_REFRESH_TOKEN" envDefault:"sandbox-refresh-token"`
	DevUserEmail    string `env:"DEV_USER_EMAIL" envDefault:"dev@intentscout.local"`

	// Simulated job behaviour
	PollsToComplete int           `env:"POLLS_TO_COMPLETE" envDefault:"3"`
	ResultCount     int           `env:"RESULT_COUNT" envDefault:"3"`
	FailSignals     string        `env:"FAIL_SIGNALS" envDefault:""`
	JobTTL          time.Duration `env:"JOB_TTL" envDefault:"1h"`

	Log LogConfig
}

// Load reads an optional .env file and parses client settings from the environment.
func Load() (*Config, error) {
	loadDotEnv()
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// LoadSandbox reads an optional .env file and parses sandbox settings from the environment.
func LoadSandbox() (*SandboxConfig, error) {
	loadDotEnv()
	var cfg SandboxConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: SandboxEnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse sandbox config: %w", err)
	}
	return &cfg, nil
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Error loading .env file: %v", err)
	}
}

// SlogLevel maps the configured level name onto a slog level. Unknown names fall back to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
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

// FailSignalSet returns the comma separated FailSignals value as a set.
func (c *SandboxConfig) FailSignalSet() map[string]bool {
	out := make(map[string]bool)
	for _, s := range strings.Split(c.FailSignals, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out[s] = true
		}
	}
	return out
}
