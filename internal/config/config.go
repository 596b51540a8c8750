package config

import (
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

type ServerConfig struct {
	Scheme string `koanf:"scheme" default:"http"`
	Port   int    `koanf:"port" default:"8082"`
	Host   string `koanf:"host" default:"localhost"`

	ReadTimeout     time.Duration `koanf:"read_timeout" default:"5s"`
	WriteTimeout    time.Duration `koanf:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" default:"30s"`

	AllowOrigins []string `koanf:"alloworigins" default:"[]"`
	HealthCheck  bool     `koanf:"health_check" default:"true"`
}

func (s *ServerConfig) GetServerURL() string {
	return s.Scheme + "://" + s.Host + ":" + strconv.Itoa(s.Port)
}

// StoreConfig configures the badger store holding the current operation record.
type StoreConfig struct {
	BadgerPath string `koanf:"badger_path" default:"./data/state"`
	InMemory   bool   `koanf:"in_memory" default:"false"`
	UseBloom   bool   `koanf:"use_bloom" default:"true"`
}

// DatabaseConfig configures the sqlite operation history.
type DatabaseConfig struct {
	Path     string `koanf:"path" default:"./data/eksiblock.db"`
	InMemory bool   `koanf:"in_memory" default:"false"`
}

type APPConfig struct {
	Environtment string `koanf:"environtment" default:"development"`
	LogLevel     string `koanf:"log_level" default:"debug"`
}

// Level parses LogLevel, falling back to debug on unknown values.
func (a APPConfig) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(a.LogLevel)
	if err != nil {
		return zerolog.DebugLevel
	}
	return lvl
}

// SiteConfig describes the target site and the session used against it.
type SiteConfig struct {
	BaseURL                string `koanf:"base_url" default:"https://eksisozluk.com"`
	Cookie                 string `koanf:"cookie"`
	IncludeNoviceFavorites bool   `koanf:"include_novice_favorites" default:"false"`
	MaxFavoritePages       int    `koanf:"max_favorite_pages" default:"50"`
}

// BlockerConfig holds the throttle, retry and staleness knobs of the blocking workflow.
type BlockerConfig struct {
	RequestDelay       time.Duration `koanf:"request_delay" default:"7s"`
	RetryDelay         time.Duration `koanf:"retry_delay" default:"5s"`
	MaxRetryDelay      time.Duration `koanf:"max_retry_delay" default:"1m"`
	MaxRetries         int           `koanf:"max_retries" default:"3"`
	RequestTimeout     time.Duration `koanf:"request_timeout" default:"30s"`
	StaleAfter         time.Duration `koanf:"stale_after" default:"1h"`
	FetchRetries       uint          `koanf:"fetch_retries" default:"3"`
	MaxStoreFailures   int           `koanf:"max_store_failures" default:"5"`
	SkipKnownUsers     bool          `koanf:"skip_known_users" default:"false"`
	RevalidateOnReset  bool          `koanf:"revalidate_on_reset" default:"true"`
	StuckCheckSchedule string        `koanf:"stuck_check_schedule" default:"*/1 * * * *"`
	ResumeAtStartup    bool          `koanf:"resume_at_startup" default:"true"`
}

type CollyConfig struct {
	MaxRedirects int           `koanf:"max_redirects" default:"10"`
	MaxSize      int           `koanf:"max_size" default:"1048576"`
	UserAgent    string        `koanf:"user_agent" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"`
	TimeOut      time.Duration `koanf:"timeout" default:"30s"`
}

type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled" default:"false"`
	ServiceName  string `koanf:"service_name" default:"eksiblock"`
	OTLPEndpoint string `koanf:"otlp_endpoint" default:"localhost:4317"`
}

type Config struct {
	APP       APPConfig
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Site      SiteConfig
	Colly     CollyConfig
	Blocker   BlockerConfig
	Telemetry TelemetryConfig
}
