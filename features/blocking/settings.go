package blocking

import (
	"time"

	"eksiblock/internal/config"
)

// Settings are the throttle, retry and staleness knobs of a Workflow.
type Settings struct {
	RequestDelay      time.Duration
	RetryDelay        time.Duration
	MaxRetryDelay     time.Duration
	MaxRetries        int
	RequestTimeout    time.Duration
	StaleAfter        time.Duration
	MaxStoreFailures  int
	SkipKnownUsers    bool
	RevalidateOnReset bool
}

// DefaultStaleAfter is the age after which an operation is no longer auto-resumed.
const DefaultStaleAfter = time.Hour

func SettingsFromConfig(cfg config.BlockerConfig) Settings {
	return Settings{
		RequestDelay:      cfg.RequestDelay,
		RetryDelay:        cfg.RetryDelay,
		MaxRetryDelay:     cfg.MaxRetryDelay,
		MaxRetries:        cfg.MaxRetries,
		RequestTimeout:    cfg.RequestTimeout,
		StaleAfter:        cfg.StaleAfter,
		MaxStoreFailures:  cfg.MaxStoreFailures,
		SkipKnownUsers:    cfg.SkipKnownUsers,
		RevalidateOnReset: cfg.RevalidateOnReset,
	}
}

func (s Settings) withDefaults() Settings {
	if s.MaxRetries < 0 {
		s.MaxRetries = 0
	}
	if s.StaleAfter <= 0 {
		s.StaleAfter = DefaultStaleAfter
	}
	if s.MaxRetryDelay < s.RetryDelay {
		s.MaxRetryDelay = s.RetryDelay
	}
	return s
}
