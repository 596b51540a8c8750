package config

import (
	"errors"
	"os"
	"reflect"
	"sync"

	"github.com/creasty/defaults"
	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	_k      *koanf.Koanf
	_config *Config
	once    sync.Once
)

var ErrEmptyConfig = errors.New("config is empty")

func GetConfig() *Config {
	if _config == nil {
		log.Info().Msg("config is nil trying to init")
		if err := InitConfig(); err != nil {
			log.Error().Msgf("error initializing config: %v", err)
		}
	}

	return _config
}

func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func InitConfig() error {
	var err error
	once.Do(func() {
		_k = koanf.New(".")
		_config = &Config{}

		configFile := GetEnv("CONFIG_FILE", ".env.toml")

		if err := _k.Load(file.Provider(configFile), toml.Parser()); err != nil {
			log.Warn().Err(err).Str("file", configFile).Msg("error loading config [TOML], using defaults")
		}

		if err := _k.Load(file.Provider(".env"), dotenv.Parser()); err != nil {
			log.Trace().Err(err).Msg("no .env file loaded")
		}

		if _err := defaults.Set(_config); _err != nil {
			err = _err
			return
		}

		if _err := _k.Unmarshal("", _config); _err != nil {
			err = _err
			return
		}

		log.Trace().Msgf("k: %+v", _config)

		if reflect.DeepEqual(*_config, Config{}) {
			err = ErrEmptyConfig
			return
		}

		zerolog.SetGlobalLevel(_config.APP.Level())
	})

	return err
}

// Default returns a configuration populated only from struct defaults.
// Tests use it to avoid touching files on disk.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		log.Error().Err(err).Msg("failed to apply config defaults")
	}
	return cfg
}

func IsDevMode() bool {
	if _config == nil {
		return true
	}

	return (_config.APP.Environtment == "development")
}
