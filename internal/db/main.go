package db

import (
	"database/sql"
	"fmt"
	"sync"

	"eksiblock/internal/config"

	"github.com/rs/zerolog/log"
)

var (
	db    *sql.DB
	once  sync.Once
	dbErr error
)

// GetDB returns the process wide history database built from the global config.
func GetDB() (*sql.DB, error) {
	once.Do(func() {
		cfg := config.GetConfig().Database
		db, dbErr = Connect(WithPath(cfg.Path), WithInMemory(cfg.InMemory))
		if dbErr != nil {
			dbErr = fmt.Errorf("failed to initialize database connection: %w", dbErr)
			return
		}
		log.Info().Str("path", cfg.Path).Msg("Database connection initialized")
	})
	return db, dbErr
}

func DeferClose() {
	if db != nil {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database connection")
		}
	}
}
