package di

import (
	"context"
	"fmt"
	"vocarank/internal/providers"
	"vocarank/internal/store"
	"vocarank/internal/structures"

	"gorm.io/gorm"
)

// ProvideDatabase opens the configured database and migrates the schema when
// database.autoMigrate is set.
func ProvideDatabase(conf *structures.Config, logger providers.Logger) (*gorm.DB, error) {
	db, err := providers.NewDatabaseProvider(conf, logger)
	if err != nil {
		return nil, err
	}
	if !conf.Database.AutoMigrate {
		return db, nil
	}
	if err := store.AutoMigrate(context.Background(), db); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	logger.Infof(providers.TypeApp, "Schema migrated")
	return db, nil
}
