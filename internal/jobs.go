package internal

import (
	"context"
	"vocarank/internal/providers"
	"vocarank/internal/refresh"
	"vocarank/internal/store"
	"vocarank/internal/structures"

	"gorm.io/gorm"
)

// RefreshJob runs a single views refresh outside the server.
type RefreshJob struct {
	refresher refresh.RefresherInterface
	conf      *structures.Config
	logger    providers.Logger
}

func NewRefreshJob(refresher refresh.RefresherInterface, conf *structures.Config, logger providers.Logger) *RefreshJob {
	return &RefreshJob{refresher: refresher, conf: conf, logger: logger}
}

func (j *RefreshJob) Run(ctx context.Context) (*refresh.Summary, error) {
	summary, err := j.refresher.RefreshAllViews(ctx, refresh.OptionsFromConfig(j.conf))
	if err != nil {
		j.logger.Errorf(providers.TypeRefresh, "Refresh failed: %v", err)
		return nil, err
	}
	return summary, nil
}

// MigrateJob creates or updates the database schema.
type MigrateJob struct {
	db     *gorm.DB
	logger providers.Logger
}

func NewMigrateJob(db *gorm.DB, logger providers.Logger) *MigrateJob {
	return &MigrateJob{db: db, logger: logger}
}

func (j *MigrateJob) Run(ctx context.Context) error {
	if err := store.AutoMigrate(ctx, j.db); err != nil {
		j.logger.Errorf(providers.TypeApp, "Migration failed: %v", err)
		return err
	}
	j.logger.Infof(providers.TypeApp, "Schema is up to date")
	return nil
}
