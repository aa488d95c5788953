package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
	"vocarank/internal/structures"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 500 * time.Millisecond

// gormLogAdapter routes gorm's own logging into the query log.
type gormLogAdapter struct {
	logger Logger
	level  gormLogger.LogLevel
}

func (g *gormLogAdapter) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	return &gormLogAdapter{logger: g.logger, level: level}
}

func (g *gormLogAdapter) Info(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormLogger.Info {
		g.logger.Infof(TypeQuery, msg, args...)
	}
}

func (g *gormLogAdapter) Warn(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormLogger.Warn {
		g.logger.Warnf(TypeQuery, msg, args...)
	}
}

func (g *gormLogAdapter) Error(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormLogger.Error {
		g.logger.Errorf(TypeQuery, msg, args...)
	}
}

func (g *gormLogAdapter) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormLogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormLogger.Error:
		sql, rows := fc()
		g.logger.Errorf(TypeQuery, "query failed after %s (%d rows): %s: %s", elapsed, rows, err, sql)
	case elapsed > slowQueryThreshold && g.level >= gormLogger.Warn:
		sql, rows := fc()
		g.logger.Warnf(TypeQuery, "slow query %s (%d rows): %s", elapsed, rows, sql)
	case g.level >= gormLogger.Info:
		sql, rows := fc()
		g.logger.Debugf(TypeQuery, "query %s (%d rows): %s", elapsed, rows, sql)
	}
}

func NewGormLogger(logger Logger, debug bool) gormLogger.Interface {
	level := gormLogger.Warn
	if debug {
		level = gormLogger.Info
	}
	return &gormLogAdapter{logger: logger, level: level}
}

func NewDatabaseProvider(conf *structures.Config, logger Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch conf.Database.Driver {
	case "postgres":
		dialector = postgres.Open(conf.Database.DSN)
	case "sqlite":
		dialector = sqlite.Open(conf.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", conf.Database.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(logger, conf.Debug),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", conf.Database.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if conf.Database.Driver == "sqlite" {
		// a single connection serializes writers and keeps :memory: databases shared
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetMaxOpenConns(conf.Database.MaxOpenConns)
		sqlDB.SetMaxIdleConns(conf.Database.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(conf.Database.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", conf.Database.Driver, err)
	}

	logger.Infof(TypeApp, "Connected to %s database", conf.Database.Driver)
	return db, nil
}
