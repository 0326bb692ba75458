package database

import (
	"fmt"
	"time"

	"dailybuy/src/database/migrations"
	"dailybuy/src/model"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MainDB is the read/write connection: exceptions, supplemental fills, data migrations.
var MainDB *gorm.DB

// Enabled reports whether a database is configured for this process.
func Enabled() bool {
	return GetConfig().EnableDB
}

func dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "", "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Open connects with the configured driver and pool settings.
func Open(driver, dsn string, logLevel int) (*gorm.DB, error) {
	d, err := dialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(logLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	return db, nil
}

// Migrate creates the schema and applies pending data migrations.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.SupplementalFill{},
		&model.Exception{},
		&migrations.DataMigration{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("failed to run data migrations: %w", err)
	}
	return nil
}

// InitMainDB opens the main connection and runs migrations.
// Call once at startup, and only when ENABLE_DB is set.
func InitMainDB() error {
	config := GetConfig()

	db, err := Open(config.Driver, config.DatabaseURLMain, config.GormLogLevel)
	if err != nil {
		return err
	}

	MainDB = db
	logrus.WithField("driver", config.Driver).Info("[database] MainDB connection established")

	if err := Migrate(MainDB); err != nil {
		return err
	}

	logrus.Info("[database] MainDB migrations completed")
	return nil
}
