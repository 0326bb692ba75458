package database

import (
	"fmt"

	"dailybuy/src/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReadOnlyDB serves supplemental fill reads. The user behind it should only
// have SELECT on supplemental_fills.
var ReadOnlyDB *gorm.DB

// InitReadOnlyDB connects DATABASE_URL_READONLY when set and checks that the
// supplemental_fills table is reachable. Without it reads go to MainDB.
func InitReadOnlyDB() error {
	config := GetConfig()
	if config.DatabaseURLReadOnly == "" {
		ReadOnlyDB = MainDB
		return nil
	}

	db, err := Open(config.Driver, config.DatabaseURLReadOnly, config.GormLogLevel)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from ReadOnlyDB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping ReadOnlyDB: %w", err)
	}

	var count int64
	if err := db.Model(&model.SupplementalFill{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to access supplemental_fills: %w", err)
	}
	logrus.WithField("count", count).Info("[ReadOnlyDB] supplemental_fills reachable")

	ReadOnlyDB = db
	return nil
}

// Reader returns the connection supplemental reads should use.
func Reader() *gorm.DB {
	if ReadOnlyDB != nil {
		return ReadOnlyDB
	}
	return MainDB
}
