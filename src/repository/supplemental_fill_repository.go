package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"dailybuy/src/database"
	"dailybuy/src/model"
)

// SupplementalFillRepository reads and imports fills recorded outside the exchange.
type SupplementalFillRepository struct {
	db *gorm.DB
}

// NewSupplementalFillRepository uses the read-only connection when one is configured.
func NewSupplementalFillRepository() *SupplementalFillRepository {
	return &SupplementalFillRepository{db: database.Reader()}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *SupplementalFillRepository) WithDB(db *gorm.DB) *SupplementalFillRepository {
	return &SupplementalFillRepository{db: db}
}

// FindBySource returns every row tagged with source, oldest first.
func (r *SupplementalFillRepository) FindBySource(ctx context.Context, source string) ([]model.SupplementalFill, error) {
	var rows []model.SupplementalFill
	err := r.db.WithContext(ctx).
		Where("source = ?", source).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "SupplementalFillRepository",
			"op":     "FindBySource",
			"source": source,
		}).WithError(err).Error("Failed to load supplemental fills")
		return nil, err
	}
	return rows, nil
}

// CreateBatch inserts rows in one transaction.
func (r *SupplementalFillRepository) CreateBatch(ctx context.Context, rows []model.SupplementalFill) error {
	if len(rows) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(rows, 500).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "SupplementalFillRepository",
			"op":   "CreateBatch",
			"rows": len(rows),
		}).WithError(err).Error("Failed to import supplemental fills")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo": "SupplementalFillRepository",
		"rows": len(rows),
	}).Info("Supplemental fills imported")
	return nil
}
