package ledger

import (
	"context"

	"dailybuy/src/metrics"
	"dailybuy/src/model"

	logger "github.com/sirupsen/logrus"
)

// SheetReader is satisfied by connectors.SheetsClient.
type SheetReader interface {
	Fills(ctx context.Context, sheet string) ([]model.Fill, error)
}

// SheetSource reads supplemental fills from a published Google spreadsheet.
type SheetSource struct {
	reader SheetReader
}

func NewSheetSource(reader SheetReader) *SheetSource {
	return &SheetSource{reader: reader}
}

func (s *SheetSource) Get(ctx context.Context, name string) []model.Fill {
	fills, err := s.reader.Fills(ctx, name)
	if err != nil {
		metrics.SupplementalSourceFailures.WithLabelValues("sheets").Inc()
		logger.WithError(err).WithField("sheet", name).Error("Failed to read supplemental sheet")
		return []model.Fill{}
	}
	return fills
}

// SupplementalStore is satisfied by repository.SupplementalFillRepository.
type SupplementalStore interface {
	FindBySource(ctx context.Context, source string) ([]model.SupplementalFill, error)
}

// DatabaseSource reads supplemental fills from the supplemental_fills table.
type DatabaseSource struct {
	store SupplementalStore
}

func NewDatabaseSource(store SupplementalStore) *DatabaseSource {
	return &DatabaseSource{store: store}
}

func (s *DatabaseSource) Get(ctx context.Context, name string) []model.Fill {
	rows, err := s.store.FindBySource(ctx, name)
	if err != nil {
		metrics.SupplementalSourceFailures.WithLabelValues("database").Inc()
		logger.WithError(err).WithField("source", name).Error("Failed to read supplemental fills")
		return []model.Fill{}
	}

	fills := make([]model.Fill, 0, len(rows))
	for _, r := range rows {
		fills = append(fills, r.ToFill())
	}
	return fills
}
