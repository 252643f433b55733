package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/dataimport"
)

const maxImportListLimit = 500

// DataImportService is the read side of the import history.
type DataImportService struct {
	repo DataImportRepository
}

func NewDataImportService(repo DataImportRepository) *DataImportService {
	return &DataImportService{repo: repo}
}

func (s *DataImportService) Get(ctx context.Context, id uuid.UUID) (*dataimport.DataImport, error) {
	di, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if di == nil {
		return nil, ErrNotFound
	}
	return di, nil
}

// List returns the newest imports first. Limits above 500 are clamped.
func (s *DataImportService) List(ctx context.Context, filter DataImportFilter) ([]dataimport.DataImport, error) {
	if filter.Limit > maxImportListLimit {
		filter.Limit = maxImportListLimit
	}
	return s.repo.List(ctx, filter)
}
