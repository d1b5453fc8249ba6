package ports

import (
	"context"
	"time"

	"AccidentLoader/internal/domain"
)

// RecordNormalizer turns raw source rows into six-part accident records.
type RecordNormalizer interface {
	Normalize(ctx context.Context, rows []domain.RawRecord) ([]domain.AccidentRecord, error)
}

// RecordRepository persists normalized records and answers incremental-load queries.
type RecordRepository interface {
	SaveRecords(ctx context.Context, records []domain.AccidentRecord) error
	LastSourceID(ctx context.Context, source string) (string, error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
