package database

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"jackdaw/internal/domain"
)

const runInsertBatchSize = 500

// SaveRun archives one completed ingestion together with its accepted
// records. The run row and the allocation batches share one transaction, so
// a partially archived run never becomes visible.
func SaveRun(ctx context.Context, run *domain.Run, allocations []domain.Allocation) error {
	if DB == nil {
		return errors.New("database not initialised")
	}
	if run == nil {
		return errors.New("run cannot be nil")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		run.Allocations = nil
		if err := tx.Create(run).Error; err != nil {
			return err
		}

		if len(allocations) == 0 {
			return nil
		}
		for i := range allocations {
			allocations[i].RunID = run.ID
		}
		return tx.CreateInBatches(&allocations, runInsertBatchSize).Error
	})
}

// LatestRun returns the newest archived run of one registry, or nil when the
// registry has never been archived.
func LatestRun(ctx context.Context, registry string) (*domain.Run, error) {
	if DB == nil {
		return nil, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	var run domain.Run
	err := db.Where("registry = ?", registry).Order("created_at DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// RecentRuns returns the newest archived runs across all registries.
func RecentRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if DB == nil {
		return nil, errors.New("database not initialised")
	}
	if limit <= 0 {
		limit = 10
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	var runs []domain.Run
	if err := db.Order("created_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
