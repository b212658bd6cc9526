package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pharmatrack/internal/ledger"
	"pharmatrack/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BatchRepository is the authoritative store for batch records. It enforces
// the non-negative quantity invariant on every write; pairing each delta
// with an audit transaction is the allocation engine's job.
type BatchRepository interface {
	Create(ctx context.Context, batch *model.Batch) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Batch, error)
	// ListByMedicine returns all batches of a medicine, zero-quantity ones
	// included, ordered by expiration date ascending with creation order as
	// the tie-break.
	ListByMedicine(ctx context.Context, medicineID uuid.UUID) ([]model.Batch, error)
	// ListByMedicineForUpdate is ListByMedicine with the rows locked for the
	// duration of the surrounding transaction.
	ListByMedicineForUpdate(ctx context.Context, medicineID uuid.UUID) ([]model.Batch, error)
	// LatestNonExpiredForUpdate locks and returns the medicine's
	// latest-expiring batch whose expiration date is on or after asOf, or
	// ledger.ErrNotFound when every batch is expired or none exist.
	LatestNonExpiredForUpdate(ctx context.Context, medicineID uuid.UUID, asOf time.Time) (*model.Batch, error)
	// ApplyQuantityDelta atomically adds delta to a batch's quantity. The
	// update is guarded so the resulting quantity can never be negative.
	ApplyQuantityDelta(ctx context.Context, id uuid.UUID, delta int) error
	ExpiringWithin(ctx context.Context, days int) ([]model.Batch, error)
	LowStock(ctx context.Context, threshold int) ([]model.Batch, error)
}

type batchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) Create(ctx context.Context, batch *model.Batch) error {
	if batch.Quantity < 0 {
		return fmt.Errorf("create batch %q: %w", batch.BatchNumber, ledger.ErrInvalidQuantity)
	}
	return GetDB(ctx, r.db).Create(batch).Error
}

func (r *batchRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	var batch model.Batch
	if err := GetDB(ctx, r.db).First(&batch, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepository) ListByMedicine(ctx context.Context, medicineID uuid.UUID) ([]model.Batch, error) {
	var batches []model.Batch
	if err := GetDB(ctx, r.db).
		Where("medicine_id = ?", medicineID).
		Order("expiration_date ASC, created_at ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *batchRepository) ListByMedicineForUpdate(ctx context.Context, medicineID uuid.UUID) ([]model.Batch, error) {
	var batches []model.Batch
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("medicine_id = ?", medicineID).
		Order("expiration_date ASC, created_at ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *batchRepository) LatestNonExpiredForUpdate(ctx context.Context, medicineID uuid.UUID, asOf time.Time) (*model.Batch, error) {
	var batch model.Batch
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("medicine_id = ? AND expiration_date >= ?", medicineID, asOf).
		Order("expiration_date DESC, created_at DESC").
		First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepository) ApplyQuantityDelta(ctx context.Context, id uuid.UUID, delta int) error {
	res := GetDB(ctx, r.db).Model(&model.Batch{}).
		Where("id = ? AND quantity + ? >= 0", id, delta).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either the batch is gone or the delta would drive it negative.
		var count int64
		if err := GetDB(ctx, r.db).Model(&model.Batch{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("batch %s: %w", id, ledger.ErrNotFound)
		}
		return fmt.Errorf("batch %s: delta %d: %w", id, delta, ledger.ErrInsufficientStock)
	}
	return nil
}

func (r *batchRepository) ExpiringWithin(ctx context.Context, days int) ([]model.Batch, error) {
	today := startOfDay(time.Now())
	deadline := today.AddDate(0, 0, days)

	var batches []model.Batch
	if err := GetDB(ctx, r.db).
		Preload("Medicine").
		Where("expiration_date > ? AND expiration_date <= ? AND quantity > 0", today, deadline).
		Order("expiration_date ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *batchRepository) LowStock(ctx context.Context, threshold int) ([]model.Batch, error) {
	var batches []model.Batch
	if err := GetDB(ctx, r.db).
		Preload("Medicine").
		Where("quantity > 0 AND quantity <= ?", threshold).
		Order("quantity ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}
