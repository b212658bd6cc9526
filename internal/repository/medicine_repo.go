package repository

import (
	"context"
	"errors"

	"pharmatrack/internal/ledger"
	"pharmatrack/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MedicineRepository interface {
	Create(ctx context.Context, medicine *model.Medicine) error
	Update(ctx context.Context, medicine *model.Medicine) error
	// Delete cascades to the medicine's batches and their transactions.
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Medicine, error)
	List(ctx context.Context, page, limit int, search string) ([]model.Medicine, int64, error)
	Count(ctx context.Context) (int64, error)
}

type medicineRepository struct {
	db *gorm.DB
}

func NewMedicineRepository(db *gorm.DB) MedicineRepository {
	return &medicineRepository{db: db}
}

func (r *medicineRepository) Create(ctx context.Context, medicine *model.Medicine) error {
	return GetDB(ctx, r.db).Create(medicine).Error
}

func (r *medicineRepository) Update(ctx context.Context, medicine *model.Medicine) error {
	return GetDB(ctx, r.db).Save(medicine).Error
}

func (r *medicineRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// Hard delete so the CASCADE constraints take the batches and their
	// transaction history with the medicine.
	return GetDB(ctx, r.db).Unscoped().Where("id = ?", id).Delete(&model.Medicine{}).Error
}

func (r *medicineRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Medicine, error) {
	var medicine model.Medicine
	if err := GetDB(ctx, r.db).Preload("Supplier").First(&medicine, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return &medicine, nil
}

func (r *medicineRepository) List(ctx context.Context, page, limit int, search string) ([]model.Medicine, int64, error) {
	var medicines []model.Medicine
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Medicine{})
	if search != "" {
		db = db.Where("name ILIKE ? OR generic_name ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.
		Preload("Supplier").
		Preload("Batches", func(db *gorm.DB) *gorm.DB {
			return db.Order("batches.expiration_date ASC, batches.created_at ASC")
		}).
		Order("name ASC").
		Offset(offset).Limit(limit).
		Find(&medicines).Error; err != nil {
		return nil, 0, err
	}

	return medicines, total, nil
}

func (r *medicineRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.Medicine{}).Count(&total).Error
	return total, err
}
