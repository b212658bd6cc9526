package repository

import (
	"context"
	"errors"

	"pharmatrack/internal/ledger"
	"pharmatrack/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SupplierRepository interface {
	Create(ctx context.Context, supplier *model.Supplier) error
	Update(ctx context.Context, supplier *model.Supplier) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Supplier, error)
	List(ctx context.Context, page, limit int, search string) ([]model.Supplier, int64, error)
}

type supplierRepository struct {
	db *gorm.DB
}

func NewSupplierRepository(db *gorm.DB) SupplierRepository {
	return &supplierRepository{db: db}
}

func (r *supplierRepository) Create(ctx context.Context, supplier *model.Supplier) error {
	return GetDB(ctx, r.db).Create(supplier).Error
}

func (r *supplierRepository) Update(ctx context.Context, supplier *model.Supplier) error {
	return GetDB(ctx, r.db).Save(supplier).Error
}

func (r *supplierRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Supplier{}).Error
}

func (r *supplierRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Supplier, error) {
	var supplier model.Supplier
	if err := GetDB(ctx, r.db).First(&supplier, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return &supplier, nil
}

func (r *supplierRepository) List(ctx context.Context, page, limit int, search string) ([]model.Supplier, int64, error) {
	var suppliers []model.Supplier
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Supplier{})
	if search != "" {
		db = db.Where("name ILIKE ?", "%"+search+"%")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("name ASC").Offset(offset).Limit(limit).Find(&suppliers).Error; err != nil {
		return nil, 0, err
	}

	return suppliers, total, nil
}
