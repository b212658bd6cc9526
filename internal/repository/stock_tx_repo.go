package repository

import (
	"context"
	"fmt"
	"time"

	"pharmatrack/internal/ledger"
	"pharmatrack/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionFilter narrows the ledger history query. Zero values mean "no
// filter". TodayOnly keeps entries created since local midnight.
type TransactionFilter struct {
	BatchID    uuid.UUID
	MedicineID uuid.UUID
	Type       string
	TodayOnly  bool
	Page       int
	Limit      int
}

// StockTransactionRepository appends to and reads the immutable audit
// ledger. There is deliberately no update method; DeleteAll backs the
// privileged clear-history action and nothing else.
type StockTransactionRepository interface {
	Create(ctx context.Context, tx *model.StockTransaction) error
	List(ctx context.Context, filter TransactionFilter) ([]model.StockTransaction, int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type stockTransactionRepository struct {
	db *gorm.DB
}

func NewStockTransactionRepository(db *gorm.DB) StockTransactionRepository {
	return &stockTransactionRepository{db: db}
}

func (r *stockTransactionRepository) Create(ctx context.Context, tx *model.StockTransaction) error {
	if tx.Quantity <= 0 {
		return fmt.Errorf("record transaction: %w", ledger.ErrInvalidQuantity)
	}
	return GetDB(ctx, r.db).Create(tx).Error
}

func (r *stockTransactionRepository) List(ctx context.Context, filter TransactionFilter) ([]model.StockTransaction, int64, error) {
	db := GetDB(ctx, r.db).Model(&model.StockTransaction{})

	if filter.BatchID != uuid.Nil {
		db = db.Where("batch_id = ?", filter.BatchID)
	}
	if filter.MedicineID != uuid.Nil {
		db = db.Where("batch_id IN (?)",
			GetDB(ctx, r.db).Model(&model.Batch{}).Select("id").Where("medicine_id = ?", filter.MedicineID))
	}
	if filter.Type != "" {
		db = db.Where("type = ?", filter.Type)
	}
	if filter.TodayOnly {
		db = db.Where("created_at >= ?", startOfDay(time.Now()))
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	offset := (filter.Page - 1) * filter.Limit

	var txs []model.StockTransaction
	if err := db.
		Preload("Batch").
		Preload("Batch.Medicine").
		Preload("User").
		Order("created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&txs).Error; err != nil {
		return nil, 0, err
	}

	return txs, total, nil
}

// startOfDay returns midnight of t's day in t's location. Truncate(24h)
// would round on the UTC epoch and shift day boundaries in other zones.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (r *stockTransactionRepository) DeleteAll(ctx context.Context) (int64, error) {
	res := GetDB(ctx, r.db).Where("1 = 1").Delete(&model.StockTransaction{})
	return res.RowsAffected, res.Error
}
