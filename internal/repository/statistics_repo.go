package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// MovementTotals aggregates ledger activity for a time window.
type MovementTotals struct {
	StockIn  int `json:"stock_in"`
	StockOut int `json:"stock_out"`
}

type StatisticsRepository interface {
	// TotalStockValue sums quantity * unit_price over all batches, returned
	// as a numeric string so the caller can parse it into a decimal.
	TotalStockValue(ctx context.Context) (string, error)
	MovementTotalsSince(ctx context.Context, since time.Time) (MovementTotals, error)
	CountBatchesExpiringWithin(ctx context.Context, days int) (int64, error)
	CountOrdersByStatus(ctx context.Context, status string) (int64, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) TotalStockValue(ctx context.Context) (string, error) {
	var result struct {
		Value string
	}
	err := GetDB(ctx, r.db).Table("batches").
		Select("COALESCE(CAST(SUM(quantity * unit_price) AS TEXT), '0') as value").
		Scan(&result).Error
	return result.Value, err
}

func (r *statisticsRepository) MovementTotalsSince(ctx context.Context, since time.Time) (MovementTotals, error) {
	var totals MovementTotals
	err := GetDB(ctx, r.db).Table("stock_transactions").
		Select(`COALESCE(SUM(CASE WHEN type = 'in' THEN quantity ELSE 0 END), 0) as stock_in,
			COALESCE(SUM(CASE WHEN type = 'out' THEN quantity ELSE 0 END), 0) as stock_out`).
		Where("created_at >= ?", since).
		Scan(&totals).Error
	return totals, err
}

func (r *statisticsRepository) CountBatchesExpiringWithin(ctx context.Context, days int) (int64, error) {
	today := startOfDay(time.Now())
	deadline := today.AddDate(0, 0, days)

	var count int64
	err := GetDB(ctx, r.db).Table("batches").
		Where("expiration_date > ? AND expiration_date <= ? AND quantity > 0", today, deadline).
		Count(&count).Error
	return count, err
}

func (r *statisticsRepository) CountOrdersByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Table("orders").Where("status = ?", status).Count(&count).Error
	return count, err
}
