package service

import (
	"context"
	"testing"
	"time"

	"pharmatrack/internal/model"
	"pharmatrack/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStatsRepo struct {
	stockValue    string
	movements     repository.MovementTotals
	expiringCount int64
	pendingOrders int64
	movementsFrom time.Time
}

func (r *stubStatsRepo) TotalStockValue(ctx context.Context) (string, error) {
	return r.stockValue, nil
}

func (r *stubStatsRepo) MovementTotalsSince(ctx context.Context, since time.Time) (repository.MovementTotals, error) {
	r.movementsFrom = since
	return r.movements, nil
}

func (r *stubStatsRepo) CountBatchesExpiringWithin(ctx context.Context, days int) (int64, error) {
	return r.expiringCount, nil
}

func (r *stubStatsRepo) CountOrdersByStatus(ctx context.Context, status string) (int64, error) {
	if status == model.OrderStatusPending {
		return r.pendingOrders, nil
	}
	return 0, nil
}

func TestGetDashboardAggregates(t *testing.T) {
	medicineRepo := newMemMedicineRepo()
	batchRepo := newMemBatchRepo()
	statsRepo := &stubStatsRepo{
		stockValue:    "1234.5",
		movements:     repository.MovementTotals{StockIn: 40, StockOut: 12},
		expiringCount: 1,
		pendingOrders: 3,
	}
	svc := NewStatisticsService(statsRepo, medicineRepo, batchRepo)

	medicine := &model.Medicine{Name: "Insulin", Unit: "vials"}
	require.NoError(t, medicineRepo.Create(context.Background(), medicine))

	// One batch under the low-stock threshold, one expiring inside the window.
	require.NoError(t, batchRepo.Create(context.Background(), &model.Batch{
		MedicineID:     medicine.ID,
		BatchNumber:    "LOT-LOW",
		Quantity:       4,
		ExpirationDate: time.Now().AddDate(0, 6, 0),
		UnitPrice:      decimal.NewFromFloat(12.00),
	}))
	require.NoError(t, batchRepo.Create(context.Background(), &model.Batch{
		MedicineID:     medicine.ID,
		BatchNumber:    "LOT-EXPIRING",
		Quantity:       30,
		ExpirationDate: time.Now().AddDate(0, 0, 10),
		UnitPrice:      decimal.NewFromFloat(12.00),
	}))

	res, err := svc.GetDashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.TotalMedicines)
	assert.Equal(t, "1234.50", res.TotalStockValue)
	assert.Equal(t, int64(3), res.PendingOrders)
	assert.Equal(t, int64(1), res.ExpiringSoonCount)
	assert.Equal(t, 40, res.TodayStockIn)
	assert.Equal(t, 12, res.TodayStockOut)

	// Today's window starts at local midnight, not the epoch day boundary.
	now := time.Now()
	wantMidnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	assert.Equal(t, wantMidnight, statsRepo.movementsFrom)

	require.Len(t, res.LowStockBatches, 1)
	assert.Equal(t, "LOT-LOW", res.LowStockBatches[0].BatchNumber)
	require.Len(t, res.ExpiringSoon, 1)
	assert.Equal(t, "LOT-EXPIRING", res.ExpiringSoon[0].BatchNumber)
}

func TestGetDashboardToleratesUnparsableStockValue(t *testing.T) {
	svc := NewStatisticsService(&stubStatsRepo{stockValue: ""}, newMemMedicineRepo(), newMemBatchRepo())

	res, err := svc.GetDashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.00", res.TotalStockValue)
}
