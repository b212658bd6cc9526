package service

import (
	"context"
	"fmt"
	"time"

	"pharmatrack/internal/model"
	"pharmatrack/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	lowStockThreshold = 10
	expiryWindowDays  = 30
)

type DashboardResponse struct {
	TotalMedicines    int64           `json:"total_medicines"`
	TotalStockValue   string          `json:"total_stock_value"`
	PendingOrders     int64           `json:"pending_orders"`
	ExpiringSoonCount int64           `json:"expiring_soon_count"`
	LowStockBatches   []BatchResponse `json:"low_stock_batches"`
	ExpiringSoon      []BatchResponse `json:"expiring_soon"`
	TodayStockIn      int             `json:"today_stock_in"`
	TodayStockOut     int             `json:"today_stock_out"`
}

// StatisticsService aggregates dashboard figures. Reads only; a refresh can
// lag writes that are still in flight.
type StatisticsService interface {
	GetDashboard(ctx context.Context) (DashboardResponse, error)
}

type statisticsService struct {
	statsRepo    repository.StatisticsRepository
	medicineRepo repository.MedicineRepository
	batchRepo    repository.BatchRepository
}

func NewStatisticsService(
	statsRepo repository.StatisticsRepository,
	medicineRepo repository.MedicineRepository,
	batchRepo repository.BatchRepository,
) StatisticsService {
	return &statisticsService{
		statsRepo:    statsRepo,
		medicineRepo: medicineRepo,
		batchRepo:    batchRepo,
	}
}

func (s *statisticsService) GetDashboard(ctx context.Context) (DashboardResponse, error) {
	totalMedicines, err := s.medicineRepo.Count(ctx)
	if err != nil {
		return DashboardResponse{}, fmt.Errorf("failed to count medicines: %w", err)
	}

	rawValue, err := s.statsRepo.TotalStockValue(ctx)
	if err != nil {
		return DashboardResponse{}, fmt.Errorf("failed to compute stock value: %w", err)
	}
	stockValue, err := decimal.NewFromString(rawValue)
	if err != nil {
		stockValue = decimal.Zero
	}

	pendingOrders, err := s.statsRepo.CountOrdersByStatus(ctx, model.OrderStatusPending)
	if err != nil {
		return DashboardResponse{}, fmt.Errorf("failed to count pending orders: %w", err)
	}

	expiringCount, err := s.statsRepo.CountBatchesExpiringWithin(ctx, expiryWindowDays)
	if err != nil {
		return DashboardResponse{}, fmt.Errorf("failed to count expiring batches: %w", err)
	}

	lowStock, err := s.batchRepo.LowStock(ctx, lowStockThreshold)
	if err != nil {
		return DashboardResponse{}, fmt.Errorf("failed to query low stock: %w", err)
	}

	expiring, err := s.batchRepo.ExpiringWithin(ctx, expiryWindowDays)
	if err != nil {
		return DashboardResponse{}, fmt.Errorf("failed to query expiring batches: %w", err)
	}

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	movements, err := s.statsRepo.MovementTotalsSince(ctx, midnight)
	if err != nil {
		return DashboardResponse{}, fmt.Errorf("failed to aggregate today's movements: %w", err)
	}

	res := DashboardResponse{
		TotalMedicines:    totalMedicines,
		TotalStockValue:   stockValue.StringFixed(2),
		PendingOrders:     pendingOrders,
		ExpiringSoonCount: expiringCount,
		LowStockBatches:   make([]BatchResponse, 0, len(lowStock)),
		ExpiringSoon:      make([]BatchResponse, 0, len(expiring)),
		TodayStockIn:      movements.StockIn,
		TodayStockOut:     movements.StockOut,
	}
	for i := range lowStock {
		res.LowStockBatches = append(res.LowStockBatches, toBatchResponse(&lowStock[i]))
	}
	for i := range expiring {
		res.ExpiringSoon = append(res.ExpiringSoon, toBatchResponse(&expiring[i]))
	}
	return res, nil
}
