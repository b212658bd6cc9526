package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pharmatrack/internal/ledger"
	"pharmatrack/internal/model"
	"pharmatrack/internal/repository"
	ws "pharmatrack/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs
type StockInRequest struct {
	BatchNumber       string `json:"batch_number" binding:"required"`
	Quantity          int    `json:"quantity" binding:"required"`
	ExpirationDate    string `json:"expiration_date" binding:"required"` // YYYY-MM-DD
	ManufacturingDate string `json:"manufacturing_date"`                 // YYYY-MM-DD
	UnitPrice         string `json:"unit_price" binding:"required"`
	Note              string `json:"note"`
}

type DispenseRequest struct {
	Quantity int    `json:"quantity" binding:"required"`
	Note     string `json:"note"`
}

type BatchResponse struct {
	ID                string `json:"id"`
	MedicineID        string `json:"medicine_id"`
	BatchNumber       string `json:"batch_number"`
	Quantity          int    `json:"quantity"`
	ExpirationDate    string `json:"expiration_date"`
	ManufacturingDate string `json:"manufacturing_date"`
	UnitPrice         string `json:"unit_price"`
	Expired           bool   `json:"expired"`
	DaysUntilExpiry   int    `json:"days_until_expiry"`
}

type TransactionResponse struct {
	ID          string `json:"id"`
	BatchID     string `json:"batch_id"`
	Type        string `json:"type"`
	Quantity    int    `json:"quantity"`
	PerformedBy string `json:"performed_by,omitempty"`
	Note        string `json:"note,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type MedicineStockResponse struct {
	MedicineID    string          `json:"medicine_id"`
	MedicineName  string          `json:"medicine_name"`
	Unit          string          `json:"unit"`
	TotalQuantity int             `json:"total_quantity"`
	Batches       []BatchResponse `json:"batches"`
}

// Websocket payload
type StockEvent struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// StockService is the allocation engine. Every quantity movement it applies
// is paired with exactly one audit transaction, and dispensing always drains
// the earliest-expiring stock first. The check-then-mutate sequence of each
// operation runs inside a single database transaction with the affected
// batch rows locked, so concurrent calls against one medicine serialize.
type StockService interface {
	// StockIn receives a new batch for a medicine and records one `in`
	// transaction for the full quantity.
	StockIn(ctx context.Context, actorID string, medicineID string, req StockInRequest) (BatchResponse, error)
	// Dispense deducts quantity across the medicine's batches,
	// earliest-expiration-first, all-or-nothing at the medicine level. The
	// returned sequence is the proof of exactly how the quantity was sourced.
	Dispense(ctx context.Context, actorID string, medicineID string, req DispenseRequest) ([]TransactionResponse, error)
	// FulfillOrder converts a pending order's line items into stock,
	// atomically for the whole order, and marks it delivered.
	FulfillOrder(ctx context.Context, actorID string, orderID string) ([]TransactionResponse, error)
	// GetMedicineStock returns a snapshot of a medicine's batches with the
	// derived total.
	GetMedicineStock(ctx context.Context, medicineID string) (MedicineStockResponse, error)
	// ClearHistory irreversibly wipes the transaction ledger. Admin only,
	// enforced at the route layer.
	ClearHistory(ctx context.Context, actorID string) (int64, error)
}

type stockService struct {
	medicineRepo repository.MedicineRepository
	batchRepo    repository.BatchRepository
	stockTxRepo  repository.StockTransactionRepository
	orderRepo    repository.OrderRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	hub          *ws.Hub
}

func NewStockService(
	medicineRepo repository.MedicineRepository,
	batchRepo repository.BatchRepository,
	stockTxRepo repository.StockTransactionRepository,
	orderRepo repository.OrderRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) StockService {
	return &stockService{
		medicineRepo: medicineRepo,
		batchRepo:    batchRepo,
		stockTxRepo:  stockTxRepo,
		orderRepo:    orderRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		hub:          hub,
	}
}

const dateLayout = "2006-01-02"

func parseActor(actorID string) *uuid.UUID {
	if parsed, err := uuid.Parse(actorID); err == nil {
		return &parsed
	}
	return nil
}

func toBatchResponse(b *model.Batch) BatchResponse {
	manufactured := ""
	if !b.ManufacturingDate.IsZero() {
		manufactured = b.ManufacturingDate.Format(dateLayout)
	}
	return BatchResponse{
		ID:                b.ID.String(),
		MedicineID:        b.MedicineID.String(),
		BatchNumber:       b.BatchNumber,
		Quantity:          b.Quantity,
		ExpirationDate:    b.ExpirationDate.Format(dateLayout),
		ManufacturingDate: manufactured,
		UnitPrice:         b.UnitPrice.StringFixed(2),
		Expired:           b.IsExpired(),
		DaysUntilExpiry:   b.DaysUntilExpiration(),
	}
}

func toTransactionResponse(tx *model.StockTransaction) TransactionResponse {
	performedBy := ""
	if tx.PerformedBy != nil {
		performedBy = tx.PerformedBy.String()
	}
	return TransactionResponse{
		ID:          tx.ID.String(),
		BatchID:     tx.BatchID.String(),
		Type:        tx.Type,
		Quantity:    tx.Quantity,
		PerformedBy: performedBy,
		Note:        tx.Note,
		CreatedAt:   tx.CreatedAt.Format(time.RFC3339),
	}
}

func (s *stockService) broadcast(event string, data map[string]interface{}) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(StockEvent{Event: event, Data: data})
	if err != nil {
		return
	}
	s.hub.Broadcast <- payload
}

func (s *stockService) StockIn(ctx context.Context, actorID string, medicineID string, req StockInRequest) (BatchResponse, error) {
	if req.Quantity <= 0 {
		return BatchResponse{}, ledger.ErrInvalidQuantity
	}

	mid, err := uuid.Parse(medicineID)
	if err != nil {
		return BatchResponse{}, fmt.Errorf("invalid medicine id: %w", ledger.ErrNotFound)
	}

	expiration, err := time.Parse(dateLayout, req.ExpirationDate)
	if err != nil {
		return BatchResponse{}, fmt.Errorf("invalid expiration_date: %w", err)
	}

	var manufactured time.Time
	if req.ManufacturingDate != "" {
		manufactured, err = time.Parse(dateLayout, req.ManufacturingDate)
		if err != nil {
			return BatchResponse{}, fmt.Errorf("invalid manufacturing_date: %w", err)
		}
	}

	unitPrice, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		return BatchResponse{}, fmt.Errorf("invalid unit_price: %w", err)
	}

	batch := model.Batch{
		MedicineID:        mid,
		BatchNumber:       req.BatchNumber,
		Quantity:          req.Quantity,
		ExpirationDate:    expiration,
		ManufacturingDate: manufactured,
		UnitPrice:         unitPrice,
	}

	actor := parseActor(actorID)

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		medicine, findErr := s.medicineRepo.FindByID(txCtx, mid)
		if findErr != nil {
			return findErr
		}

		if createErr := s.batchRepo.Create(txCtx, &batch); createErr != nil {
			return fmt.Errorf("failed to create batch: %w", createErr)
		}

		stockTx := model.StockTransaction{
			BatchID:     batch.ID,
			Type:        model.TxTypeIn,
			Quantity:    req.Quantity,
			PerformedBy: actor,
			Note:        req.Note,
		}
		if txErr := s.stockTxRepo.Create(txCtx, &stockTx); txErr != nil {
			return fmt.Errorf("failed to record transaction: %w", txErr)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"batch_number": req.BatchNumber,
			"quantity":     req.Quantity,
			"expiration":   req.ExpirationDate,
		})
		audit := &model.AuditLog{
			UserID:     actor,
			Action:     model.ActionStockIn,
			EntityID:   batch.ID.String(),
			EntityName: medicine.Name,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		return nil
	})
	if err != nil {
		return BatchResponse{}, err
	}

	s.broadcast("stock.updated", map[string]interface{}{
		"medicine_id": medicineID,
		"received":    req.Quantity,
	})

	return toBatchResponse(&batch), nil
}

func (s *stockService) Dispense(ctx context.Context, actorID string, medicineID string, req DispenseRequest) ([]TransactionResponse, error) {
	if req.Quantity <= 0 {
		return nil, ledger.ErrInvalidQuantity
	}

	mid, err := uuid.Parse(medicineID)
	if err != nil {
		return nil, fmt.Errorf("invalid medicine id: %w", ledger.ErrNotFound)
	}

	actor := parseActor(actorID)
	var created []model.StockTransaction

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		medicine, findErr := s.medicineRepo.FindByID(txCtx, mid)
		if findErr != nil {
			return findErr
		}

		// Lock the whole batch set so the availability check and the deltas
		// below commit together or not at all.
		batches, listErr := s.batchRepo.ListByMedicineForUpdate(txCtx, mid)
		if listErr != nil {
			return listErr
		}

		available := model.TotalQuantity(batches)
		if available < req.Quantity {
			return &ledger.InsufficientStockError{
				MedicineID: medicineID,
				Requested:  req.Quantity,
				Available:  available,
			}
		}

		// Batches arrive expiration-ascending with creation order as the
		// tie-break, so walking in order dispenses soonest-to-expire first.
		remaining := req.Quantity
		for _, batch := range batches {
			if remaining == 0 {
				break
			}
			if batch.Quantity <= 0 {
				continue
			}

			take := remaining
			if take > batch.Quantity {
				take = batch.Quantity
			}

			if deltaErr := s.batchRepo.ApplyQuantityDelta(txCtx, batch.ID, -take); deltaErr != nil {
				return deltaErr
			}

			stockTx := model.StockTransaction{
				BatchID:     batch.ID,
				Type:        model.TxTypeOut,
				Quantity:    take,
				PerformedBy: actor,
				Note:        req.Note,
			}
			if txErr := s.stockTxRepo.Create(txCtx, &stockTx); txErr != nil {
				return fmt.Errorf("failed to record transaction: %w", txErr)
			}

			created = append(created, stockTx)
			remaining -= take
		}

		if remaining != 0 {
			// Cannot happen while the availability check and the walk above
			// share one locked snapshot.
			return fmt.Errorf("dispense left %d units unallocated: %w", remaining, ledger.ErrInconsistentState)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"quantity":        req.Quantity,
			"batches_touched": len(created),
			"note":            req.Note,
		})
		audit := &model.AuditLog{
			UserID:     actor,
			Action:     model.ActionDispense,
			EntityID:   medicineID,
			EntityName: medicine.Name,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("stock.updated", map[string]interface{}{
		"medicine_id": medicineID,
		"dispensed":   req.Quantity,
	})

	res := make([]TransactionResponse, 0, len(created))
	for i := range created {
		res = append(res, toTransactionResponse(&created[i]))
	}
	return res, nil
}

func (s *stockService) FulfillOrder(ctx context.Context, actorID string, orderID string) ([]TransactionResponse, error) {
	oid, err := uuid.Parse(orderID)
	if err != nil {
		return nil, fmt.Errorf("invalid order id: %w", ledger.ErrNotFound)
	}

	actor := parseActor(actorID)
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var created []model.StockTransaction

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, findErr := s.orderRepo.FindByIDForUpdate(txCtx, oid)
		if findErr != nil {
			return findErr
		}

		if order.Status != model.OrderStatusPending {
			return fmt.Errorf("order %s is %s: %w", orderID, order.Status, ledger.ErrAlreadyFinalized)
		}

		for i, item := range order.Items {
			if item.Quantity <= 0 {
				return fmt.Errorf("order item %d: %w", i+1, ledger.ErrInvalidQuantity)
			}

			target, targetErr := s.batchRepo.LatestNonExpiredForUpdate(txCtx, item.MedicineID, today)
			switch {
			case targetErr == nil:
				// Augment the latest-expiring usable batch.
				if deltaErr := s.batchRepo.ApplyQuantityDelta(txCtx, target.ID, item.Quantity); deltaErr != nil {
					return deltaErr
				}
			case errors.Is(targetErr, ledger.ErrNotFound):
				// Everything expired or no stock yet: open a fresh batch
				// dated one year out at the ordered unit price.
				target = &model.Batch{
					MedicineID:        item.MedicineID,
					BatchNumber:       fmt.Sprintf("ORD-%s-%d", shortID(order.ID), i+1),
					Quantity:          item.Quantity,
					ExpirationDate:    today.AddDate(1, 0, 0),
					ManufacturingDate: today,
					UnitPrice:         item.UnitPrice,
				}
				if createErr := s.batchRepo.Create(txCtx, target); createErr != nil {
					return fmt.Errorf("failed to create batch: %w", createErr)
				}
			default:
				return targetErr
			}

			stockTx := model.StockTransaction{
				BatchID:     target.ID,
				Type:        model.TxTypeIn,
				Quantity:    item.Quantity,
				PerformedBy: actor,
				Note:        fmt.Sprintf("order %s fulfillment", shortID(order.ID)),
			}
			if txErr := s.stockTxRepo.Create(txCtx, &stockTx); txErr != nil {
				return fmt.Errorf("failed to record transaction: %w", txErr)
			}
			created = append(created, stockTx)
		}

		if updateErr := s.orderRepo.UpdateStatus(txCtx, order.ID, model.OrderStatusDelivered); updateErr != nil {
			return fmt.Errorf("failed to update order status: %w", updateErr)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"items":       len(order.Items),
			"total_units": order.TotalItems(),
		})
		audit := &model.AuditLog{
			UserID:     actor,
			Action:     model.ActionFulfillOrder,
			EntityID:   order.ID.String(),
			EntityName: model.OrderStatusDelivered,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("order.delivered", map[string]interface{}{
		"order_id": orderID,
	})

	res := make([]TransactionResponse, 0, len(created))
	for i := range created {
		res = append(res, toTransactionResponse(&created[i]))
	}
	return res, nil
}

func (s *stockService) GetMedicineStock(ctx context.Context, medicineID string) (MedicineStockResponse, error) {
	mid, err := uuid.Parse(medicineID)
	if err != nil {
		return MedicineStockResponse{}, fmt.Errorf("invalid medicine id: %w", ledger.ErrNotFound)
	}

	medicine, err := s.medicineRepo.FindByID(ctx, mid)
	if err != nil {
		return MedicineStockResponse{}, err
	}

	batches, err := s.batchRepo.ListByMedicine(ctx, mid)
	if err != nil {
		return MedicineStockResponse{}, err
	}

	res := MedicineStockResponse{
		MedicineID:    medicine.ID.String(),
		MedicineName:  medicine.Name,
		Unit:          medicine.Unit,
		TotalQuantity: model.TotalQuantity(batches),
		Batches:       make([]BatchResponse, 0, len(batches)),
	}
	for i := range batches {
		res.Batches = append(res.Batches, toBatchResponse(&batches[i]))
	}
	return res, nil
}

func (s *stockService) ClearHistory(ctx context.Context, actorID string) (int64, error) {
	actor := parseActor(actorID)
	var removed int64

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		n, delErr := s.stockTxRepo.DeleteAll(txCtx)
		if delErr != nil {
			return delErr
		}
		removed = n

		details, _ := json.Marshal(map[string]interface{}{"removed": n})
		audit := &model.AuditLog{
			UserID:  actor,
			Action:  model.ActionClearHistory,
			Details: string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
