package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"pharmatrack/internal/ledger"
	"pharmatrack/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stockFixture struct {
	svc          StockService
	medicineRepo *memMedicineRepo
	batchRepo    *memBatchRepo
	stockTxRepo  *memStockTxRepo
	orderRepo    *memOrderRepo
	auditRepo    *memAuditRepo
	txManager    *stubTxManager
	medicine     *model.Medicine
}

func newStockFixture(t *testing.T) *stockFixture {
	t.Helper()

	f := &stockFixture{
		medicineRepo: newMemMedicineRepo(),
		batchRepo:    newMemBatchRepo(),
		stockTxRepo:  &memStockTxRepo{},
		orderRepo:    newMemOrderRepo(),
		auditRepo:    &memAuditRepo{},
		txManager:    &stubTxManager{},
	}
	f.svc = NewStockService(f.medicineRepo, f.batchRepo, f.stockTxRepo, f.orderRepo, f.auditRepo, f.txManager, nil)

	f.medicine = &model.Medicine{
		Name:       "Amoxicillin 500mg",
		Unit:       "tablets",
		SupplierID: uuid.New(),
	}
	require.NoError(t, f.medicineRepo.Create(context.Background(), f.medicine))
	return f
}

func (f *stockFixture) addBatch(t *testing.T, number string, quantity int, daysUntilExpiry int) *model.Batch {
	t.Helper()
	batch := &model.Batch{
		MedicineID:     f.medicine.ID,
		BatchNumber:    number,
		Quantity:       quantity,
		ExpirationDate: time.Now().AddDate(0, 0, daysUntilExpiry),
		UnitPrice:      decimal.NewFromFloat(1.50),
	}
	require.NoError(t, f.batchRepo.Create(context.Background(), batch))
	return batch
}

func TestStockInCreatesBatchAndInTransaction(t *testing.T) {
	f := newStockFixture(t)
	actor := uuid.New()

	res, err := f.svc.StockIn(context.Background(), actor.String(), f.medicine.ID.String(), StockInRequest{
		BatchNumber:    "LOT-2026-001",
		Quantity:       100,
		ExpirationDate: "2027-06-30",
		UnitPrice:      "2.75",
	})
	require.NoError(t, err)

	assert.Equal(t, "LOT-2026-001", res.BatchNumber)
	assert.Equal(t, 100, res.Quantity)
	assert.Equal(t, "2.75", res.UnitPrice)
	assert.False(t, res.Expired)

	require.Len(t, f.stockTxRepo.transactions, 1)
	tx := f.stockTxRepo.transactions[0]
	assert.Equal(t, model.TxTypeIn, tx.Type)
	assert.Equal(t, 100, tx.Quantity)
	require.NotNil(t, tx.PerformedBy)
	assert.Equal(t, actor, *tx.PerformedBy)

	assert.Equal(t, model.ActionStockIn, f.auditRepo.lastAction())
	assert.Equal(t, 1, f.txManager.calls)
}

func TestStockInRejectsNonPositiveQuantity(t *testing.T) {
	f := newStockFixture(t)

	for _, quantity := range []int{0, -5} {
		_, err := f.svc.StockIn(context.Background(), "", f.medicine.ID.String(), StockInRequest{
			BatchNumber:    "LOT-BAD",
			Quantity:       quantity,
			ExpirationDate: "2027-01-01",
			UnitPrice:      "1.00",
		})
		assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)
	}
	assert.Empty(t, f.batchRepo.batches)
	assert.Empty(t, f.stockTxRepo.transactions)
}

func TestStockInUnknownMedicine(t *testing.T) {
	f := newStockFixture(t)

	_, err := f.svc.StockIn(context.Background(), "", uuid.New().String(), StockInRequest{
		BatchNumber:    "LOT-ORPHAN",
		Quantity:       10,
		ExpirationDate: "2027-01-01",
		UnitPrice:      "1.00",
	})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.Empty(t, f.batchRepo.batches)
}

func TestDispenseDrainsEarliestExpiringFirst(t *testing.T) {
	f := newStockFixture(t)
	early := f.addBatch(t, "LOT-EARLY", 5, 30)
	late := f.addBatch(t, "LOT-LATE", 10, 90)

	txs, err := f.svc.Dispense(context.Background(), uuid.New().String(), f.medicine.ID.String(), DispenseRequest{
		Quantity: 7,
		Note:     "ward 3 dispense",
	})
	require.NoError(t, err)

	// 5 from the earlier-expiring batch, the remaining 2 from the later one.
	require.Len(t, txs, 2)
	assert.Equal(t, early.ID.String(), txs[0].BatchID)
	assert.Equal(t, 5, txs[0].Quantity)
	assert.Equal(t, late.ID.String(), txs[1].BatchID)
	assert.Equal(t, 2, txs[1].Quantity)
	for _, tx := range txs {
		assert.Equal(t, model.TxTypeOut, tx.Type)
	}

	assert.Equal(t, 0, early.Quantity)
	assert.Equal(t, 8, late.Quantity)
	assert.Equal(t, model.ActionDispense, f.auditRepo.lastAction())
}

func TestDispenseTieBreaksByCreationOrder(t *testing.T) {
	f := newStockFixture(t)
	first := f.addBatch(t, "LOT-A", 4, 45)
	second := f.addBatch(t, "LOT-B", 4, 45)

	txs, err := f.svc.Dispense(context.Background(), "", f.medicine.ID.String(), DispenseRequest{Quantity: 6})
	require.NoError(t, err)

	require.Len(t, txs, 2)
	assert.Equal(t, first.ID.String(), txs[0].BatchID)
	assert.Equal(t, 4, txs[0].Quantity)
	assert.Equal(t, second.ID.String(), txs[1].BatchID)
	assert.Equal(t, 2, txs[1].Quantity)
}

func TestDispenseSkipsDrainedBatches(t *testing.T) {
	f := newStockFixture(t)
	f.addBatch(t, "LOT-EMPTY", 0, 10)
	stocked := f.addBatch(t, "LOT-STOCKED", 9, 60)

	txs, err := f.svc.Dispense(context.Background(), "", f.medicine.ID.String(), DispenseRequest{Quantity: 3})
	require.NoError(t, err)

	require.Len(t, txs, 1)
	assert.Equal(t, stocked.ID.String(), txs[0].BatchID)
	assert.Equal(t, 6, stocked.Quantity)
}

func TestDispenseInsufficientStockLeavesStateUntouched(t *testing.T) {
	f := newStockFixture(t)
	batch := f.addBatch(t, "LOT-ONLY", 5, 30)

	_, err := f.svc.Dispense(context.Background(), "", f.medicine.ID.String(), DispenseRequest{Quantity: 7})
	require.Error(t, err)

	assert.ErrorIs(t, err, ledger.ErrInsufficientStock)
	var insufficient *ledger.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 7, insufficient.Requested)
	assert.Equal(t, 5, insufficient.Available)
	assert.Equal(t, 2, insufficient.Shortfall())

	assert.Equal(t, 5, batch.Quantity)
	assert.Empty(t, f.stockTxRepo.transactions)
	assert.Empty(t, f.auditRepo.entries)
}

func TestDispenseRejectsNonPositiveQuantity(t *testing.T) {
	f := newStockFixture(t)
	f.addBatch(t, "LOT-ONLY", 5, 30)

	for _, quantity := range []int{0, -1} {
		_, err := f.svc.Dispense(context.Background(), "", f.medicine.ID.String(), DispenseRequest{Quantity: quantity})
		assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)
	}
	assert.Equal(t, 0, f.txManager.calls)
}

func TestGetMedicineStockDerivesTotal(t *testing.T) {
	f := newStockFixture(t)
	f.addBatch(t, "LOT-1", 5, 30)
	f.addBatch(t, "LOT-2", 10, 90)
	f.addBatch(t, "LOT-3", 0, 10)

	res, err := f.svc.GetMedicineStock(context.Background(), f.medicine.ID.String())
	require.NoError(t, err)

	assert.Equal(t, f.medicine.Name, res.MedicineName)
	assert.Equal(t, "tablets", res.Unit)
	assert.Equal(t, 15, res.TotalQuantity)
	require.Len(t, res.Batches, 3)
	// Snapshot arrives expiration-ascending.
	assert.Equal(t, "LOT-3", res.Batches[0].BatchNumber)
	assert.Equal(t, "LOT-1", res.Batches[1].BatchNumber)
	assert.Equal(t, "LOT-2", res.Batches[2].BatchNumber)
}

func TestClearHistoryRemovesAllTransactions(t *testing.T) {
	f := newStockFixture(t)
	batch := f.addBatch(t, "LOT-1", 20, 60)

	_, err := f.svc.Dispense(context.Background(), "", f.medicine.ID.String(), DispenseRequest{Quantity: 5})
	require.NoError(t, err)
	require.NotEmpty(t, f.stockTxRepo.transactions)

	removed, err := f.svc.ClearHistory(context.Background(), uuid.New().String())
	require.NoError(t, err)

	assert.Equal(t, int64(1), removed)
	assert.Empty(t, f.stockTxRepo.transactions)
	// Batch quantities survive a history wipe.
	assert.Equal(t, 15, batch.Quantity)
	assert.Equal(t, model.ActionClearHistory, f.auditRepo.lastAction())
}

func (f *stockFixture) addPendingOrder(t *testing.T, quantity int) *model.Order {
	t.Helper()
	order := &model.Order{
		SupplierID: f.medicine.SupplierID,
		Status:     model.OrderStatusPending,
	}
	require.NoError(t, f.orderRepo.Create(context.Background(), order))
	require.NoError(t, f.orderRepo.CreateItem(context.Background(), &model.OrderItem{
		OrderID:    order.ID,
		MedicineID: f.medicine.ID,
		Quantity:   quantity,
		UnitPrice:  decimal.NewFromFloat(3.20),
	}))
	return order
}

func TestFulfillOrderAugmentsLatestExpiringBatch(t *testing.T) {
	f := newStockFixture(t)
	f.addBatch(t, "LOT-SOON", 5, 30)
	latest := f.addBatch(t, "LOT-LATEST", 10, 180)
	order := f.addPendingOrder(t, 40)

	txs, err := f.svc.FulfillOrder(context.Background(), uuid.New().String(), order.ID.String())
	require.NoError(t, err)

	require.Len(t, txs, 1)
	assert.Equal(t, latest.ID.String(), txs[0].BatchID)
	assert.Equal(t, model.TxTypeIn, txs[0].Type)
	assert.Equal(t, 40, txs[0].Quantity)

	assert.Equal(t, 50, latest.Quantity)
	assert.Equal(t, model.OrderStatusDelivered, order.Status)
	assert.Equal(t, model.ActionFulfillOrder, f.auditRepo.lastAction())
}

func TestFulfillOrderCreatesBatchWhenAllExpired(t *testing.T) {
	f := newStockFixture(t)
	f.addBatch(t, "LOT-EXPIRED", 8, -3)
	order := f.addPendingOrder(t, 25)

	txs, err := f.svc.FulfillOrder(context.Background(), "", order.ID.String())
	require.NoError(t, err)
	require.Len(t, txs, 1)

	require.Len(t, f.batchRepo.batches, 2)
	created := f.batchRepo.batches[1]
	assert.Equal(t, "ORD-"+order.ID.String()[:8]+"-1", created.BatchNumber)
	assert.Equal(t, 25, created.Quantity)
	assert.Equal(t, "3.20", created.UnitPrice.StringFixed(2))

	// Fresh batch is dated one year out.
	wantExpiry := time.Now().AddDate(1, 0, 0)
	assert.WithinDuration(t, wantExpiry, created.ExpirationDate, 25*time.Hour)

	assert.Equal(t, model.OrderStatusDelivered, order.Status)
}

func TestFulfillOrderCreatesOneTransactionPerItem(t *testing.T) {
	f := newStockFixture(t)
	first := f.addBatch(t, "LOT-M1", 5, 120)

	other := &model.Medicine{Name: "Cetirizine 10mg", Unit: "tablets", SupplierID: f.medicine.SupplierID}
	require.NoError(t, f.medicineRepo.Create(context.Background(), other))
	second := &model.Batch{
		MedicineID:     other.ID,
		BatchNumber:    "LOT-M2",
		Quantity:       8,
		ExpirationDate: time.Now().AddDate(0, 0, 60),
		UnitPrice:      decimal.NewFromFloat(0.40),
	}
	require.NoError(t, f.batchRepo.Create(context.Background(), second))

	order := &model.Order{SupplierID: f.medicine.SupplierID, Status: model.OrderStatusPending}
	require.NoError(t, f.orderRepo.Create(context.Background(), order))
	require.NoError(t, f.orderRepo.CreateItem(context.Background(), &model.OrderItem{
		OrderID:    order.ID,
		MedicineID: f.medicine.ID,
		Quantity:   10,
		UnitPrice:  decimal.NewFromFloat(1.10),
	}))
	require.NoError(t, f.orderRepo.CreateItem(context.Background(), &model.OrderItem{
		OrderID:    order.ID,
		MedicineID: other.ID,
		Quantity:   4,
		UnitPrice:  decimal.NewFromFloat(0.40),
	}))

	txs, err := f.svc.FulfillOrder(context.Background(), uuid.New().String(), order.ID.String())
	require.NoError(t, err)

	// One `in` transaction per line item, each against its own medicine.
	require.Len(t, txs, 2)
	assert.Equal(t, first.ID.String(), txs[0].BatchID)
	assert.Equal(t, 10, txs[0].Quantity)
	assert.Equal(t, second.ID.String(), txs[1].BatchID)
	assert.Equal(t, 4, txs[1].Quantity)
	for _, tx := range txs {
		assert.Equal(t, model.TxTypeIn, tx.Type)
	}

	assert.Equal(t, 15, first.Quantity)
	assert.Equal(t, 12, second.Quantity)
	assert.Equal(t, model.OrderStatusDelivered, order.Status)
}

func TestStockInThenDispenseRestoresTotal(t *testing.T) {
	f := newStockFixture(t)
	f.addBatch(t, "LOT-BASE", 30, 200)

	before, err := f.svc.GetMedicineStock(context.Background(), f.medicine.ID.String())
	require.NoError(t, err)
	require.Equal(t, 30, before.TotalQuantity)

	_, err = f.svc.StockIn(context.Background(), "", f.medicine.ID.String(), StockInRequest{
		BatchNumber:    "LOT-ROUND",
		Quantity:       50,
		ExpirationDate: "2027-03-01",
		UnitPrice:      "1.00",
	})
	require.NoError(t, err)

	interim, err := f.svc.GetMedicineStock(context.Background(), f.medicine.ID.String())
	require.NoError(t, err)
	require.Equal(t, 80, interim.TotalQuantity)

	_, err = f.svc.Dispense(context.Background(), "", f.medicine.ID.String(), DispenseRequest{Quantity: 50})
	require.NoError(t, err)

	after, err := f.svc.GetMedicineStock(context.Background(), f.medicine.ID.String())
	require.NoError(t, err)
	assert.Equal(t, before.TotalQuantity, after.TotalQuantity)
}

func TestFulfillOrderRejectsFinalizedOrder(t *testing.T) {
	f := newStockFixture(t)
	f.addBatch(t, "LOT-1", 10, 90)

	for _, status := range []string{model.OrderStatusDelivered, model.OrderStatusCancelled} {
		order := f.addPendingOrder(t, 5)
		order.Status = status

		_, err := f.svc.FulfillOrder(context.Background(), "", order.ID.String())
		assert.ErrorIs(t, err, ledger.ErrAlreadyFinalized)
		assert.Equal(t, status, order.Status)
	}
	assert.Empty(t, f.stockTxRepo.transactions)
}

func TestFulfillOrderUnknownOrder(t *testing.T) {
	f := newStockFixture(t)

	_, err := f.svc.FulfillOrder(context.Background(), "", uuid.New().String())
	assert.True(t, errors.Is(err, ledger.ErrNotFound))
}
