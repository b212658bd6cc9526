package service

import (
	"context"
	"testing"

	"pharmatrack/internal/ledger"
	"pharmatrack/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderFixture struct {
	svc          OrderService
	orderRepo    *memOrderRepo
	medicineRepo *memMedicineRepo
	supplierRepo *memSupplierRepo
	auditRepo    *memAuditRepo
	supplier     *model.Supplier
	medicine     *model.Medicine
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()

	f := &orderFixture{
		orderRepo:    newMemOrderRepo(),
		medicineRepo: newMemMedicineRepo(),
		supplierRepo: newMemSupplierRepo(),
		auditRepo:    &memAuditRepo{},
	}
	f.svc = NewOrderService(f.orderRepo, f.medicineRepo, f.supplierRepo, f.auditRepo, &stubTxManager{})

	f.supplier = &model.Supplier{Name: "MediSupply Co"}
	require.NoError(t, f.supplierRepo.Create(context.Background(), f.supplier))

	f.medicine = &model.Medicine{
		Name:       "Ibuprofen 200mg",
		Unit:       "tablets",
		SupplierID: f.supplier.ID,
	}
	require.NoError(t, f.medicineRepo.Create(context.Background(), f.medicine))
	return f
}

func TestCreateOrderStartsPending(t *testing.T) {
	f := newOrderFixture(t)

	res, err := f.svc.CreateOrder(context.Background(), uuid.New().String(), CreateOrderRequest{
		SupplierID: f.supplier.ID.String(),
		Items: []OrderItemRequest{
			{MedicineID: f.medicine.ID.String(), Quantity: 50, UnitPrice: "0.80"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusPending, res.Status)
	assert.Equal(t, 50, res.TotalItems)
	assert.Equal(t, "40.00", res.TotalAmount)
	require.Len(t, res.Items, 1)
	assert.Equal(t, f.medicine.ID.String(), res.Items[0].MedicineID)
	assert.Equal(t, model.ActionCreateOrder, f.auditRepo.lastAction())
}

func TestCreateOrderValidatesItemsBeforeWriting(t *testing.T) {
	f := newOrderFixture(t)

	// Second item references an unknown medicine; nothing may be persisted.
	_, err := f.svc.CreateOrder(context.Background(), "", CreateOrderRequest{
		SupplierID: f.supplier.ID.String(),
		Items: []OrderItemRequest{
			{MedicineID: f.medicine.ID.String(), Quantity: 10, UnitPrice: "1.00"},
			{MedicineID: uuid.New().String(), Quantity: 5, UnitPrice: "2.00"},
		},
	})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.Empty(t, f.orderRepo.orders)
	assert.Empty(t, f.auditRepo.entries)
}

func TestCreateOrderRejectsNonPositiveItemQuantity(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), "", CreateOrderRequest{
		SupplierID: f.supplier.ID.String(),
		Items: []OrderItemRequest{
			{MedicineID: f.medicine.ID.String(), Quantity: 0, UnitPrice: "1.00"},
		},
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)
	assert.Empty(t, f.orderRepo.orders)
}

func TestCreateOrderUnknownSupplier(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), "", CreateOrderRequest{
		SupplierID: uuid.New().String(),
		Items: []OrderItemRequest{
			{MedicineID: f.medicine.ID.String(), Quantity: 10, UnitPrice: "1.00"},
		},
	})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCancelOrderPendingOnly(t *testing.T) {
	f := newOrderFixture(t)

	created, err := f.svc.CreateOrder(context.Background(), "", CreateOrderRequest{
		SupplierID: f.supplier.ID.String(),
		Items: []OrderItemRequest{
			{MedicineID: f.medicine.ID.String(), Quantity: 10, UnitPrice: "1.00"},
		},
	})
	require.NoError(t, err)

	cancelled, err := f.svc.CancelOrder(context.Background(), uuid.New().String(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, model.ActionCancelOrder, f.auditRepo.lastAction())

	// A second cancel hits the finalized guard.
	_, err = f.svc.CancelOrder(context.Background(), "", created.ID)
	assert.ErrorIs(t, err, ledger.ErrAlreadyFinalized)
}

func TestCancelDeliveredOrderRejected(t *testing.T) {
	f := newOrderFixture(t)

	order := &model.Order{
		SupplierID: f.supplier.ID,
		Status:     model.OrderStatusDelivered,
	}
	require.NoError(t, f.orderRepo.Create(context.Background(), order))

	_, err := f.svc.CancelOrder(context.Background(), "", order.ID.String())
	assert.ErrorIs(t, err, ledger.ErrAlreadyFinalized)
	assert.Equal(t, model.OrderStatusDelivered, order.Status)
}

func TestListOrdersFiltersByStatus(t *testing.T) {
	f := newOrderFixture(t)

	for _, status := range []string{model.OrderStatusPending, model.OrderStatusPending, model.OrderStatusDelivered} {
		require.NoError(t, f.orderRepo.Create(context.Background(), &model.Order{
			SupplierID: f.supplier.ID,
			Status:     status,
		}))
	}

	pending, total, err := f.svc.ListOrders(context.Background(), 1, 20, model.OrderStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, pending, 2)

	all, total, err := f.svc.ListOrders(context.Background(), 1, 20, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)
}

func TestGetOrderIncludesItems(t *testing.T) {
	f := newOrderFixture(t)

	order := &model.Order{SupplierID: f.supplier.ID, Status: model.OrderStatusPending}
	require.NoError(t, f.orderRepo.Create(context.Background(), order))
	require.NoError(t, f.orderRepo.CreateItem(context.Background(), &model.OrderItem{
		OrderID:    order.ID,
		MedicineID: f.medicine.ID,
		Quantity:   12,
		UnitPrice:  decimal.NewFromFloat(2.50),
	}))

	res, err := f.svc.GetOrder(context.Background(), order.ID.String())
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 12, res.Items[0].Quantity)
	assert.Equal(t, "30.00", res.TotalAmount)
}
