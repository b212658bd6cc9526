package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"pharmatrack/internal/ledger"
	"pharmatrack/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReportFixture(t *testing.T) (ReportService, *memMedicineRepo, *memStockTxRepo) {
	t.Helper()
	medicineRepo := newMemMedicineRepo()
	stockTxRepo := &memStockTxRepo{}
	return NewReportService(medicineRepo, stockTxRepo), medicineRepo, stockTxRepo
}

func TestStockReportComputesPerMedicineValue(t *testing.T) {
	svc, medicineRepo, _ := newReportFixture(t)

	supplier := &model.Supplier{Name: "MediSupply Co"}
	supplier.ID = uuid.New()
	medicine := &model.Medicine{
		Name:       "Paracetamol 500mg",
		Unit:       "tablets",
		SupplierID: supplier.ID,
		Supplier:   supplier,
		Batches: []model.Batch{
			{Quantity: 10, UnitPrice: decimal.NewFromFloat(0.50)},
			{Quantity: 4, UnitPrice: decimal.NewFromFloat(1.25)},
		},
	}
	require.NoError(t, medicineRepo.Create(context.Background(), medicine))

	rows, err := svc.StockReport(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "Paracetamol 500mg", row.MedicineName)
	assert.Equal(t, "MediSupply Co", row.SupplierName)
	assert.Equal(t, 2, row.BatchCount)
	assert.Equal(t, 14, row.TotalQuantity)
	assert.Equal(t, "10.00", row.StockValue)
}

func TestStockReportEmptyCatalog(t *testing.T) {
	svc, _, _ := newReportFixture(t)

	rows, err := svc.StockReport(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTransactionHistoryFiltersByBatchAndType(t *testing.T) {
	svc, _, stockTxRepo := newReportFixture(t)

	batchA := uuid.New()
	batchB := uuid.New()
	for _, tx := range []model.StockTransaction{
		{BatchID: batchA, Type: model.TxTypeIn, Quantity: 10},
		{BatchID: batchA, Type: model.TxTypeOut, Quantity: 3},
		{BatchID: batchB, Type: model.TxTypeOut, Quantity: 7},
	} {
		tx := tx
		require.NoError(t, stockTxRepo.Create(context.Background(), &tx))
	}

	res, total, err := svc.TransactionHistory(context.Background(), TransactionHistoryRequest{
		BatchID: batchA.String(),
		Type:    model.TxTypeOut,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, res, 1)
	assert.Equal(t, 3, res[0].Quantity)
}

func TestTransactionHistoryRejectsMalformedID(t *testing.T) {
	svc, _, _ := newReportFixture(t)

	_, _, err := svc.TransactionHistory(context.Background(), TransactionHistoryRequest{MedicineID: "not-a-uuid"})
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, _, err = svc.TransactionHistory(context.Background(), TransactionHistoryRequest{BatchID: "nope"})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestTruncateCellKeepsRunesIntact(t *testing.T) {
	short := "Aspirin"
	assert.Equal(t, short, truncateCell(short, 34))

	long := strings.Repeat("Ibuprofén ", 5)
	cut := truncateCell(long, 24)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, 24, utf8.RuneCountInString(cut))
	assert.True(t, strings.HasSuffix(cut, "…"))
}

func TestStockReportPDFProducesDocument(t *testing.T) {
	svc, medicineRepo, _ := newReportFixture(t)

	require.NoError(t, medicineRepo.Create(context.Background(), &model.Medicine{
		Name: "Amoxicillin 500mg",
		Unit: "tablets",
		Batches: []model.Batch{
			{Quantity: 20, UnitPrice: decimal.NewFromFloat(2.00)},
		},
	}))

	out, err := svc.StockReportPDF(context.Background())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
