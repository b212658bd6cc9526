package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"pharmatrack/internal/ledger"
	"pharmatrack/internal/model"
	"pharmatrack/internal/repository"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type StockReportRow struct {
	MedicineID    string `json:"medicine_id"`
	MedicineName  string `json:"medicine_name"`
	GenericName   string `json:"generic_name"`
	Unit          string `json:"unit"`
	SupplierName  string `json:"supplier_name"`
	BatchCount    int    `json:"batch_count"`
	TotalQuantity int    `json:"total_quantity"`
	StockValue    string `json:"stock_value"`
}

type TransactionHistoryRequest struct {
	MedicineID string `form:"medicine_id"`
	BatchID    string `form:"batch_id"`
	Type       string `form:"type"`
	TodayOnly  bool   `form:"today_only"`
	Page       int    `form:"page"`
	Limit      int    `form:"limit"`
}

// ReportService builds the stock and movement reports. The PDF variant
// renders the same rows the JSON variant returns.
type ReportService interface {
	StockReport(ctx context.Context) ([]StockReportRow, error)
	TransactionHistory(ctx context.Context, req TransactionHistoryRequest) ([]TransactionResponse, int64, error)
	StockReportPDF(ctx context.Context) ([]byte, error)
}

type reportService struct {
	medicineRepo repository.MedicineRepository
	stockTxRepo  repository.StockTransactionRepository
}

func NewReportService(
	medicineRepo repository.MedicineRepository,
	stockTxRepo repository.StockTransactionRepository,
) ReportService {
	return &reportService{
		medicineRepo: medicineRepo,
		stockTxRepo:  stockTxRepo,
	}
}

func (s *reportService) StockReport(ctx context.Context) ([]StockReportRow, error) {
	// The report covers every medicine, so page through the catalog in
	// fixed-size chunks rather than loading it in one query.
	const chunk = 200

	rows := make([]StockReportRow, 0, chunk)
	for page := 1; ; page++ {
		medicines, total, err := s.medicineRepo.List(ctx, page, chunk, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list medicines: %w", err)
		}
		for i := range medicines {
			rows = append(rows, toStockReportRow(&medicines[i]))
		}
		if int64(page*chunk) >= total || len(medicines) == 0 {
			break
		}
	}
	return rows, nil
}

func toStockReportRow(m *model.Medicine) StockReportRow {
	value := decimal.Zero
	for _, b := range m.Batches {
		value = value.Add(b.UnitPrice.Mul(decimal.NewFromInt(int64(b.Quantity))))
	}

	supplierName := ""
	if m.Supplier != nil {
		supplierName = m.Supplier.Name
	}

	return StockReportRow{
		MedicineID:    m.ID.String(),
		MedicineName:  m.Name,
		GenericName:   m.GenericName,
		Unit:          m.Unit,
		SupplierName:  supplierName,
		BatchCount:    len(m.Batches),
		TotalQuantity: model.TotalQuantity(m.Batches),
		StockValue:    value.StringFixed(2),
	}
}

func (s *reportService) TransactionHistory(ctx context.Context, req TransactionHistoryRequest) ([]TransactionResponse, int64, error) {
	filter := repository.TransactionFilter{
		Type:      req.Type,
		TodayOnly: req.TodayOnly,
		Page:      req.Page,
		Limit:     req.Limit,
	}
	if req.MedicineID != "" {
		id, err := uuid.Parse(req.MedicineID)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid medicine_id: %w", ledger.ErrNotFound)
		}
		filter.MedicineID = id
	}
	if req.BatchID != "" {
		id, err := uuid.Parse(req.BatchID)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid batch_id: %w", ledger.ErrNotFound)
		}
		filter.BatchID = id
	}

	transactions, total, err := s.stockTxRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}

	res := make([]TransactionResponse, 0, len(transactions))
	for i := range transactions {
		res = append(res, toTransactionResponse(&transactions[i]))
	}
	return res, total, nil
}

// truncateCell shortens a value to fit a table column. Truncation happens
// on runes so multi-byte names stay valid UTF-8.
func truncateCell(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// StockReportPDF renders the stock report as an A4 table, one row per
// medicine, with a grand total line at the bottom.
func (s *reportService) StockReportPDF(ctx context.Context) ([]byte, error) {
	rows, err := s.StockReport(ctx)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 14, 12)
	pdf.SetAutoPageBreak(true, 16)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 24

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 8, "Stock Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, time.Now().Format("02/01/2006 15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	colName := contentW * 0.30
	colSupplier := contentW * 0.22
	colBatches := contentW * 0.12
	colQty := contentW * 0.14
	colValue := contentW * 0.22

	header := func() {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.CellFormat(colName, 6, "Medicine", "B", 0, "L", false, 0, "")
		pdf.CellFormat(colSupplier, 6, "Supplier", "B", 0, "L", false, 0, "")
		pdf.CellFormat(colBatches, 6, "Batches", "B", 0, "C", false, 0, "")
		pdf.CellFormat(colQty, 6, "Quantity", "B", 0, "R", false, 0, "")
		pdf.CellFormat(colValue, 6, "Value", "B", 1, "R", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
	}
	header()

	grandTotal := decimal.Zero
	for _, row := range rows {
		if pdf.GetY() > 270 {
			pdf.AddPage()
			header()
		}

		name := truncateCell(row.MedicineName, 34)
		supplier := truncateCell(row.SupplierName, 24)

		pdf.CellFormat(colName, 5, name, "", 0, "L", false, 0, "")
		pdf.CellFormat(colSupplier, 5, supplier, "", 0, "L", false, 0, "")
		pdf.CellFormat(colBatches, 5, fmt.Sprintf("%d", row.BatchCount), "", 0, "C", false, 0, "")
		pdf.CellFormat(colQty, 5, fmt.Sprintf("%d %s", row.TotalQuantity, row.Unit), "", 0, "R", false, 0, "")
		pdf.CellFormat(colValue, 5, "$"+row.StockValue, "", 1, "R", false, 0, "")

		if v, err := decimal.NewFromString(row.StockValue); err == nil {
			grandTotal = grandTotal.Add(v)
		}
	}

	pdf.Ln(2)
	pdf.Line(12, pdf.GetY(), pageW-12, pdf.GetY())
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(colName+colSupplier+colBatches+colQty, 6, "TOTAL:", "", 0, "L", false, 0, "")
	pdf.CellFormat(colValue, 6, "$"+grandTotal.StringFixed(2), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render report: %w", err)
	}
	return buf.Bytes(), nil
}
