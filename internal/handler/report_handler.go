package handler

import (
	"fmt"
	"net/http"
	"time"

	"pharmatrack/internal/middleware"
	"pharmatrack/internal/model"
	"pharmatrack/internal/service"
	"pharmatrack/pkg/pagination"
	"pharmatrack/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService service.ReportService
}

func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	viewers := middleware.RequireRole(model.RoleAdmin, model.RoleSubAdmin, model.RoleStaff)

	reports := router.Group("/api/reports")
	{
		reports.GET("/stock", viewers, h.GetStockReport)
		reports.GET("/stock/pdf", viewers, h.GetStockReportPDF)
		reports.GET("/transactions", viewers, h.GetTransactionHistory)
	}
}

// GetStockReport returns the stock position per medicine
// @Summary      Stock report
// @Description  Returns one row per medicine with batch count, total quantity and stock value
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.StockReportRow}
// @Failure      500  {object}  response.Response
// @Router       /api/reports/stock [get]
func (h *ReportHandler) GetStockReport(c *gin.Context) {
	rows, err := h.reportService.StockReport(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to build stock report: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}

// GetStockReportPDF renders the stock report as a downloadable PDF
// @Summary      Stock report PDF
// @Description  Renders the stock report as an A4 PDF document
// @Tags         reports
// @Security     BearerAuth
// @Produce      application/pdf
// @Success      200  {file}    binary
// @Failure      500  {object}  response.Response
// @Router       /api/reports/stock/pdf [get]
func (h *ReportHandler) GetStockReportPDF(c *gin.Context) {
	pdf, err := h.reportService.StockReportPDF(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to render report: "+err.Error()))
		return
	}

	fileName := fmt.Sprintf("stock_report_%s.pdf", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// GetTransactionHistory returns the filtered movement ledger
// @Summary      Transaction history
// @Description  Retrieves stock transactions filtered by medicine, batch, type or today only
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        medicine_id  query     string  false  "Filter by medicine ID"
// @Param        batch_id     query     string  false  "Filter by batch ID"
// @Param        type         query     string  false  "Filter by type (in, out)"
// @Param        today_only   query     bool    false  "Only today's transactions"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Number of items per page (default 20)"
// @Success      200          {object}  response.Response{data=response.PagedData}
// @Failure      400          {object}  response.Response
// @Failure      500          {object}  response.Response
// @Router       /api/reports/transactions [get]
func (h *ReportHandler) GetTransactionHistory(c *gin.Context) {
	params := pagination.Parse(c)

	req := service.TransactionHistoryRequest{
		MedicineID: c.Query("medicine_id"),
		BatchID:    c.Query("batch_id"),
		Type:       c.Query("type"),
		TodayOnly:  c.Query("today_only") == "true",
		Page:       params.Page,
		Limit:      params.Limit,
	}

	transactions, total, err := h.reportService.TransactionHistory(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, transactions, params.Page, params.Limit, total))
}
