package handler

import (
	"net/http"

	"pharmatrack/internal/middleware"
	"pharmatrack/internal/model"
	"pharmatrack/internal/service"
	"pharmatrack/pkg/response"

	"github.com/gin-gonic/gin"
)

type StockHandler struct {
	stockService service.StockService
}

func NewStockHandler(stockService service.StockService) *StockHandler {
	return &StockHandler{stockService: stockService}
}

func (h *StockHandler) RegisterRoutes(router *gin.RouterGroup) {
	viewers := middleware.RequireRole(model.RoleAdmin, model.RoleSubAdmin, model.RoleStaff)
	editors := middleware.RequireRole(model.RoleAdmin, model.RoleSubAdmin)
	admins := middleware.RequireRole(model.RoleAdmin)

	stock := router.Group("/api")
	{
		stock.GET("/medicines/:id/stock", viewers, h.GetMedicineStock)
		stock.POST("/medicines/:id/stock-in", editors, h.StockIn)
		stock.POST("/medicines/:id/dispense", editors, h.Dispense)
		stock.DELETE("/transactions", admins, h.ClearHistory)
	}
}

// GetMedicineStock returns a medicine's batches with the derived total
// @Summary      Get medicine stock
// @Description  Returns the medicine's batches ordered by expiration with the derived total quantity
// @Tags         stock
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Medicine ID"
// @Success      200  {object}  response.Response{data=service.MedicineStockResponse}
// @Failure      404  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/medicines/{id}/stock [get]
func (h *StockHandler) GetMedicineStock(c *gin.Context) {
	stock, err := h.stockService.GetMedicineStock(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stock))
}

// StockIn receives a new batch for a medicine
// @Summary      Stock in
// @Description  Registers a new batch and records a matching `in` transaction atomically
// @Tags         stock
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Medicine ID"
// @Param        payload  body      service.StockInRequest  true  "Stock In Payload"
// @Success      201      {object}  response.Response{data=service.BatchResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/medicines/{id}/stock-in [post]
func (h *StockHandler) StockIn(c *gin.Context) {
	var req service.StockInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	actorID := c.GetString("userID")

	batch, err := h.stockService.StockIn(c.Request.Context(), actorID, c.Param("id"), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, batch))
}

// Dispense deducts stock earliest-expiration-first
// @Summary      Dispense stock
// @Description  Deducts the requested quantity across the medicine's batches, draining the soonest-expiring first; all-or-nothing
// @Tags         stock
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true  "Medicine ID"
// @Param        payload  body      service.DispenseRequest  true  "Dispense Payload"
// @Success      200      {object}  response.Response{data=[]service.TransactionResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/medicines/{id}/dispense [post]
func (h *StockHandler) Dispense(c *gin.Context) {
	var req service.DispenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	actorID := c.GetString("userID")

	transactions, err := h.stockService.Dispense(c.Request.Context(), actorID, c.Param("id"), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, transactions))
}

// ClearHistory wipes the transaction ledger
// @Summary      Clear transaction history
// @Description  Irreversibly deletes every stock transaction; batch quantities are untouched
// @Tags         stock
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/transactions [delete]
func (h *StockHandler) ClearHistory(c *gin.Context) {
	actorID := c.GetString("userID")

	removed, err := h.stockService.ClearHistory(c.Request.Context(), actorID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"removed": removed,
	}))
}
