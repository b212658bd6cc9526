package handler

import (
	"net/http"

	"pharmatrack/internal/middleware"
	"pharmatrack/internal/model"
	"pharmatrack/internal/service"
	"pharmatrack/pkg/pagination"
	"pharmatrack/pkg/response"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	orderService service.OrderService
	stockService service.StockService
}

func NewOrderHandler(orderService service.OrderService, stockService service.StockService) *OrderHandler {
	return &OrderHandler{orderService: orderService, stockService: stockService}
}

func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	viewers := middleware.RequireRole(model.RoleAdmin, model.RoleSubAdmin, model.RoleStaff)
	editors := middleware.RequireRole(model.RoleAdmin, model.RoleSubAdmin)
	admins := middleware.RequireRole(model.RoleAdmin)

	orders := router.Group("/api/orders")
	{
		orders.GET("", viewers, h.ListOrders)
		orders.GET("/:id", viewers, h.GetOrder)
		orders.POST("", editors, h.CreateOrder)
		orders.POST("/:id/fulfill", editors, h.FulfillOrder)
		orders.POST("/:id/cancel", admins, h.CancelOrder)
	}
}

// ListOrders returns paginated purchase orders
// @Summary      List orders
// @Description  Retrieves a paginated list of purchase orders, optionally filtered by status
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        status  query     string  false  "Filter by status (pending, delivered, cancelled)"
// @Success      200     {object}  response.Response{data=response.PagedData}
// @Failure      500     {object}  response.Response
// @Router       /api/orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	params := pagination.Parse(c)
	status := c.Query("status")

	orders, total, err := h.orderService.ListOrders(c.Request.Context(), params.Page, params.Limit, status)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, orders, params.Page, params.Limit, total))
}

// GetOrder returns a single order with its items
// @Summary      Get order
// @Description  Retrieves an order by ID with its line items
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=service.OrderResponse}
// @Failure      404  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// CreateOrder places a new pending purchase order
// @Summary      Create order
// @Description  Creates a pending purchase order; every line item is validated before anything is written
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateOrderRequest  true  "Create Order Payload"
// @Success      201      {object}  response.Response{data=service.OrderResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	actorID := c.GetString("userID")

	order, err := h.orderService.CreateOrder(c.Request.Context(), actorID, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, order))
}

// FulfillOrder converts a pending order into stock
// @Summary      Fulfill order
// @Description  Receives every line item of a pending order into stock atomically and marks the order delivered
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=[]service.TransactionResponse}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/orders/{id}/fulfill [post]
func (h *OrderHandler) FulfillOrder(c *gin.Context) {
	actorID := c.GetString("userID")

	transactions, err := h.stockService.FulfillOrder(c.Request.Context(), actorID, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, transactions))
}

// CancelOrder cancels a pending order
// @Summary      Cancel order
// @Description  Cancels a pending order; delivered or cancelled orders are rejected
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=service.OrderResponse}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/orders/{id}/cancel [post]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	actorID := c.GetString("userID")

	order, err := h.orderService.CancelOrder(c.Request.Context(), actorID, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}
