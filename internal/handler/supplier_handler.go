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

type SupplierHandler struct {
	supplierService service.SupplierService
}

func NewSupplierHandler(supplierService service.SupplierService) *SupplierHandler {
	return &SupplierHandler{supplierService: supplierService}
}

func (h *SupplierHandler) RegisterRoutes(router *gin.RouterGroup) {
	viewers := middleware.RequireRole(model.RoleAdmin, model.RoleSubAdmin, model.RoleStaff)
	editors := middleware.RequireRole(model.RoleAdmin, model.RoleSubAdmin)
	admins := middleware.RequireRole(model.RoleAdmin)

	suppliers := router.Group("/api/suppliers")
	{
		suppliers.GET("", viewers, h.ListSuppliers)
		suppliers.GET("/:id", viewers, h.GetSupplier)
		suppliers.POST("", editors, h.CreateSupplier)
		suppliers.PUT("/:id", editors, h.UpdateSupplier)
		suppliers.DELETE("/:id", admins, h.DeleteSupplier)
	}
}

// ListSuppliers returns a paginated supplier directory
// @Summary      List suppliers
// @Description  Retrieves a paginated list of suppliers
// @Tags         suppliers
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        search  query     string  false  "Search by supplier name"
// @Success      200     {object}  response.Response{data=response.PagedData}
// @Failure      500     {object}  response.Response
// @Router       /api/suppliers [get]
func (h *SupplierHandler) ListSuppliers(c *gin.Context) {
	params := pagination.Parse(c)
	search := c.Query("search")

	suppliers, total, err := h.supplierService.ListSuppliers(c.Request.Context(), params.Page, params.Limit, search)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, suppliers, params.Page, params.Limit, total))
}

// GetSupplier returns a single supplier
// @Summary      Get supplier
// @Description  Retrieves a supplier by ID
// @Tags         suppliers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Supplier ID"
// @Success      200  {object}  response.Response{data=service.SupplierResponse}
// @Failure      404  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/suppliers/{id} [get]
func (h *SupplierHandler) GetSupplier(c *gin.Context) {
	supplier, err := h.supplierService.GetSupplier(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, supplier))
}

// CreateSupplier registers a new supplier
// @Summary      Create supplier
// @Description  Creates a new supplier entry
// @Tags         suppliers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateSupplierRequest  true  "Create Supplier Payload"
// @Success      201      {object}  response.Response{data=service.SupplierResponse}
// @Failure      400      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/suppliers [post]
func (h *SupplierHandler) CreateSupplier(c *gin.Context) {
	var req service.CreateSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	actorID := c.GetString("userID")

	supplier, err := h.supplierService.CreateSupplier(c.Request.Context(), actorID, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, supplier))
}

// UpdateSupplier updates a supplier's details
// @Summary      Update supplier
// @Description  Updates an existing supplier's details by ID
// @Tags         suppliers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Supplier ID"
// @Param        payload  body      service.UpdateSupplierRequest  true  "Update Supplier Payload"
// @Success      200      {object}  response.Response{data=service.SupplierResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/suppliers/{id} [put]
func (h *SupplierHandler) UpdateSupplier(c *gin.Context) {
	var req service.UpdateSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	actorID := c.GetString("userID")

	supplier, err := h.supplierService.UpdateSupplier(c.Request.Context(), actorID, c.Param("id"), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, supplier))
}

// DeleteSupplier removes a supplier
// @Summary      Delete supplier
// @Description  Soft deletes a supplier by ID
// @Tags         suppliers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Supplier ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/suppliers/{id} [delete]
func (h *SupplierHandler) DeleteSupplier(c *gin.Context) {
	actorID := c.GetString("userID")

	if err := h.supplierService.DeleteSupplier(c.Request.Context(), actorID, c.Param("id")); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Supplier deleted successfully"))
}
