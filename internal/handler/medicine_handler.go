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

type MedicineHandler struct {
	medicineService service.MedicineService
}

func NewMedicineHandler(medicineService service.MedicineService) *MedicineHandler {
	return &MedicineHandler{medicineService: medicineService}
}

func (h *MedicineHandler) RegisterRoutes(router *gin.RouterGroup) {
	viewers := middleware.RequireRole(model.RoleAdmin, model.RoleSubAdmin, model.RoleStaff)
	editors := middleware.RequireRole(model.RoleAdmin, model.RoleSubAdmin)
	admins := middleware.RequireRole(model.RoleAdmin)

	medicines := router.Group("/api/medicines")
	{
		medicines.GET("", viewers, h.ListMedicines)
		medicines.GET("/:id", viewers, h.GetMedicine)
		medicines.POST("", editors, h.CreateMedicine)
		medicines.PUT("/:id", editors, h.UpdateMedicine)
		medicines.DELETE("/:id", admins, h.DeleteMedicine)
	}
}

// ListMedicines returns a paginated medicine catalog
// @Summary      List medicines
// @Description  Retrieves a paginated list of medicines with batch totals
// @Tags         medicines
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        search  query     string  false  "Search by name or generic name"
// @Success      200     {object}  response.Response{data=response.PagedData}
// @Failure      500     {object}  response.Response
// @Router       /api/medicines [get]
func (h *MedicineHandler) ListMedicines(c *gin.Context) {
	params := pagination.Parse(c)
	search := c.Query("search")

	medicines, total, err := h.medicineService.ListMedicines(c.Request.Context(), params.Page, params.Limit, search)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, medicines, params.Page, params.Limit, total))
}

// GetMedicine returns a single medicine
// @Summary      Get medicine
// @Description  Retrieves a medicine by ID with its supplier and batch totals
// @Tags         medicines
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Medicine ID"
// @Success      200  {object}  response.Response{data=service.MedicineResponse}
// @Failure      404  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/medicines/{id} [get]
func (h *MedicineHandler) GetMedicine(c *gin.Context) {
	medicine, err := h.medicineService.GetMedicine(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, medicine))
}

// CreateMedicine registers a new medicine
// @Summary      Create medicine
// @Description  Creates a new medicine referencing an existing supplier
// @Tags         medicines
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateMedicineRequest  true  "Create Medicine Payload"
// @Success      201      {object}  response.Response{data=service.MedicineResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/medicines [post]
func (h *MedicineHandler) CreateMedicine(c *gin.Context) {
	var req service.CreateMedicineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	actorID := c.GetString("userID")

	medicine, err := h.medicineService.CreateMedicine(c.Request.Context(), actorID, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, medicine))
}

// UpdateMedicine updates a medicine's metadata
// @Summary      Update medicine
// @Description  Updates an existing medicine's details by ID
// @Tags         medicines
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Medicine ID"
// @Param        payload  body      service.UpdateMedicineRequest  true  "Update Medicine Payload"
// @Success      200      {object}  response.Response{data=service.MedicineResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/medicines/{id} [put]
func (h *MedicineHandler) UpdateMedicine(c *gin.Context) {
	var req service.UpdateMedicineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	actorID := c.GetString("userID")

	medicine, err := h.medicineService.UpdateMedicine(c.Request.Context(), actorID, c.Param("id"), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, medicine))
}

// DeleteMedicine removes a medicine with its batches and history
// @Summary      Delete medicine
// @Description  Deletes a medicine; its batches and their transactions are removed with it
// @Tags         medicines
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Medicine ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/medicines/{id} [delete]
func (h *MedicineHandler) DeleteMedicine(c *gin.Context) {
	actorID := c.GetString("userID")

	if err := h.medicineService.DeleteMedicine(c.Request.Context(), actorID, c.Param("id")); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Medicine deleted successfully"))
}
