package handler

import (
	"net/http"

	"pharmatrack/internal/middleware"
	"pharmatrack/internal/model"
	"pharmatrack/internal/service"
	"pharmatrack/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
}

func NewStatisticsHandler(statisticsService service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/statistics")
	group.Use(middleware.RequireRole(model.RoleAdmin, model.RoleSubAdmin, model.RoleStaff))
	{
		group.GET("/dashboard", h.GetDashboard)
	}
}

// GetDashboard returns the aggregated inventory dashboard
// @Summary      Get dashboard statistics
// @Description  Returns stock value, pending orders, low stock batches, expiring batches and today's movements
// @Tags         statistics
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.DashboardResponse}
// @Failure      500  {object}  response.Response
// @Router       /api/statistics/dashboard [get]
func (h *StatisticsHandler) GetDashboard(c *gin.Context) {
	dashboard, err := h.statisticsService.GetDashboard(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to build dashboard: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, dashboard))
}
