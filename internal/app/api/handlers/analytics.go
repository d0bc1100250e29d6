package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/repairdesk/internal/app/service/analytics"
	"github.com/fatflowers/repairdesk/pkg/response"
)

// ApiCustomerAnalytics
// @Summary      Customer analytics
// @Description  Loyalty tiers, RFM segments and monthly retention. Without type all three are returned.
// @Tags         Analytics
// @Produce      json
// @Param        type  query     string  false  "loyalty, segmentation or retention"
// @Success      200   {object}  analytics.CustomerReport
// @Failure      400   {object}  response.ErrorBody
// @Router       /api/v1/analytics/customers [get]
func ApiCustomerAnalytics(as *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := as.Customers(c.Request.Context(), analytics.CustomerAnalysis(c.Query("type")))
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// ApiTechnicianAnalytics
// @Summary      Technician analytics
// @Tags         Analytics
// @Produce      json
// @Param        type          query     string  false  "performance, efficiency or comparison"
// @Param        technicianId  query     string  false  "Restrict to one technician"
// @Param        period        query     string  false  "daily, weekly, monthly or yearly"
// @Success      200           {object}  analytics.TechnicianReport
// @Failure      400           {object}  response.ErrorBody
// @Router       /api/v1/analytics/technicians [get]
func ApiTechnicianAnalytics(as *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q analytics.TechnicianQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			response.BadRequest(c, err)
			return
		}
		report, err := as.Technicians(c.Request.Context(), q)
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func RegisterAnalyticsRoutes(r gin.IRouter, as *analytics.Service) {
	g := r.Group("/analytics")
	g.GET("/customers", ApiCustomerAnalytics(as))
	g.GET("/technicians", ApiTechnicianAnalytics(as))
}
