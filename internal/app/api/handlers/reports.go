package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/repairdesk/internal/app/service/statistics"
	"github.com/fatflowers/repairdesk/pkg/response"
)

// ApiReport
// @Summary      Income and expense report
// @Description  Totals, per-ticket income and a per-day (monthly) or per-month (yearly) breakdown.
// @Tags         Reports
// @Produce      json
// @Param        type   query     string  false  "monthly or yearly"
// @Param        year   query     int     false  "Defaults to the current year"
// @Param        month  query     int     false  "1-12, monthly reports only"
// @Success      200    {object}  statistics.Report
// @Failure      400    {object}  response.ErrorBody
// @Router       /api/v1/reports [get]
func ApiReport(stats *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.ReportRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			response.BadRequest(c, err)
			return
		}
		report, err := stats.Report(c.Request.Context(), req)
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// ApiDashboardStats
// @Summary      Dashboard counters
// @Tags         Dashboard
// @Produce      json
// @Success      200  {object}  statistics.Dashboard
// @Router       /api/v1/dashboard/stats [get]
func ApiDashboardStats(stats *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := stats.Dashboard(c.Request.Context())
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

// ApiDashboardActivities
// @Summary      Recent activity feed
// @Tags         Dashboard
// @Produce      json
// @Success      200  {array}  statistics.Activity
// @Router       /api/v1/dashboard/activities [get]
func ApiDashboardActivities(stats *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := stats.Activities(c.Request.Context())
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func RegisterReportRoutes(r gin.IRouter, stats *statistics.Service) {
	r.GET("/reports", ApiReport(stats))
	d := r.Group("/dashboard")
	d.GET("/stats", ApiDashboardStats(stats))
	d.GET("/activities", ApiDashboardActivities(stats))
}
