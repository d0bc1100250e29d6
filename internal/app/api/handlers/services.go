package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/repairdesk/internal/app/service/workflow"
	"github.com/fatflowers/repairdesk/pkg/logctx"
	"github.com/fatflowers/repairdesk/pkg/response"
)

// ApiListServices
// @Summary      List service tickets
// @Description  Newest first. search matches ticket number, device fields and customer name/phone.
// @Tags         Services
// @Produce      json
// @Param        search  query     string  false  "Free text search"
// @Param        status  query     string  false  "Status filter, or all"
// @Param        page    query     int     false  "Page (1-based)"
// @Param        limit   query     int     false  "Page size"
// @Success      200     {object}  workflow.ListResult
// @Failure      500     {object}  response.ErrorBody
// @Router       /api/v1/services [get]
func ApiListServices(wf *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q workflow.ListQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			response.BadRequest(c, err)
			return
		}
		res, err := wf.List(c.Request.Context(), q)
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// ApiCreateService
// @Summary      Open a service ticket
// @Description  Creates the ticket in RECEIVED with its first history row.
// @Tags         Services
// @Accept       json
// @Produce      json
// @Param        request  body      workflow.CreateRequest  true  "Ticket"
// @Success      201      {object}  models.Service
// @Failure      400      {object}  response.ErrorBody
// @Failure      404      {object}  response.ErrorBody
// @Router       /api/v1/services [post]
func ApiCreateService(wf *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req workflow.CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err)
			return
		}
		ctx := c.Request.Context()
		svc, err := wf.CreateService(ctx, logctx.Actor(ctx), req)
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusCreated, svc)
	}
}

// ApiGetService
// @Summary      Get a service ticket
// @Description  Includes customer, technician, financial record and status history (newest first).
// @Tags         Services
// @Produce      json
// @Param        id   path      string  true  "Service ID"
// @Success      200  {object}  models.Service
// @Failure      404  {object}  response.ErrorBody
// @Router       /api/v1/services/{id} [get]
func ApiGetService(wf *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, err := wf.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, svc)
	}
}

// ApiUpdateServiceStatus
// @Summary      Change ticket status
// @Description  Runs the status workflow: history, timestamps, income record and customer notification.
// @Tags         Services
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Service ID"
// @Param        request  body      workflow.StatusUpdate  true  "Status change"
// @Success      200      {object}  models.Service
// @Failure      400      {object}  response.ErrorBody
// @Failure      404      {object}  response.ErrorBody
// @Failure      409      {object}  response.ErrorBody
// @Router       /api/v1/services/{id}/status [put]
func ApiUpdateServiceStatus(wf *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req workflow.StatusUpdate
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err)
			return
		}
		ctx := c.Request.Context()
		svc, err := wf.UpdateStatus(ctx, logctx.Actor(ctx), c.Param("id"), req)
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, svc)
	}
}

// ApiUpdateService
// @Summary      Edit a service ticket
// @Description  Partial update. A status different from the current one runs the status workflow.
// @Tags         Services
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Service ID"
// @Param        request  body      workflow.ServiceUpdate  true  "Fields to change"
// @Success      200      {object}  models.Service
// @Failure      400      {object}  response.ErrorBody
// @Failure      404      {object}  response.ErrorBody
// @Failure      409      {object}  response.ErrorBody
// @Router       /api/v1/services/{id} [put]
func ApiUpdateService(wf *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req workflow.ServiceUpdate
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err)
			return
		}
		ctx := c.Request.Context()
		svc, err := wf.UpdateService(ctx, logctx.Actor(ctx), c.Param("id"), req)
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, svc)
	}
}

// ApiServiceStats
// @Summary      Ticket counters
// @Tags         Services
// @Produce      json
// @Success      200  {object}  workflow.Stats
// @Failure      500  {object}  response.ErrorBody
// @Router       /api/v1/services/stats [get]
func ApiServiceStats(wf *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := wf.Stats(c.Request.Context())
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func RegisterServiceRoutes(r gin.IRouter, wf *workflow.Service) {
	g := r.Group("/services")
	g.GET("", ApiListServices(wf))
	g.POST("", ApiCreateService(wf))
	g.GET("/stats", ApiServiceStats(wf))
	g.GET("/:id", ApiGetService(wf))
	g.PUT("/:id", ApiUpdateService(wf))
	g.PUT("/:id/status", ApiUpdateServiceStatus(wf))
}
