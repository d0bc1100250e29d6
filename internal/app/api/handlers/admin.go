package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/repairdesk/internal/app/service/workflow"
	"github.com/fatflowers/repairdesk/pkg/response"
)

// ApiSearchServices
// @Summary      Scan service tickets
// @Description  Filtered scan with the CommonFilter DSL. Filter fields and sort_by are restricted to indexed ticket columns.
// @Tags         Services
// @Accept       json
// @Produce      json
// @Param        request  body      workflow.ScanRequest  true  "Filters, paging and sort"
// @Success      200      {object}  workflow.ScanResponse
// @Failure      400      {object}  response.ErrorBody
// @Router       /api/v1/services/search [post]
func ApiSearchServices(wf *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req workflow.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err)
			return
		}
		res, err := wf.Search(c.Request.Context(), &req)
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// RegisterAdminRoutes mounts the staff back-office endpoints. guard runs
// before each of them.
func RegisterAdminRoutes(r gin.IRouter, wf *workflow.Service, guard gin.HandlerFunc) {
	r.POST("/services/search", guard, ApiSearchServices(wf))
}
