package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/repairdesk/internal/app/service/finance"
	"github.com/fatflowers/repairdesk/pkg/logctx"
	"github.com/fatflowers/repairdesk/pkg/response"
	"github.com/fatflowers/repairdesk/pkg/types"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type listRecordsQuery struct {
	finance.ListFilter
	types.PageQuery
}

// ApiListFinancialRecords
// @Summary      List ledger records
// @Description  Paged records plus the income/expense summary of the whole filtered set.
// @Tags         Finance
// @Produce      json
// @Param        type    query     string  false  "income, expense or all"
// @Param        period  query     string  false  "daily, weekly, monthly or all"
// @Param        page    query     int     false  "Page (1-based)"
// @Param        limit   query     int     false  "Page size"
// @Success      200     {object}  finance.ListResult
// @Failure      400     {object}  response.ErrorBody
// @Router       /api/v1/finance [get]
func ApiListFinancialRecords(fs *finance.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q listRecordsQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			response.BadRequest(c, err)
			return
		}
		res, err := fs.List(c.Request.Context(), q.ListFilter, q.PageQuery)
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// ApiCreateFinancialRecord
// @Summary      Add a ledger record
// @Tags         Finance
// @Accept       json
// @Produce      json
// @Param        request  body      finance.RecordInput  true  "Record"
// @Success      201      {object}  models.FinancialRecord
// @Failure      400      {object}  response.ErrorBody
// @Failure      409      {object}  response.ErrorBody
// @Router       /api/v1/finance [post]
func ApiCreateFinancialRecord(fs *finance.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in finance.RecordInput
		if err := c.ShouldBindJSON(&in); err != nil {
			response.BadRequest(c, err)
			return
		}
		rec, err := fs.Create(c.Request.Context(), in)
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusCreated, rec)
	}
}

// ApiGetFinancialRecord
// @Summary      Get a ledger record
// @Tags         Finance
// @Produce      json
// @Param        id   path      string  true  "Record ID"
// @Success      200  {object}  models.FinancialRecord
// @Failure      404  {object}  response.ErrorBody
// @Router       /api/v1/finance/{id} [get]
func ApiGetFinancialRecord(fs *finance.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := fs.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// ApiUpdateFinancialRecord
// @Summary      Update a ledger record
// @Tags         Finance
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Record ID"
// @Param        request  body      finance.RecordInput  true  "Record"
// @Success      200      {object}  models.FinancialRecord
// @Failure      400      {object}  response.ErrorBody
// @Failure      404      {object}  response.ErrorBody
// @Router       /api/v1/finance/{id} [put]
func ApiUpdateFinancialRecord(fs *finance.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in finance.RecordInput
		if err := c.ShouldBindJSON(&in); err != nil {
			response.BadRequest(c, err)
			return
		}
		rec, err := fs.Update(c.Request.Context(), c.Param("id"), in)
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// ApiDeleteFinancialRecord
// @Summary      Delete a ledger record
// @Tags         Finance
// @Param        id   path  string  true  "Record ID"
// @Success      204
// @Failure      404  {object}  response.ErrorBody
// @Router       /api/v1/finance/{id} [delete]
func ApiDeleteFinancialRecord(fs *finance.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fs.Delete(c.Request.Context(), c.Param("id")); err != nil {
			response.Abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// ApiExportFinancialRecords
// @Summary      Download the ledger as XLSX
// @Tags         Finance
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        type    query  string  false  "income, expense or all"
// @Param        period  query  string  false  "daily, weekly, monthly or all"
// @Success      200     {file}  file
// @Failure      500     {object}  response.ErrorBody
// @Router       /api/v1/finance/export [get]
func ApiExportFinancialRecords(fs *finance.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f finance.ListFilter
		if err := c.ShouldBindQuery(&f); err != nil {
			response.BadRequest(c, err)
			return
		}
		file, err := fs.Export(c.Request.Context(), f)
		if err != nil {
			response.Abort(c, err)
			return
		}
		defer file.Close()

		buf, err := file.WriteToBuffer()
		if err != nil {
			response.Abort(c, fmt.Errorf("failed to render workbook: %w", err))
			return
		}
		name := fmt.Sprintf("ledger-%s.xlsx", time.Now().Format("20060102"))
		logctx.FromGin(c, log).Infow("ledger_exported", "bytes", buf.Len(), "type", f.Type, "period", f.Period)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	}
}

func RegisterFinanceRoutes(r gin.IRouter, fs *finance.Service, log *zap.SugaredLogger) {
	g := r.Group("/finance")
	g.GET("", ApiListFinancialRecords(fs))
	g.POST("", ApiCreateFinancialRecord(fs))
	g.GET("/export", ApiExportFinancialRecords(fs, log))
	g.GET("/:id", ApiGetFinancialRecord(fs))
	g.PUT("/:id", ApiUpdateFinancialRecord(fs))
	g.DELETE("/:id", ApiDeleteFinancialRecord(fs))
}
