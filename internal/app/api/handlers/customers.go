package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/repairdesk/internal/app/service/customer"
	"github.com/fatflowers/repairdesk/pkg/response"
)

// ApiListCustomers
// @Summary      List customers
// @Tags         Customers
// @Produce      json
// @Param        search  query     string  false  "Matches name, email, phone or address"
// @Success      200     {array}   models.Customer
// @Router       /api/v1/customers [get]
func ApiListCustomers(cs *customer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := cs.List(c.Request.Context(), c.Query("search"))
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// ApiCreateCustomer
// @Summary      Create a customer
// @Tags         Customers
// @Accept       json
// @Produce      json
// @Param        request  body      customer.Input  true  "Customer"
// @Success      201      {object}  models.Customer
// @Failure      400      {object}  response.ErrorBody
// @Router       /api/v1/customers [post]
func ApiCreateCustomer(cs *customer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in customer.Input
		if err := c.ShouldBindJSON(&in); err != nil {
			response.BadRequest(c, err)
			return
		}
		cust, err := cs.Create(c.Request.Context(), in)
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusCreated, cust)
	}
}

// ApiGetCustomer
// @Summary      Get a customer with their tickets
// @Tags         Customers
// @Produce      json
// @Param        id   path      string  true  "Customer ID"
// @Success      200  {object}  models.Customer
// @Failure      404  {object}  response.ErrorBody
// @Router       /api/v1/customers/{id} [get]
func ApiGetCustomer(cs *customer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		cust, err := cs.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, cust)
	}
}

// ApiUpdateCustomer
// @Summary      Update a customer
// @Tags         Customers
// @Accept       json
// @Produce      json
// @Param        id       path      string          true  "Customer ID"
// @Param        request  body      customer.Input  true  "Customer"
// @Success      200      {object}  models.Customer
// @Failure      400      {object}  response.ErrorBody
// @Failure      404      {object}  response.ErrorBody
// @Router       /api/v1/customers/{id} [put]
func ApiUpdateCustomer(cs *customer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in customer.Input
		if err := c.ShouldBindJSON(&in); err != nil {
			response.BadRequest(c, err)
			return
		}
		cust, err := cs.Update(c.Request.Context(), c.Param("id"), in)
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, cust)
	}
}

// ApiDeleteCustomer
// @Summary      Delete a customer
// @Description  Refused while the customer still has service tickets.
// @Tags         Customers
// @Param        id   path  string  true  "Customer ID"
// @Success      204
// @Failure      404  {object}  response.ErrorBody
// @Failure      409  {object}  response.ErrorBody
// @Router       /api/v1/customers/{id} [delete]
func ApiDeleteCustomer(cs *customer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := cs.Delete(c.Request.Context(), c.Param("id")); err != nil {
			response.Abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func RegisterCustomerRoutes(r gin.IRouter, cs *customer.Service) {
	g := r.Group("/customers")
	g.GET("", ApiListCustomers(cs))
	g.POST("", ApiCreateCustomer(cs))
	g.GET("/:id", ApiGetCustomer(cs))
	g.PUT("/:id", ApiUpdateCustomer(cs))
	g.DELETE("/:id", ApiDeleteCustomer(cs))
}
