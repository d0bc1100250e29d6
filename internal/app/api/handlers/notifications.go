package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/repairdesk/internal/app/service/notifier"
	"github.com/fatflowers/repairdesk/pkg/response"
)

// ApiListNotifications
// @Summary      Recent notification attempts
// @Description  Latest 100 attempts with their ticket and customer.
// @Tags         Notifications
// @Produce      json
// @Param        status  query     string  false  "all, SENT or FAILED"
// @Success      200     {array}   models.NotificationLog
// @Router       /api/v1/notifications [get]
func ApiListNotifications(ns *notifier.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logs, err := ns.List(c.Request.Context(), c.Query("status"))
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, logs)
	}
}

// ApiSendNotification
// @Summary      Send a customer email now
// @Description  Renders the template for type and delivers it synchronously. The attempt is logged either way.
// @Tags         Notifications
// @Accept       json
// @Produce      json
// @Param        request  body      notifier.Request  true  "Notification"
// @Success      200      {object}  models.NotificationLog
// @Failure      400      {object}  response.ErrorBody
// @Failure      404      {object}  response.ErrorBody
// @Failure      500      {object}  response.ErrorBody
// @Router       /api/v1/notifications/email [post]
func ApiSendNotification(ns *notifier.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req notifier.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err)
			return
		}
		entry, err := ns.Send(c.Request.Context(), req)
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

func RegisterNotificationRoutes(r gin.IRouter, ns *notifier.Service) {
	g := r.Group("/notifications")
	g.GET("", ApiListNotifications(ns))
	g.POST("/email", ApiSendNotification(ns))
}
