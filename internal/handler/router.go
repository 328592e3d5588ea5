package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Register mounts every route on e. Streams accept the access token as a
// query parameter; all other API routes require the Authorization header.
func Register(e *echo.Echo, auth TokenValidator, notifications *NotificationHandler, bills *BillHandler) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")
	requireAuth := JWTAuth(auth, false)

	n := api.Group("/notifications")
	n.GET("/stream", notifications.Stream, JWTAuth(auth, true))
	n.GET("/settings", notifications.GetSettings, requireAuth)
	n.PUT("/settings", notifications.UpdateSettings, requireAuth)
	n.POST("/test-slack", notifications.TestSlack, requireAuth)
	n.POST("/test-in-app", notifications.TestInApp, requireAuth)
	n.GET("/history", notifications.History, requireAuth)

	api.GET("/bills/next-due-date", bills.NextDueDate, requireAuth)
}
