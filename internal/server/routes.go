package server

import (
	"net/http"

	"github.com/OFFIS-RIT/laddering/backend/internal/metrics"
	"github.com/OFFIS-RIT/laddering/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/laddering/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	apiRoutes.GET("/schema/graph", routes.GetGraphSchemaHandler)

	// Stateless extraction
	apiRoutes.POST("/chains/extract", routes.ExtractChainsHandler, middleware.RequirePermission(middleware.PermissionInterviewRead))
	apiRoutes.POST("/chains/extract/batch", routes.ExtractChainsBatchHandler, middleware.RequirePermission(middleware.PermissionInterviewRead))

	// Stored interviews
	apiRoutes.PUT("/interviews/:id/graph", routes.PutInterviewGraphHandler, middleware.RequirePermission(middleware.PermissionInterviewWrite))
	apiRoutes.GET("/interviews/:id/chains", routes.GetInterviewChainsHandler, middleware.RequirePermission(middleware.PermissionInterviewRead))

	// Exports
	apiRoutes.POST("/interviews/:id/exports", routes.CreateExportHandler, middleware.RequirePermission(middleware.PermissionInterviewExport))
	apiRoutes.GET("/interviews/:id/exports/:export_id", routes.GetExportHandler, middleware.RequirePermission(middleware.PermissionInterviewExport))
}
