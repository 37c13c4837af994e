package routes

import (
	"net/http"
	"time"

	"github.com/OFFIS-RIT/laddering/backend/internal/metrics"
	"github.com/OFFIS-RIT/laddering/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/laddering/backend/pkg/chain"
	"github.com/OFFIS-RIT/laddering/backend/pkg/common"
	"github.com/OFFIS-RIT/laddering/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetGraphSchemaHandler returns the JSON schema of the graph document.
func GetGraphSchemaHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, common.GraphSchema())
}

// ExtractChainsHandler extracts the chains of a graph posted in the body.
// Nothing is stored.
func ExtractChainsHandler(c echo.Context) error {
	type extractBody struct {
		Graph   *common.Graph `json:"graph" validate:"required"`
		Options chain.Options `json:"options"`
	}

	data := &extractBody{Options: chain.DefaultOptions()}
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	start := time.Now()
	groups := chain.ExtractStimulusChains(data.Graph, data.Options)
	count := chain.CountChains(groups)
	metrics.ObserveExtraction(metrics.SourceRequest, start, count)

	return c.JSON(http.StatusOK, groups)
}

// ExtractChainsBatchHandler extracts several independent graphs with the
// same options. Results keep the order of the request.
func ExtractChainsBatchHandler(c echo.Context) error {
	type batchBody struct {
		Graphs  []*common.Graph `json:"graphs" validate:"required,min=1,max=100,dive,required"`
		Options chain.Options   `json:"options"`
	}

	data := &batchBody{Options: chain.DefaultOptions()}
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body: between 1 and 100 graphs required",
		})
	}

	app := c.(*middleware.AppContext).App
	start := time.Now()
	results, err := chain.ExtractMany(c.Request().Context(), data.Graphs, data.Options, app.Parallel)
	if err != nil {
		logger.Warn("[Server] Batch extraction aborted", "graphs", len(data.Graphs), "err", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Request cancelled"})
	}
	for _, groups := range results {
		metrics.ObserveExtraction(metrics.SourceRequest, start, chain.CountChains(groups))
	}

	return c.JSON(http.StatusOK, results)
}
