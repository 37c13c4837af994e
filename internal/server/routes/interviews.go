package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/OFFIS-RIT/laddering/backend/internal/metrics"
	"github.com/OFFIS-RIT/laddering/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/laddering/backend/pkg/chain"
	"github.com/OFFIS-RIT/laddering/backend/pkg/common"
	"github.com/OFFIS-RIT/laddering/backend/pkg/logger"
	"github.com/OFFIS-RIT/laddering/backend/pkg/store"

	"github.com/labstack/echo/v4"
)

const maxGraphBytes = 32 << 20

type interviewParams struct {
	InterviewID string `param:"id" validate:"required,max=128"`
}

// PutInterviewGraphHandler stores the request body as a new revision of the
// interview graph.
func PutInterviewGraphHandler(c echo.Context) error {
	type putGraphResponse struct {
		Message     string `json:"message"`
		InterviewID string `json:"interview_id,omitempty"`
		Revision    int64  `json:"revision,omitempty"`
	}

	params := new(interviewParams)
	if err := (&echo.DefaultBinder{}).BindPathParams(c, params); err != nil || c.Validate(params) != nil {
		return c.JSON(http.StatusBadRequest, putGraphResponse{Message: "Invalid interview id"})
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxGraphBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, putGraphResponse{Message: "Could not read body"})
	}
	if len(raw) > maxGraphBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, putGraphResponse{Message: "Graph document too large"})
	}

	graph, err := common.DecodeGraph(raw)
	if err != nil {
		return c.JSON(http.StatusBadRequest, putGraphResponse{Message: "Invalid graph document"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	revision, err := app.Store.SaveGraph(ctx, params.InterviewID, graph)
	if err != nil {
		logger.Error("[Server] Failed to save graph", "interview_id", params.InterviewID, "err", err)
		return c.JSON(http.StatusInternalServerError, putGraphResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusOK, putGraphResponse{
		Message:     "Graph stored",
		InterviewID: params.InterviewID,
		Revision:    revision,
	})
}

// GetInterviewChainsHandler extracts the chains of the latest, or the
// requested, revision of an interview. Options come from query parameters.
func GetInterviewChainsHandler(c echo.Context) error {
	type chainsResponse struct {
		InterviewID string                 `json:"interview_id"`
		Revision    int64                  `json:"revision"`
		Options     chain.Options          `json:"options"`
		Cached      bool                   `json:"cached"`
		Groups      []common.StimulusGroup `json:"groups"`
	}

	params := new(interviewParams)
	if err := c.Bind(params); err != nil || c.Validate(params) != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid interview id"})
	}

	var revision int64
	if v := c.QueryParam("revision"); v != "" {
		r, err := strconv.ParseInt(v, 10, 64)
		if err != nil || r < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid revision"})
		}
		revision = r
	}
	opts := optionsFromQuery(c.QueryParams())

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	snap, err := loadSnapshot(ctx, app.Store, params.InterviewID, revision)
	if err != nil {
		return snapshotError(c, params.InterviewID, err)
	}

	start := time.Now()
	groups, hit := app.Cache.Extract(ctx, snap, opts)
	source := metrics.SourceStored
	if hit {
		source = metrics.SourceCache
	}
	metrics.ObserveExtraction(source, start, chain.CountChains(groups))

	return c.JSON(http.StatusOK, chainsResponse{
		InterviewID: snap.InterviewID,
		Revision:    snap.Revision,
		Options:     opts,
		Cached:      hit,
		Groups:      groups,
	})
}

func loadSnapshot(ctx context.Context, st store.InterviewStorage, interviewID string, revision int64) (*store.GraphSnapshot, error) {
	if revision > 0 {
		return st.GetGraph(ctx, interviewID, revision)
	}
	return st.GetLatestGraph(ctx, interviewID)
}

func snapshotError(c echo.Context, interviewID string, err error) error {
	if errors.Is(err, store.ErrGraphNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Interview graph not found"})
	}
	logger.Error("[Server] Failed to load graph", "interview_id", interviewID, "err", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}
