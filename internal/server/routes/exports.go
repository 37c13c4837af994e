package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/OFFIS-RIT/laddering/backend/internal/queue"
	"github.com/OFFIS-RIT/laddering/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/laddering/backend/internal/storage"
	"github.com/OFFIS-RIT/laddering/backend/internal/util"
	"github.com/OFFIS-RIT/laddering/backend/pkg/chain"
	"github.com/OFFIS-RIT/laddering/backend/pkg/export"
	"github.com/OFFIS-RIT/laddering/backend/pkg/logger"
	"github.com/OFFIS-RIT/laddering/backend/pkg/store"

	"github.com/labstack/echo/v4"
)

const downloadLinkTTL = 15 * time.Minute

// CreateExportHandler pins the requested revision and queues an export job
// for the worker. With graph_key the worker reads the graph document from
// that object under the interview's storage prefix instead of a snapshot.
func CreateExportHandler(c echo.Context) error {
	type createExportBody struct {
		Format   string        `json:"format" validate:"omitempty,oneof=json csv"`
		Revision int64         `json:"revision" validate:"min=0"`
		Options  chain.Options `json:"options"`
		GraphKey string        `json:"graph_key" validate:"omitempty,max=1024"`
	}

	type createExportResponse struct {
		Message string              `json:"message"`
		Export  *store.ExportRecord `json:"export,omitempty"`
	}

	params := new(interviewParams)
	if err := (&echo.DefaultBinder{}).BindPathParams(c, params); err != nil || c.Validate(params) != nil {
		return c.JSON(http.StatusBadRequest, createExportResponse{Message: "Invalid interview id"})
	}

	data := &createExportBody{Options: chain.DefaultOptions()}
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createExportResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createExportResponse{Message: "Invalid request body"})
	}
	format, err := export.ParseFormat(data.Format)
	if err != nil {
		return c.JSON(http.StatusBadRequest, createExportResponse{Message: "Unsupported format"})
	}

	ac := c.(*middleware.AppContext)
	app := ac.App
	if app.Queue == nil || !store.Shared(app.Store) {
		return c.JSON(http.StatusServiceUnavailable, createExportResponse{Message: "Exports are not available"})
	}

	ctx := c.Request().Context()
	snap := &store.GraphSnapshot{InterviewID: params.InterviewID}
	if data.GraphKey != "" {
		if data.Revision != 0 {
			return c.JSON(http.StatusBadRequest, createExportResponse{Message: "graph_key and revision are exclusive"})
		}
		if !strings.HasPrefix(data.GraphKey, storage.InterviewPrefix(params.InterviewID)) {
			return c.JSON(http.StatusBadRequest, createExportResponse{Message: "graph_key outside of the interview"})
		}
		if app.Files == nil {
			return c.JSON(http.StatusServiceUnavailable, createExportResponse{Message: "Object storage is not available"})
		}
	} else {
		snap, err = loadSnapshot(ctx, app.Store, params.InterviewID, data.Revision)
		if err != nil {
			return snapshotError(c, params.InterviewID, err)
		}
	}

	id, err := util.NewPublicID()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, createExportResponse{Message: "Internal server error"})
	}

	rec := store.ExportRecord{
		ID:          id,
		InterviewID: snap.InterviewID,
		Revision:    snap.Revision,
		Format:      string(format),
		Options:     data.Options,
		Status:      store.ExportPending,
		CreatedBy:   ac.User.UserID,
	}
	if err := app.Store.CreateExport(ctx, rec); err != nil {
		logger.Error("[Server] Failed to create export", "interview_id", params.InterviewID, "err", err)
		return c.JSON(http.StatusInternalServerError, createExportResponse{Message: "Internal server error"})
	}

	msg, err := json.Marshal(queue.ExportChainsMsg{
		ExportID:    rec.ID,
		InterviewID: rec.InterviewID,
		Revision:    rec.Revision,
		Format:      rec.Format,
		Options:     rec.Options,
		GraphKey:    data.GraphKey,
	})
	if err == nil {
		err = queue.PublishFIFO(app.Queue, queue.ExportQueue, msg)
	}
	if err != nil {
		logger.Error("[Server] Failed to queue export", "export_id", rec.ID, "err", err)
		_ = app.Store.UpdateExportStatus(ctx, rec.ID, store.ExportFailed, "", "could not queue export")
		return c.JSON(http.StatusInternalServerError, createExportResponse{Message: "Internal server error"})
	}

	logger.Info("[Server] Export queued",
		"export_id", rec.ID,
		"interview_id", rec.InterviewID,
		"revision", rec.Revision,
		"graph_key", data.GraphKey,
	)

	stored, err := app.Store.GetExport(ctx, rec.InterviewID, rec.ID)
	if err != nil {
		stored = &rec
	}
	return c.JSON(http.StatusAccepted, createExportResponse{
		Message: "Export queued",
		Export:  stored,
	})
}

// GetExportHandler reports the state of an export and, once it completed, a
// short lived download link.
func GetExportHandler(c echo.Context) error {
	type getExportParams struct {
		InterviewID string `param:"id" validate:"required,max=128"`
		ExportID    string `param:"export_id" validate:"required,max=64"`
	}

	type getExportResponse struct {
		Export      *store.ExportRecord `json:"export"`
		DownloadURL string              `json:"download_url,omitempty"`
	}

	params := new(getExportParams)
	if err := c.Bind(params); err != nil || c.Validate(params) != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid parameters"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	rec, err := app.Store.GetExport(ctx, params.InterviewID, params.ExportID)
	if errors.Is(err, store.ErrExportNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Export not found"})
	}
	if err != nil {
		logger.Error("[Server] Failed to load export", "export_id", params.ExportID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	resp := getExportResponse{Export: rec}
	if rec.Status == store.ExportCompleted && rec.FileKey != "" && app.Files != nil {
		link, err := app.Files.GenerateDownloadLink(ctx, rec.FileKey, downloadLinkTTL)
		if err != nil {
			logger.Error("[Server] Failed to presign export", "export_id", rec.ID, "err", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
		resp.DownloadURL = link
	}

	return c.JSON(http.StatusOK, resp)
}
