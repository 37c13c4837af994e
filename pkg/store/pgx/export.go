package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/laddering/backend/internal/util"
	"github.com/OFFIS-RIT/laddering/backend/pkg/logger"
	"github.com/OFFIS-RIT/laddering/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const maxErrorMessageLength = 1000

// CreateExport registers a pending export job.
func (s *InterviewDBStorage) CreateExport(ctx context.Context, rec store.ExportRecord) error {
	opts, err := json.Marshal(rec.Options)
	if err != nil {
		return fmt.Errorf("failed to encode export options: %w", err)
	}
	status := rec.Status
	if status == "" {
		status = store.ExportPending
	}

	_, err = s.conn.Exec(ctx, insertExportSQL,
		rec.ID,
		rec.InterviewID,
		rec.Revision,
		rec.Format,
		opts,
		status,
		rec.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create export %s: %w", rec.ID, err)
	}
	return nil
}

func (s *InterviewDBStorage) GetExport(ctx context.Context, interviewID string, exportID string) (*store.ExportRecord, error) {
	rec := &store.ExportRecord{}
	var opts []byte
	err := s.conn.QueryRow(ctx, getExportSQL, interviewID, exportID).Scan(
		&rec.ID,
		&rec.InterviewID,
		&rec.Revision,
		&rec.Format,
		&opts,
		&rec.Status,
		&rec.FileKey,
		&rec.ErrorMessage,
		&rec.CreatedBy,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, store.ErrExportNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(opts, &rec.Options); err != nil {
		return nil, fmt.Errorf("stored options of export %s: %w", exportID, err)
	}
	return rec, nil
}

func (s *InterviewDBStorage) UpdateExportStatus(ctx context.Context, exportID string, status string, fileKey string, errMsg string) error {
	errMsg = util.Truncate(util.SanitizePostgresText(errMsg), maxErrorMessageLength)
	tag, err := s.conn.Exec(ctx, updateExportSQL, exportID, status, fileKey, errMsg)
	if err != nil {
		return fmt.Errorf("failed to update export %s: %w", exportID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrExportNotFound
	}

	logger.Debug("[Store] Export status changed", "export_id", exportID, "status", status)
	return nil
}

const insertExportSQL = `
INSERT INTO chain_exports (id, interview_id, revision, format, options, status, created_by)
VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7);
`

const getExportSQL = `
SELECT id, interview_id, revision, format, options, status,
       COALESCE(file_key, ''), COALESCE(error_message, ''),
       created_by, created_at, updated_at
FROM chain_exports
WHERE interview_id = $1 AND id = $2;
`

const updateExportSQL = `
UPDATE chain_exports
SET status        = $2,
    file_key      = NULLIF($3, ''),
    error_message = NULLIF($4, ''),
    updated_at    = now()
WHERE id = $1;
`
