package store

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/laddering/backend/pkg/chain"
	"github.com/OFFIS-RIT/laddering/backend/pkg/common"
)

var (
	ErrGraphNotFound  = errors.New("interview graph not found")
	ErrExportNotFound = errors.New("chain export not found")
)

const (
	ExportPending    = "pending"
	ExportProcessing = "processing"
	ExportCompleted  = "completed"
	ExportFailed     = "failed"
)

// GraphSnapshot is one stored revision of an interview graph.
type GraphSnapshot struct {
	InterviewID string
	Revision    int64
	Graph       *common.Graph
	CreatedAt   time.Time
}

// ExportRecord tracks an asynchronous chain export.
type ExportRecord struct {
	ID           string        `json:"id"`
	InterviewID  string        `json:"interview_id"`
	Revision     int64         `json:"revision"`
	Format       string        `json:"format"`
	Options      chain.Options `json:"options"`
	Status       string        `json:"status"`
	FileKey      string        `json:"file_key,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedBy    int64         `json:"created_by"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// InterviewStorage persists interview graph snapshots and export jobs. The
// extraction engine never talks to it; callers load a snapshot and hand the
// graph to the engine.
type InterviewStorage interface {
	SaveGraph(ctx context.Context, interviewID string, graph *common.Graph) (int64, error)
	GetLatestGraph(ctx context.Context, interviewID string) (*GraphSnapshot, error)
	GetGraph(ctx context.Context, interviewID string, revision int64) (*GraphSnapshot, error)

	CreateExport(ctx context.Context, rec ExportRecord) error
	GetExport(ctx context.Context, interviewID string, exportID string) (*ExportRecord, error)
	UpdateExportStatus(ctx context.Context, exportID string, status string, fileKey string, errMsg string) error
}

// Shared reports whether data written through st is visible to other
// processes such as the export worker. Stores that implement
// ProcessLocal() bool and return true are not shared.
func Shared(st InterviewStorage) bool {
	if l, ok := st.(interface{ ProcessLocal() bool }); ok {
		return !l.ProcessLocal()
	}
	return st != nil
}
