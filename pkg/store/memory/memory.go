// Package memory is an in-process store.InterviewStorage used by tests and
// by the server when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/OFFIS-RIT/laddering/backend/pkg/common"
	"github.com/OFFIS-RIT/laddering/backend/pkg/store"
)

type InterviewMemoryStorage struct {
	mu      sync.RWMutex
	graphs  map[string][]*store.GraphSnapshot
	exports map[string]*store.ExportRecord
	now     func() time.Time
}

var _ store.InterviewStorage = (*InterviewMemoryStorage)(nil)

func NewInterviewMemoryStorage() *InterviewMemoryStorage {
	return &InterviewMemoryStorage{
		graphs:  make(map[string][]*store.GraphSnapshot),
		exports: make(map[string]*store.ExportRecord),
		now:     time.Now,
	}
}

// ProcessLocal is always true: nothing outside this process sees the data.
func (s *InterviewMemoryStorage) ProcessLocal() bool { return true }

func (s *InterviewMemoryStorage) SaveGraph(_ context.Context, interviewID string, graph *common.Graph) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	revision := int64(len(s.graphs[interviewID]) + 1)
	s.graphs[interviewID] = append(s.graphs[interviewID], &store.GraphSnapshot{
		InterviewID: interviewID,
		Revision:    revision,
		Graph:       store.SanitizeGraph(graph),
		CreatedAt:   s.now(),
	})
	return revision, nil
}

func (s *InterviewMemoryStorage) GetLatestGraph(_ context.Context, interviewID string) (*store.GraphSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.graphs[interviewID]
	if len(snaps) == 0 {
		return nil, store.ErrGraphNotFound
	}
	snap := *snaps[len(snaps)-1]
	return &snap, nil
}

func (s *InterviewMemoryStorage) GetGraph(_ context.Context, interviewID string, revision int64) (*store.GraphSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.graphs[interviewID]
	if revision < 1 || revision > int64(len(snaps)) {
		return nil, store.ErrGraphNotFound
	}
	snap := *snaps[revision-1]
	return &snap, nil
}

func (s *InterviewMemoryStorage) CreateExport(_ context.Context, rec store.ExportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.exports[rec.ID]; ok {
		return fmt.Errorf("export %s already exists", rec.ID)
	}
	if rec.Status == "" {
		rec.Status = store.ExportPending
	}
	rec.CreatedAt = s.now()
	rec.UpdatedAt = rec.CreatedAt
	s.exports[rec.ID] = &rec
	return nil
}

func (s *InterviewMemoryStorage) GetExport(_ context.Context, interviewID string, exportID string) (*store.ExportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.exports[exportID]
	if !ok || rec.InterviewID != interviewID {
		return nil, store.ErrExportNotFound
	}
	out := *rec
	return &out, nil
}

func (s *InterviewMemoryStorage) UpdateExportStatus(_ context.Context, exportID string, status string, fileKey string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.exports[exportID]
	if !ok {
		return store.ErrExportNotFound
	}
	rec.Status = status
	rec.FileKey = fileKey
	rec.ErrorMessage = errMsg
	rec.UpdatedAt = s.now()
	return nil
}
