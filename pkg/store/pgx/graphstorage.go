package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/laddering/backend/internal/util"
	"github.com/OFFIS-RIT/laddering/backend/pkg/common"
	"github.com/OFFIS-RIT/laddering/backend/pkg/logger"
	"github.com/OFFIS-RIT/laddering/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// InterviewDBStorage implements store.InterviewStorage on PostgreSQL. Graph
// snapshots are stored as jsonb documents with a per-interview revision.
type InterviewDBStorage struct {
	conn          pgxIConn
	revisionTries int
	revisionDelay time.Duration
}

type InterviewDBStorageOption func(*InterviewDBStorage)

// WithRevisionRetries sets how often SaveGraph retries when a concurrent
// writer took the same revision number.
func WithRevisionRetries(tries int, delay time.Duration) InterviewDBStorageOption {
	return func(s *InterviewDBStorage) {
		s.revisionTries = tries
		s.revisionDelay = delay
	}
}

func NewInterviewDBStorage(conn pgxIConn, opts ...InterviewDBStorageOption) *InterviewDBStorage {
	s := &InterviewDBStorage{
		conn:          conn,
		revisionTries: 3,
		revisionDelay: 20 * time.Millisecond,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

var _ store.InterviewStorage = (*InterviewDBStorage)(nil)

// SaveGraph appends a new snapshot and returns its revision.
func (s *InterviewDBStorage) SaveGraph(ctx context.Context, interviewID string, graph *common.Graph) (int64, error) {
	sanitized := store.SanitizeGraph(graph)
	doc, err := json.Marshal(sanitized)
	if err != nil {
		return 0, fmt.Errorf("failed to encode graph: %w", err)
	}

	revision, err := util.RetryWithContext(ctx, s.revisionTries, s.revisionDelay, func(ctx context.Context) (int64, error) {
		var rev int64
		err := s.conn.QueryRow(ctx, insertGraphSQL, interviewID, doc).Scan(&rev)
		if err != nil && !isUniqueViolation(err) {
			return 0, util.Permanent(err)
		}
		return rev, err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save graph for interview %s: %w", interviewID, err)
	}

	logger.Debug("[Store] Saved interview graph", "interview_id", interviewID, "revision", revision, "nodes", len(sanitized.Nodes))
	return revision, nil
}

func (s *InterviewDBStorage) GetLatestGraph(ctx context.Context, interviewID string) (*store.GraphSnapshot, error) {
	return s.scanGraph(s.conn.QueryRow(ctx, latestGraphSQL, interviewID), interviewID)
}

func (s *InterviewDBStorage) GetGraph(ctx context.Context, interviewID string, revision int64) (*store.GraphSnapshot, error) {
	return s.scanGraph(s.conn.QueryRow(ctx, graphByRevisionSQL, interviewID, revision), interviewID)
}

func (s *InterviewDBStorage) scanGraph(row pgxv5.Row, interviewID string) (*store.GraphSnapshot, error) {
	snap := &store.GraphSnapshot{InterviewID: interviewID}
	var doc []byte
	if err := row.Scan(&snap.Revision, &doc, &snap.CreatedAt); err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, store.ErrGraphNotFound
		}
		return nil, err
	}

	g, err := common.DecodeGraph(doc)
	if err != nil {
		return nil, fmt.Errorf("stored graph %s@%d: %w", interviewID, snap.Revision, err)
	}
	snap.Graph = g
	return snap, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const insertGraphSQL = `
INSERT INTO interview_graphs (interview_id, revision, document)
SELECT $1, COALESCE(MAX(revision), 0) + 1, $2::jsonb
FROM interview_graphs
WHERE interview_id = $1
RETURNING revision;
`

const latestGraphSQL = `
SELECT revision, document, created_at
FROM interview_graphs
WHERE interview_id = $1
ORDER BY revision DESC
LIMIT 1;
`

const graphByRevisionSQL = `
SELECT revision, document, created_at
FROM interview_graphs
WHERE interview_id = $1 AND revision = $2;
`
