package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/laddering/backend/internal/metrics"
	"github.com/OFFIS-RIT/laddering/backend/internal/storage"
	"github.com/OFFIS-RIT/laddering/backend/pkg/chain"
	"github.com/OFFIS-RIT/laddering/backend/pkg/common"
	"github.com/OFFIS-RIT/laddering/backend/pkg/export"
	"github.com/OFFIS-RIT/laddering/backend/pkg/leaselock"
	"github.com/OFFIS-RIT/laddering/backend/pkg/logger"
	"github.com/OFFIS-RIT/laddering/backend/pkg/store"
)

// ExportChainsMsg asks the worker to render the chains of one interview
// revision into a downloadable file. GraphKey, when set, names an S3 object
// holding the graph document instead of a stored snapshot.
type ExportChainsMsg struct {
	ExportID    string        `json:"export_id"`
	InterviewID string        `json:"interview_id"`
	Revision    int64         `json:"revision,omitempty"`
	Format      string        `json:"format"`
	Options     chain.Options `json:"options"`
	GraphKey    string        `json:"graph_key,omitempty"`
}

// ChainsExportedMsg is published on TopicChainsExported.
type ChainsExportedMsg struct {
	ExportID    string `json:"export_id"`
	InterviewID string `json:"interview_id"`
	Revision    int64  `json:"revision"`
	FileKey     string `json:"file_key"`
	Chains      int    `json:"chains"`
}

type fileStore interface {
	GetFile(ctx context.Context, key string) ([]byte, error)
	PutFile(ctx context.Context, key string, contentType string, body []byte) error
}

type locker interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

type ExportProcessor struct {
	store  store.InterviewStorage
	files  fileStore
	locker locker
	ch     Channel
}

func NewExportProcessor(st store.InterviewStorage, files fileStore, lk locker, ch Channel) *ExportProcessor {
	return &ExportProcessor{store: st, files: files, locker: lk, ch: ch}
}

// ProcessExportMessage runs one export job. Jobs on the same interview are
// serialised through a lease. On failure the export is marked failed and the
// error is returned so the caller can route the message to retry.
func (p *ExportProcessor) ProcessExportMessage(ctx context.Context, body []byte) error {
	var msg ExportChainsMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("invalid export message: %w", err)
	}
	if msg.ExportID == "" || msg.InterviewID == "" {
		return errors.New("export message without export or interview id")
	}

	err := p.locker.WithLease(ctx, leaselock.InterviewKey(msg.InterviewID), leaselock.DefaultOptions(), func(ctx context.Context) error {
		return p.run(ctx, msg)
	})
	if err != nil {
		metrics.ExportFinished(store.ExportFailed)
		updErr := p.store.UpdateExportStatus(context.WithoutCancel(ctx), msg.ExportID, store.ExportFailed, "", err.Error())
		if updErr != nil {
			logger.Error("[Export] Failed to mark export failed", "export_id", msg.ExportID, "err", updErr)
		}
		return err
	}
	return nil
}

func (p *ExportProcessor) run(ctx context.Context, msg ExportChainsMsg) error {
	format, err := export.ParseFormat(msg.Format)
	if err != nil {
		return err
	}

	if err := p.store.UpdateExportStatus(ctx, msg.ExportID, store.ExportProcessing, "", ""); err != nil {
		return err
	}

	graph, revision, err := p.loadGraph(ctx, msg)
	if err != nil {
		return err
	}

	start := time.Now()
	groups := chain.ExtractStimulusChains(graph, msg.Options)
	count := chain.CountChains(groups)
	metrics.ObserveExtraction(metrics.SourceExport, start, count)

	var buf bytes.Buffer
	if err := export.Write(&buf, format, groups); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}

	key := storage.ExportKey(msg.InterviewID, msg.ExportID, format.Extension())
	if err := p.files.PutFile(ctx, key, format.ContentType(), buf.Bytes()); err != nil {
		return err
	}

	if err := p.store.UpdateExportStatus(ctx, msg.ExportID, store.ExportCompleted, key, ""); err != nil {
		return err
	}
	metrics.ExportFinished(store.ExportCompleted)

	logger.Info("[Export] Export completed",
		"export_id", msg.ExportID,
		"interview_id", msg.InterviewID,
		"revision", revision,
		"groups", len(groups),
		"chains", count,
		"duration", time.Since(start),
	)

	done, err := json.Marshal(ChainsExportedMsg{
		ExportID:    msg.ExportID,
		InterviewID: msg.InterviewID,
		Revision:    revision,
		FileKey:     key,
		Chains:      count,
	})
	if err == nil {
		err = PublishTopic(p.ch, TopicChainsExported, done)
	}
	if err != nil {
		logger.Warn("[Export] Failed to publish export event", "export_id", msg.ExportID, "err", err)
	}
	return nil
}

func (p *ExportProcessor) loadGraph(ctx context.Context, msg ExportChainsMsg) (*common.Graph, int64, error) {
	if msg.GraphKey != "" {
		raw, err := p.files.GetFile(ctx, msg.GraphKey)
		if err != nil {
			return nil, 0, err
		}
		graph, err := common.DecodeGraphLenient(raw)
		if err != nil {
			return nil, 0, fmt.Errorf("graph object %s: %w", msg.GraphKey, err)
		}
		return graph, msg.Revision, nil
	}

	var (
		snap *store.GraphSnapshot
		err  error
	)
	if msg.Revision > 0 {
		snap, err = p.store.GetGraph(ctx, msg.InterviewID, msg.Revision)
	} else {
		snap, err = p.store.GetLatestGraph(ctx, msg.InterviewID)
	}
	if err != nil {
		return nil, 0, err
	}
	return snap.Graph, snap.Revision, nil
}
