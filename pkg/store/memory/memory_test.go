package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/OFFIS-RIT/laddering/backend/pkg/chain"
	"github.com/OFFIS-RIT/laddering/backend/pkg/common"
	"github.com/OFFIS-RIT/laddering/backend/pkg/store"
)

func TestGraphRevisions(t *testing.T) {
	s := NewInterviewMemoryStorage()
	ctx := context.Background()

	if _, err := s.GetLatestGraph(ctx, "iv"); !errors.Is(err, store.ErrGraphNotFound) {
		t.Fatalf("expected ErrGraphNotFound, got %v", err)
	}

	g1 := &common.Graph{Nodes: []common.GraphNode{{ID: 1, Label: common.LabelStimulus, Conclusion: "one"}}}
	g2 := &common.Graph{Nodes: []common.GraphNode{{ID: 1, Label: common.LabelStimulus, Conclusion: "two"}}}

	for i, g := range []*common.Graph{g1, g2} {
		rev, err := s.SaveGraph(ctx, "iv", g)
		if err != nil || rev != int64(i+1) {
			t.Fatalf("save %d: rev=%d err=%v", i, rev, err)
		}
	}

	latest, err := s.GetLatestGraph(ctx, "iv")
	if err != nil || latest.Revision != 2 || latest.Graph.Nodes[0].Conclusion != "two" {
		t.Fatalf("unexpected latest snapshot %+v err=%v", latest, err)
	}

	first, err := s.GetGraph(ctx, "iv", 1)
	if err != nil || first.Graph.Nodes[0].Conclusion != "one" {
		t.Fatalf("unexpected revision 1 %+v err=%v", first, err)
	}
	if _, err := s.GetGraph(ctx, "iv", 3); !errors.Is(err, store.ErrGraphNotFound) {
		t.Fatalf("expected ErrGraphNotFound for missing revision, got %v", err)
	}

	g1.Nodes[0].Conclusion = "mutated"
	if again, _ := s.GetGraph(ctx, "iv", 1); again.Graph.Nodes[0].Conclusion != "one" {
		t.Fatalf("stored snapshot shares memory with caller graph")
	}
}

func TestExports(t *testing.T) {
	s := NewInterviewMemoryStorage()
	ctx := context.Background()

	rec := store.ExportRecord{ID: "ex1", InterviewID: "iv", Revision: 1, Format: "csv", Options: chain.DefaultOptions()}
	if err := s.CreateExport(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateExport(ctx, rec); err == nil {
		t.Fatalf("expected duplicate export error")
	}

	got, err := s.GetExport(ctx, "iv", "ex1")
	if err != nil || got.Status != store.ExportPending {
		t.Fatalf("unexpected export %+v err=%v", got, err)
	}
	if _, err := s.GetExport(ctx, "other", "ex1"); !errors.Is(err, store.ErrExportNotFound) {
		t.Fatalf("export must be scoped to its interview, got %v", err)
	}

	if err := s.UpdateExportStatus(ctx, "ex1", store.ExportCompleted, "k.csv", ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = s.GetExport(ctx, "iv", "ex1")
	if got.Status != store.ExportCompleted || got.FileKey != "k.csv" {
		t.Fatalf("status not updated: %+v", got)
	}
	if err := s.UpdateExportStatus(ctx, "missing", store.ExportFailed, "", "x"); !errors.Is(err, store.ErrExportNotFound) {
		t.Fatalf("expected ErrExportNotFound, got %v", err)
	}
}

func TestInterviewMemoryStorage_NotShared(t *testing.T) {
	if store.Shared(NewInterviewMemoryStorage()) {
		t.Fatalf("in-memory store must not report itself as shared")
	}
}
