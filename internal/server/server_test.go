package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/OFFIS-RIT/laddering/backend/internal/queue"
	mid "github.com/OFFIS-RIT/laddering/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/laddering/backend/pkg/common"
	"github.com/OFFIS-RIT/laddering/backend/pkg/store"
	"github.com/OFFIS-RIT/laddering/backend/pkg/store/memory"

	"github.com/google/go-cmp/cmp"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
)

const masterKey = "master-key"

const coffeeGraph = `{
  "nodes": [
    {"id": 1, "label": "STIMULUS", "conclusion": "Coffee", "parents": [], "children": [2], "is_value_path_completed": true},
    {"id": 2, "label": "ATTRIBUTE", "conclusion": "Caffeine", "parents": [1], "children": [3], "is_value_path_completed": true},
    {"id": 3, "label": "CONSEQUENCE", "conclusion": "Awake", "parents": [2], "children": [4], "is_value_path_completed": true},
    {"id": 4, "label": "VALUE", "conclusion": "Success", "parents": [3], "children": [], "is_value_path_completed": true}
  ]
}`

type recordingChannel struct {
	published []amqp091.Publishing
	keys      []string
}

func (r *recordingChannel) ExchangeDeclare(string, string, bool, bool, bool, bool, amqp091.Table) error {
	return nil
}

func (r *recordingChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp091.Table) (amqp091.Queue, error) {
	return amqp091.Queue{Name: name}, nil
}

func (r *recordingChannel) Publish(_, key string, _, _ bool, msg amqp091.Publishing) error {
	r.keys = append(r.keys, key)
	r.published = append(r.published, msg)
	return nil
}

type fakeLinker struct{}

func (fakeLinker) GenerateDownloadLink(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "https://files.test/" + key + "?ttl=" + ttl.String(), nil
}

// sharedStore stands in for a database visible to the export worker.
type sharedStore struct {
	*memory.InterviewMemoryStorage
}

func (sharedStore) ProcessLocal() bool { return false }

type testServer struct {
	e     *echo.Echo
	store *memory.InterviewMemoryStorage
	ch    *recordingChannel
}

func newTestServer() *testServer {
	st := memory.NewInterviewMemoryStorage()
	ch := &recordingChannel{}
	app := &mid.App{
		Store:          sharedStore{st},
		Queue:          ch,
		Files:          fakeLinker{},
		Parallel:       2,
		MasterAPIKey:   masterKey,
		MasterUserID:   42,
		MasterUserRole: "admin",
	}
	return &testServer{e: New(app), store: st, ch: ch}
}

func (s *testServer) do(t *testing.T, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+masterKey)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestPublicRoutes(t *testing.T) {
	s := newTestServer()

	if rec := s.do(t, http.MethodGet, "/health", "", false); rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("health: %d %q", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, http.MethodGet, "/metrics", "", false); rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/schema/graph", "", false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("schema without auth: %d", rec.Code)
	}
	rec := s.do(t, http.MethodGet, "/api/schema/graph", "", true)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "is_value_path_completed") {
		t.Fatalf("schema: %d %s", rec.Code, rec.Body.String())
	}
}

func TestExtractChains(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodPost, "/api/chains/extract", `{"graph": `+coffeeGraph+`}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("extract: %d %s", rec.Code, rec.Body.String())
	}
	got := decode[[]common.StimulusGroup](t, rec)

	want := []common.StimulusGroup{{
		Stimulus: "Coffee",
		Chains:   []common.ACVChainText{{Attribute: "Caffeine", Consequence: "Awake", Value: "Success"}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}

	// Partial options keep the remaining defaults; the completed flag is
	// still required so an open path yields nothing.
	open := strings.Replace(coffeeGraph, `"Awake", "parents": [2], "children": [4], "is_value_path_completed": true`, `"Awake", "parents": [2], "children": [4], "is_value_path_completed": false`, 1)
	rec = s.do(t, http.MethodPost, "/api/chains/extract", `{"graph": `+open+`, "options": {"include_empty_stimuli": true}}`, true)
	got = decode[[]common.StimulusGroup](t, rec)
	if len(got) != 1 || len(got[0].Chains) != 0 {
		t.Fatalf("expected one empty group, got %+v", got)
	}

	for _, body := range []string{`{}`, `{"graph": 5}`, `not json`} {
		if rec := s.do(t, http.MethodPost, "/api/chains/extract", body, true); rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

// stimulus -> attribute -> c1 -> c2 -> value, plus the shorter c1 -> value
const deepGraph = `{
  "nodes": [
    {"id": 1, "label": "STIMULUS", "conclusion": "Tea", "parents": [], "is_value_path_completed": true},
    {"id": 2, "label": "ATTRIBUTE", "conclusion": "Warm", "parents": [1], "is_value_path_completed": true},
    {"id": 3, "label": "CONSEQUENCE", "conclusion": "Relaxed", "parents": [2], "is_value_path_completed": true},
    {"id": 4, "label": "CONSEQUENCE", "conclusion": "Focused", "parents": [3], "is_value_path_completed": true},
    {"id": 5, "label": "VALUE", "conclusion": "Balance", "parents": [4], "is_value_path_completed": false}
  ]
}`

func TestExtractChains_OptionSpellings(t *testing.T) {
	s := newTestServer()

	merged := []common.StimulusGroup{{
		Stimulus: "Tea",
		Chains:   []common.ACVChainText{{Attribute: "Warm", Consequence: "Relaxed > Focused", Value: "Balance"}},
	}}

	tests := []struct {
		name    string
		options string
	}{
		{"snake_case", `{"merge_consequence_path": true, "require_completed_flag": false}`},
		{"camel_case", `{"mergeConsequencePath": true, "requireCompletedFlag": false}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/chains/extract", `{"graph": `+deepGraph+`, "options": `+tc.options+`}`, true)
			if rec.Code != http.StatusOK {
				t.Fatalf("extract: %d %s", rec.Code, rec.Body.String())
			}
			if diff := cmp.Diff(merged, decode[[]common.StimulusGroup](t, rec)); diff != "" {
				t.Fatalf("options not applied (-want +got):\n%s", diff)
			}
		})
	}

	rec := s.do(t, http.MethodPost, "/api/chains/extract", `{"graph": `+deepGraph+`, "options": {"mergeConsequencePath": "yes"}}`, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-boolean option: expected 400, got %d", rec.Code)
	}
}

func TestExtractChainsBatch(t *testing.T) {
	s := newTestServer()

	body := `{"graphs": [` + coffeeGraph + `, {"nodes": []}], "options": {"merge_consequence_path": true}}`
	rec := s.do(t, http.MethodPost, "/api/chains/extract/batch", body, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("batch: %d %s", rec.Code, rec.Body.String())
	}
	got := decode[[][]common.StimulusGroup](t, rec)
	if len(got) != 2 || len(got[0]) != 1 || len(got[1]) != 0 {
		t.Fatalf("unexpected batch result %+v", got)
	}

	if rec := s.do(t, http.MethodPost, "/api/chains/extract/batch", `{"graphs": []}`, true); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty batch: expected 400, got %d", rec.Code)
	}
}

func TestInterviewGraphAndChains(t *testing.T) {
	s := newTestServer()

	if rec := s.do(t, http.MethodGet, "/api/interviews/iv1/chains", "", true); rec.Code != http.StatusNotFound {
		t.Fatalf("chains before upload: expected 404, got %d", rec.Code)
	}

	for want := int64(1); want <= 2; want++ {
		rec := s.do(t, http.MethodPut, "/api/interviews/iv1/graph", coffeeGraph, true)
		if rec.Code != http.StatusOK {
			t.Fatalf("put: %d %s", rec.Code, rec.Body.String())
		}
		if got := decode[struct {
			Revision int64 `json:"revision"`
		}](t, rec); got.Revision != want {
			t.Fatalf("revision = %d, want %d", got.Revision, want)
		}
	}

	if rec := s.do(t, http.MethodPut, "/api/interviews/iv1/graph", `[1,2]`, true); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid graph: expected 400, got %d", rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/api/interviews/iv1/chains?revision=1&require_completed_flag=false", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("chains: %d %s", rec.Code, rec.Body.String())
	}
	got := decode[struct {
		Revision int64                  `json:"revision"`
		Cached   bool                   `json:"cached"`
		Groups   []common.StimulusGroup `json:"groups"`
		Options  map[string]bool        `json:"options"`
	}](t, rec)
	if got.Revision != 1 || got.Cached || len(got.Groups) != 1 {
		t.Fatalf("unexpected chains response %+v", got)
	}
	if got.Options["require_completed_flag"] || !got.Options["check_super_set"] {
		t.Fatalf("query options not applied: %v", got.Options)
	}

	rec = s.do(t, http.MethodGet, "/api/interviews/iv1/chains?requireCompletedFlag=false&checkSuperSet=false", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("chains: %d %s", rec.Code, rec.Body.String())
	}
	camel := decode[struct {
		Options map[string]bool `json:"options"`
	}](t, rec)
	if camel.Options["require_completed_flag"] || camel.Options["check_super_set"] {
		t.Fatalf("camelCase query options not applied: %v", camel.Options)
	}

	if rec := s.do(t, http.MethodGet, "/api/interviews/iv1/chains?revision=abc", "", true); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad revision: expected 400, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/interviews/iv1/chains?revision=9", "", true); rec.Code != http.StatusNotFound {
		t.Fatalf("missing revision: expected 404, got %d", rec.Code)
	}
}

func TestExports(t *testing.T) {
	s := newTestServer()
	ctx := context.Background()

	if rec := s.do(t, http.MethodPost, "/api/interviews/iv1/exports", `{"format":"csv"}`, true); rec.Code != http.StatusNotFound {
		t.Fatalf("export without graph: expected 404, got %d", rec.Code)
	}

	s.do(t, http.MethodPut, "/api/interviews/iv1/graph", coffeeGraph, true)

	if rec := s.do(t, http.MethodPost, "/api/interviews/iv1/exports", `{"format":"xml"}`, true); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad format: expected 400, got %d", rec.Code)
	}

	rec := s.do(t, http.MethodPost, "/api/interviews/iv1/exports", `{"format":"csv","options":{"merge_consequence_path":true}}`, true)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create export: %d %s", rec.Code, rec.Body.String())
	}
	created := decode[struct {
		Export store.ExportRecord `json:"export"`
	}](t, rec).Export
	if created.Status != store.ExportPending || created.Revision != 1 || created.CreatedBy != 42 || !created.Options.MergeConsequencePath {
		t.Fatalf("unexpected export %+v", created)
	}

	if len(s.ch.keys) != 1 || s.ch.keys[0] != queue.ExportQueue {
		t.Fatalf("expected one message on %s, got %v", queue.ExportQueue, s.ch.keys)
	}
	var msg queue.ExportChainsMsg
	if err := json.Unmarshal(s.ch.published[0].Body, &msg); err != nil {
		t.Fatalf("queued message: %v", err)
	}
	if msg.ExportID != created.ID || msg.InterviewID != "iv1" || msg.Format != "csv" || !msg.Options.CheckSuperSet {
		t.Fatalf("unexpected queued message %+v", msg)
	}

	path := "/api/interviews/iv1/exports/" + created.ID
	rec = s.do(t, http.MethodGet, path, "", true)
	pending := decode[struct {
		Export      store.ExportRecord `json:"export"`
		DownloadURL string             `json:"download_url"`
	}](t, rec)
	if pending.Export.Status != store.ExportPending || pending.DownloadURL != "" {
		t.Fatalf("unexpected pending export %+v", pending)
	}

	if err := s.store.UpdateExportStatus(ctx, created.ID, store.ExportCompleted, "interviews/iv1/exports/x.csv", ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	rec = s.do(t, http.MethodGet, path, "", true)
	done := decode[struct {
		DownloadURL string `json:"download_url"`
	}](t, rec)
	if done.DownloadURL != "https://files.test/interviews/iv1/exports/x.csv?ttl=15m0s" {
		t.Fatalf("unexpected download url %q", done.DownloadURL)
	}

	if rec := s.do(t, http.MethodGet, "/api/interviews/other/exports/"+created.ID, "", true); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign interview: expected 404, got %d", rec.Code)
	}
}

func TestExports_FromObjectKey(t *testing.T) {
	s := newTestServer()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"foreign_prefix", `{"format":"json","graph_key":"interviews/iv2/graph.json"}`, http.StatusBadRequest},
		{"sibling_prefix", `{"format":"json","graph_key":"interviews/iv10/graph.json"}`, http.StatusBadRequest},
		{"with_revision", `{"format":"json","revision":1,"graph_key":"interviews/iv1/graph.json"}`, http.StatusBadRequest},
		{"accepted", `{"format":"json","graph_key":"interviews/iv1/uploads/graph.json"}`, http.StatusAccepted},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if rec := s.do(t, http.MethodPost, "/api/interviews/iv1/exports", tc.body, true); rec.Code != tc.code {
				t.Fatalf("expected %d, got %d %s", tc.code, rec.Code, rec.Body.String())
			}
		})
	}

	if len(s.ch.published) != 1 {
		t.Fatalf("expected one queued message, got %d", len(s.ch.published))
	}
	var msg queue.ExportChainsMsg
	if err := json.Unmarshal(s.ch.published[0].Body, &msg); err != nil {
		t.Fatalf("queued message: %v", err)
	}
	if msg.GraphKey != "interviews/iv1/uploads/graph.json" || msg.Revision != 0 || msg.InterviewID != "iv1" {
		t.Fatalf("unexpected queued message %+v", msg)
	}
}

func TestExports_UnavailableWithoutSharedStore(t *testing.T) {
	st := memory.NewInterviewMemoryStorage()
	ch := &recordingChannel{}
	s := &testServer{
		e: New(&mid.App{
			Store:        st,
			Queue:        ch,
			Files:        fakeLinker{},
			MasterAPIKey: masterKey,
		}),
		store: st,
		ch:    ch,
	}

	if rec := s.do(t, http.MethodPut, "/api/interviews/iv1/graph", coffeeGraph, true); rec.Code != http.StatusOK {
		t.Fatalf("put: %d %s", rec.Code, rec.Body.String())
	}
	rec := s.do(t, http.MethodPost, "/api/interviews/iv1/exports", `{"format":"csv"}`, true)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d %s", rec.Code, rec.Body.String())
	}
	if len(ch.published) != 0 {
		t.Fatalf("nothing may be queued for an in-memory store, got %v", ch.keys)
	}
}
