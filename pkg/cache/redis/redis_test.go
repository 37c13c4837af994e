package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/OFFIS-RIT/laddering/backend/pkg/chain"
	"github.com/OFFIS-RIT/laddering/backend/pkg/common"
	"github.com/OFFIS-RIT/laddering/backend/pkg/store"

	"github.com/google/go-cmp/cmp"
	goredis "github.com/redis/go-redis/v9"
)

type memKV struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMemKV() *memKV {
	return &memKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memKV) Get(_ context.Context, key string) *goredis.StringCmd {
	if m.getErr != nil {
		return goredis.NewStringResult("", m.getErr)
	}
	v, ok := m.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (m *memKV) Set(_ context.Context, key string, value any, exp time.Duration) *goredis.StatusCmd {
	if m.setErr != nil {
		return goredis.NewStatusResult("", m.setErr)
	}
	m.data[key] = string(value.([]byte))
	m.ttls[key] = exp
	return goredis.NewStatusResult("OK", nil)
}

func snapshot() *store.GraphSnapshot {
	return &store.GraphSnapshot{
		InterviewID: "iv1",
		Revision:    3,
		Graph: &common.Graph{Nodes: []common.GraphNode{
			{ID: 1, Label: common.LabelStimulus, Conclusion: "Coffee", IsValuePathCompleted: true},
			{ID: 2, Label: common.LabelAttribute, Conclusion: "Caffeine", Parents: []int64{1}, IsValuePathCompleted: true},
			{ID: 3, Label: common.LabelConsequence, Conclusion: "Awake", Parents: []int64{2}, IsValuePathCompleted: true},
			{ID: 4, Label: common.LabelValue, Conclusion: "Success", Parents: []int64{3}, IsValuePathCompleted: true},
		}},
	}
}

func TestKey(t *testing.T) {
	if got := Key("iv1", 3, chain.DefaultOptions()); got != "chains:iv1:3:10001" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestExtract_MissThenHit(t *testing.T) {
	kv := newMemKV()
	c := NewResultCache(kv, 0)
	ctx := context.Background()
	snap := snapshot()
	opts := chain.DefaultOptions()

	first, hit := c.Extract(ctx, snap, opts)
	if hit {
		t.Fatalf("expected miss on empty cache")
	}
	if kv.ttls[Key("iv1", 3, opts)] != time.Hour {
		t.Fatalf("expected default ttl, got %v", kv.ttls)
	}

	second, hit := c.Extract(ctx, snap, opts)
	if !hit {
		t.Fatalf("expected hit after store")
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("cached result differs (-want +got):\n%s", diff)
	}

	want := []common.StimulusGroup{{
		Stimulus: "Coffee",
		Chains:   []common.ACVChainText{{Attribute: "Caffeine", Consequence: "Awake", Value: "Success"}},
	}}
	if diff := cmp.Diff(want, second); diff != "" {
		t.Fatalf("unexpected chains (-want +got):\n%s", diff)
	}
}

func TestExtract_FallsBackOnErrors(t *testing.T) {
	kv := newMemKV()
	kv.getErr = errors.New("connection refused")
	kv.setErr = errors.New("connection refused")
	c := NewResultCache(kv, time.Minute)

	groups, hit := c.Extract(context.Background(), snapshot(), chain.DefaultOptions())
	if hit {
		t.Fatalf("expected no hit when redis fails")
	}
	if chain.CountChains(groups) != 1 {
		t.Fatalf("expected direct extraction result, got %+v", groups)
	}
}

func TestExtract_NilCache(t *testing.T) {
	var c *ResultCache
	groups, hit := c.Extract(context.Background(), snapshot(), chain.DefaultOptions())
	if hit || len(groups) != 1 {
		t.Fatalf("nil cache must extract directly, got hit=%v groups=%+v", hit, groups)
	}
}

func TestGet_CorruptEntry(t *testing.T) {
	kv := newMemKV()
	opts := chain.DefaultOptions()
	kv.data[Key("iv1", 3, opts)] = "{not json"

	_, ok, err := NewResultCache(kv, 0).Get(context.Background(), "iv1", 3, opts)
	if ok || err == nil {
		t.Fatalf("expected corrupt entry error, got ok=%v err=%v", ok, err)
	}
}
