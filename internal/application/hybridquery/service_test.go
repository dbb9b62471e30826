package hybridquery

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ufdr-insight-api/internal/application/casespace"
	"ufdr-insight-api/internal/domain/evidence"
	"ufdr-insight-api/internal/protocol"
	apperrors "ufdr-insight-api/pkg/errors"
)

type memStore struct {
	cases map[string]*evidence.CaseModel
}

func (s *memStore) Save(_ context.Context, c *evidence.CaseModel) error {
	s.cases[c.ID] = c
	return nil
}

func (s *memStore) FindByID(_ context.Context, id string) (*evidence.CaseModel, error) {
	return s.cases[id], nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	delete(s.cases, id)
	return nil
}

func (s *memStore) List(_ context.Context) ([]*evidence.CaseModel, error) {
	return nil, nil
}

type noopProvisioner struct{}

func (noopProvisioner) CreateSchema(context.Context, string) error     { return nil }
func (noopProvisioner) DropSchema(context.Context, string) error       { return nil }
func (noopProvisioner) CreateCollection(context.Context, string) error { return nil }
func (noopProvisioner) DropCollection(context.Context, string) error   { return nil }
func (noopProvisioner) CreateNamespace(context.Context, string) error  { return nil }
func (noopProvisioner) DropNamespace(context.Context, string) error    { return nil }

type fakeNarrator struct {
	text string
	err  error
}

func (f *fakeNarrator) Narrate(_ context.Context, _ string, _ *RankedResult) (string, error) {
	return f.text, f.err
}

type memCache struct {
	entries map[string]*CachedAnswer
}

func (c *memCache) Get(_ context.Context, key string) (*CachedAnswer, bool, error) {
	a, ok := c.entries[key]
	return a, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, answer *CachedAnswer, _ time.Duration) error {
	c.entries[key] = answer
	return nil
}

func newTestService(t *testing.T, relational RelationalStore, vector VectorStore, graph GraphStore, narrator Narrator, cache ResultCache) *Service {
	t.Helper()
	registry := casespace.NewRegistry(&memStore{cases: make(map[string]*evidence.CaseModel)},
		noopProvisioner{}, noopProvisioner{}, noopProvisioner{})
	_, err := registry.Provision(context.Background(), "case-x", "insp. doyle")
	require.NoError(t, err)

	coord := NewCoordinator(relational, vector, graph, testQueryConfig())
	return NewService(registry, coord, nil, narrator, cache, testQueryConfig())
}

func TestExecuteUnknownCase(t *testing.T) {
	svc := newTestService(t, &fakeRelational{}, &fakeVector{}, &fakeGraph{}, nil, nil)

	_, err := svc.Execute(context.Background(), "no-such-case", "how many calls")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnknownCase))
}

func TestExecuteStructuredQueryEncodesRecords(t *testing.T) {
	relational := &fakeRelational{candidates: []Candidate{
		chatCandidate(OriginRelational, 0, "+111", "wire the money"),
	}}
	svc := newTestService(t, relational, &fakeVector{}, &fakeGraph{}, nil, nil)

	answer, err := svc.Execute(context.Background(), "case-x", "how many messages")
	require.NoError(t, err)
	assert.Equal(t, StrategyStructured, answer.Strategy)
	assert.False(t, answer.FromCache)

	doc := protocol.Decode(answer.Text)
	require.Len(t, doc.Records, 1)
	assert.Equal(t, evidence.KindChat, doc.Records[0].Kind)
}

func TestExecuteDegradedAnswerCarriesNote(t *testing.T) {
	relational := &fakeRelational{candidates: []Candidate{
		chatCandidate(OriginRelational, 0, "+111", "hello"),
	}}
	graph := &fakeGraph{err: errors.New("neo4j down")}
	svc := newTestService(t, relational, &fakeVector{}, graph, nil, nil)

	answer, err := svc.Execute(context.Background(), "case-x", "who is connected to +14155550123")
	require.NoError(t, err)
	assert.Equal(t, []string{"graph"}, answer.Degraded)
	assert.Contains(t, answer.Text, "unavailable sources: graph")
}

func TestExecuteCacheShortCircuitsFanout(t *testing.T) {
	relational := &fakeRelational{candidates: []Candidate{
		chatCandidate(OriginRelational, 0, "+111", "hello"),
	}}
	cache := &memCache{entries: make(map[string]*CachedAnswer)}
	svc := newTestService(t, relational, &fakeVector{}, &fakeGraph{}, nil, cache)

	first, err := svc.Execute(context.Background(), "case-x", "how many messages")
	require.NoError(t, err)
	require.False(t, first.FromCache)

	// 第二次后端即使报错也不会被触碰
	relational.err = errors.New("postgres down")
	relational.candidates = nil

	second, err := svc.Execute(context.Background(), "case-x", "How  many messages")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Text, second.Text)
}

func TestExecuteNarratorFailureFallsBack(t *testing.T) {
	relational := &fakeRelational{candidates: []Candidate{
		chatCandidate(OriginRelational, 0, "+111", "hello"),
	}}
	narrator := &fakeNarrator{err: errors.New("llm unavailable")}
	svc := newTestService(t, relational, &fakeVector{}, &fakeGraph{}, narrator, nil)

	answer, err := svc.Execute(context.Background(), "case-x", "list all messages")
	require.NoError(t, err)
	assert.Contains(t, answer.Text, "1 evidence item")
	assert.Contains(t, answer.Text, "CHAT RECORDS")
}

func TestExecuteCompliantNarrationUsedVerbatim(t *testing.T) {
	narration := "One chat stands out.\n\nCHAT RECORDS\n1. App: Signal | From: +111 | Message: wire the money"
	narrator := &fakeNarrator{text: narration}
	relational := &fakeRelational{candidates: []Candidate{
		chatCandidate(OriginRelational, 0, "+111", "wire the money"),
	}}
	svc := newTestService(t, relational, &fakeVector{}, &fakeGraph{}, narrator, nil)

	answer, err := svc.Execute(context.Background(), "case-x", "list all messages")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(answer.Text, "One chat stands out."))

	doc := protocol.Decode(answer.Text)
	require.Len(t, doc.Records, 1)
	assert.Equal(t, "Signal", doc.Records[0].Chat.App)
}

// gatedRelational 在首次查询时阻塞，直到测试放行
type gatedRelational struct {
	entered    chan struct{}
	release    chan struct{}
	once       sync.Once
	candidates []Candidate
}

func (g *gatedRelational) Query(_ context.Context, _ *casespace.Handle, _ string, _ int) ([]Candidate, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.candidates, nil
}

func TestExecuteLeaderCancelDoesNotAbortSharedFlight(t *testing.T) {
	relational := &gatedRelational{
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
		candidates: []Candidate{chatCandidate(OriginRelational, 0, "+111", "hello")},
	}
	svc := newTestService(t, relational, &fakeVector{}, &fakeGraph{}, nil, nil)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.Execute(leaderCtx, "case-x", "how many messages")
		leaderErr <- err
	}()
	<-relational.entered

	type followerResult struct {
		answer *Answer
		err    error
	}
	follower := make(chan followerResult, 1)
	go func() {
		a, err := svc.Execute(context.Background(), "case-x", "how many messages")
		follower <- followerResult{a, err}
	}()

	// 领头请求断开只影响它自己
	cancel()
	require.Error(t, <-leaderErr)

	close(relational.release)
	res := <-follower
	require.NoError(t, res.err)
	require.NotNil(t, res.answer)

	doc := protocol.Decode(res.answer.Text)
	require.Len(t, doc.Records, 1)
	assert.Equal(t, evidence.KindChat, doc.Records[0].Kind)
}

func TestExecuteEmptyQuestionRejected(t *testing.T) {
	svc := newTestService(t, &fakeRelational{}, &fakeVector{}, &fakeGraph{}, nil, nil)

	_, err := svc.Execute(context.Background(), "case-x", "   ")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
}
