package hybridquery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ufdr-insight-api/internal/application/casespace"
	"ufdr-insight-api/internal/config"
	"ufdr-insight-api/internal/domain/evidence"
	apperrors "ufdr-insight-api/pkg/errors"
)

type fakeRelational struct {
	candidates []Candidate
	err        error
}

func (f *fakeRelational) Query(_ context.Context, _ *casespace.Handle, _ string, _ int) ([]Candidate, error) {
	return f.candidates, f.err
}

type fakeVector struct {
	candidates []Candidate
	err        error
}

func (f *fakeVector) Search(_ context.Context, _ *casespace.Handle, _ []float32, _ int, _ float64) ([]Candidate, error) {
	return f.candidates, f.err
}

type fakeGraph struct {
	candidates []Candidate
	err        error
	gotDepth   int
}

func (f *fakeGraph) Traverse(_ context.Context, _ *casespace.Handle, _ string, depth int) ([]Candidate, error) {
	f.gotDepth = depth
	return f.candidates, f.err
}

func testQueryConfig() *config.QueryConfig {
	return &config.QueryConfig{
		RelationalTimeout: 5 * time.Second,
		VectorTimeout:     5 * time.Second,
		GraphTimeout:      5 * time.Second,
		TopK:              10,
		SimilarityFloor:   0.3,
		MaxGraphDepth:     3,
		RowLimit:          50,
	}
}

func testHandle() *casespace.Handle {
	return &casespace.Handle{
		CaseID:     "case-x",
		SafeName:   "case_x",
		Schema:     "case_case_x",
		Collection: "evidence_case_x",
		GraphLabel: "Case_case_x",
	}
}

func hybridRequest() *RetrievalRequest {
	return &RetrievalRequest{
		Strategy:    StrategyHybrid,
		Text:        "who talked to +111",
		RowLimit:    50,
		Embedding:   []float32{0.1, 0.2},
		TopK:        10,
		StartEntity: "+111",
		MaxDepth:    3,
	}
}

func TestRetrievePartialFailureIsDegraded(t *testing.T) {
	relational := &fakeRelational{candidates: []Candidate{chatCandidate(OriginRelational, 0, "+111", "hello")}}
	vector := &fakeVector{err: errors.New("milvus unreachable")}
	graph := &fakeGraph{candidates: []Candidate{chatCandidate(OriginGraph, 0.5, "+222", "path hit")}}

	coord := NewCoordinator(relational, vector, graph, testQueryConfig())
	candidates, degraded, err := coord.Retrieve(context.Background(), testHandle(), hybridRequest())

	require.NoError(t, err)
	assert.Len(t, candidates, 2)
	assert.Equal(t, []Origin{OriginVector}, degraded)
}

func TestRetrieveAllBackendsFailed(t *testing.T) {
	relational := &fakeRelational{err: errors.New("postgres down")}
	vector := &fakeVector{err: errors.New("milvus down")}
	graph := &fakeGraph{err: errors.New("neo4j down")}

	coord := NewCoordinator(relational, vector, graph, testQueryConfig())
	_, _, err := coord.Retrieve(context.Background(), testHandle(), hybridRequest())

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeRetrievalUnavailable))
}

func TestRetrieveStructuredOnlyHitsRelational(t *testing.T) {
	relational := &fakeRelational{candidates: []Candidate{chatCandidate(OriginRelational, 0, "+111", "hello")}}
	vector := &fakeVector{err: errors.New("should not be called")}
	graph := &fakeGraph{err: errors.New("should not be called")}

	coord := NewCoordinator(relational, vector, graph, testQueryConfig())
	req := &RetrievalRequest{Strategy: StrategyStructured, Text: "how many calls", RowLimit: 50}

	candidates, degraded, err := coord.Retrieve(context.Background(), testHandle(), req)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
	assert.Empty(t, degraded)
}

func TestRetrieveClampsGraphDepth(t *testing.T) {
	graph := &fakeGraph{}
	coord := NewCoordinator(&fakeRelational{}, &fakeVector{}, graph, testQueryConfig())

	req := hybridRequest()
	req.MaxDepth = 12
	_, _, err := coord.Retrieve(context.Background(), testHandle(), req)
	require.NoError(t, err)
	assert.Equal(t, 5, graph.gotDepth)

	req.MaxDepth = 0
	_, _, err = coord.Retrieve(context.Background(), testHandle(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, graph.gotDepth)
}

func TestRetrieveSkipsGraphWithoutStartEntity(t *testing.T) {
	graph := &fakeGraph{err: errors.New("should not be called")}
	coord := NewCoordinator(&fakeRelational{}, &fakeVector{}, graph, testQueryConfig())

	req := hybridRequest()
	req.StartEntity = ""
	_, degraded, err := coord.Retrieve(context.Background(), testHandle(), req)

	require.NoError(t, err)
	assert.Empty(t, degraded)
}

func TestRetrieveCancelledContextDiscardsResults(t *testing.T) {
	relational := &fakeRelational{candidates: []Candidate{chatCandidate(OriginRelational, 0, "+111", "late arrival")}}
	coord := NewCoordinator(relational, &fakeVector{}, &fakeGraph{}, testQueryConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	candidates, _, err := coord.Retrieve(ctx, testHandle(), hybridRequest())
	require.Error(t, err)
	assert.Nil(t, candidates)
}

func TestRankedResultRecords(t *testing.T) {
	r := evidence.NewRecord(evidence.KindContact)
	r.Set("name", "Alice")
	result := &RankedResult{Candidates: []RankedCandidate{{Record: r, Score: 1}}}
	require.Len(t, result.Records(), 1)
	assert.Equal(t, "Alice", result.Records()[0].Contact.Name)
}
