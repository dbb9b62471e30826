package report

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ufdr-insight-api/internal/application/casespace"
	"ufdr-insight-api/internal/application/hybridquery"
	"ufdr-insight-api/internal/domain/evidence"
)

func chatRecord(from, message string) *evidence.Record {
	r := evidence.NewRecord(evidence.KindChat)
	r.Set("from", from)
	r.Set("message", message)
	return r
}

func TestAssessBenignRecords(t *testing.T) {
	records := []*evidence.Record{
		chatRecord("+111", "see you at dinner"),
		chatRecord("+222", "happy birthday"),
	}

	a := Assess(records)
	assert.Equal(t, RiskLow, a.Level)
	assert.Zero(t, a.Score)
	assert.Empty(t, a.Flagged)
}

func TestAssessFlagsRiskKeywords(t *testing.T) {
	records := []*evidence.Record{
		chatRecord("+111", "the shipment arrives tonight, bring cash"),
		chatRecord("+222", "use the burner phone"),
		chatRecord("+333", "nothing to see here"),
	}

	a := Assess(records)
	assert.GreaterOrEqual(t, a.Score, mediumThreshold)
	assert.NotEqual(t, RiskLow, a.Level)
	assert.Contains(t, a.Indicators, "shipment")
	assert.Contains(t, a.Indicators, "burner")
	assert.Len(t, a.Flagged, 2)
}

func TestAssessCriticalEscalation(t *testing.T) {
	records := []*evidence.Record{
		chatRecord("+111", "move the cocaine before the police come"),
		chatRecord("+222", "he has a gun, they will kill him"),
		chatRecord("+333", "launder it through crypto"),
	}

	a := Assess(records)
	assert.Equal(t, RiskCritical, a.Level)
}

func TestAssessDeterministic(t *testing.T) {
	records := []*evidence.Record{
		chatRecord("+111", "wire the cash for the deal"),
		chatRecord("+222", "the package is ready"),
	}

	first := Assess(records)
	for i := 0; i < 5; i++ {
		again := Assess(records)
		assert.Equal(t, first.Score, again.Score)
		assert.Equal(t, first.Level, again.Level)
		assert.Equal(t, first.Indicators, again.Indicators)
	}
}

type fakeSource struct {
	candidates []hybridquery.Candidate
	counts     map[string]int64
}

func (f *fakeSource) Query(_ context.Context, _ *casespace.Handle, _ string, _ int) ([]hybridquery.Candidate, error) {
	return f.candidates, nil
}

func (f *fakeSource) Counts(_ context.Context, _ *casespace.Handle) (map[string]int64, error) {
	return f.counts, nil
}

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

func (s *memStore) List(_ context.Context) ([]*evidence.CaseModel, error) { return nil, nil }

type noopProvisioner struct{}

func (noopProvisioner) CreateSchema(context.Context, string) error     { return nil }
func (noopProvisioner) DropSchema(context.Context, string) error       { return nil }
func (noopProvisioner) CreateCollection(context.Context, string) error { return nil }
func (noopProvisioner) DropCollection(context.Context, string) error   { return nil }
func (noopProvisioner) CreateNamespace(context.Context, string) error  { return nil }
func (noopProvisioner) DropNamespace(context.Context, string) error    { return nil }

func TestGenerateReportWithoutNarrator(t *testing.T) {
	registry := casespace.NewRegistry(&memStore{cases: make(map[string]*evidence.CaseModel)},
		noopProvisioner{}, noopProvisioner{}, noopProvisioner{})
	_, err := registry.Provision(context.Background(), "case-x", "insp. doyle")
	require.NoError(t, err)

	source := &fakeSource{
		candidates: []hybridquery.Candidate{
			{Record: chatRecord("+111", "bring the cash for the shipment"), Origin: hybridquery.OriginRelational},
		},
		counts: map[string]int64{"chat_records": 42, "call_records": 7},
	}

	gen := NewGenerator(registry, source, nil, nil)
	report, err := gen.Generate(context.Background(), "case-x")
	require.NoError(t, err)

	assert.Equal(t, "case-x", report.CaseID)
	assert.Equal(t, "insp. doyle", report.Investigator)
	assert.Equal(t, int64(42), report.Counts["chat_records"])
	assert.NotEqual(t, RiskLow, report.RiskLevel)
	assert.Nil(t, report.Network)
	assert.Contains(t, report.Summary, "42 chat records")
	assert.Contains(t, report.FlaggedRecords, "CHAT RECORDS")
}

func TestGenerateReportUnknownCase(t *testing.T) {
	registry := casespace.NewRegistry(&memStore{cases: make(map[string]*evidence.CaseModel)},
		noopProvisioner{}, noopProvisioner{}, noopProvisioner{})
	gen := NewGenerator(registry, &fakeSource{}, nil, nil)

	_, err := gen.Generate(context.Background(), "ghost")
	require.Error(t, err)
}

type fakeGraphSource struct {
	stats *NetworkStats
	err   error
}

func (f *fakeGraphSource) Stats(_ context.Context, _ *casespace.Handle) (*NetworkStats, error) {
	return f.stats, f.err
}

func TestGenerateReportCarriesNetworkStats(t *testing.T) {
	registry := casespace.NewRegistry(&memStore{cases: make(map[string]*evidence.CaseModel)},
		noopProvisioner{}, noopProvisioner{}, noopProvisioner{})
	_, err := registry.Provision(context.Background(), "case-x", "insp. doyle")
	require.NoError(t, err)

	graph := &fakeGraphSource{stats: &NetworkStats{
		Nodes: 12, Edges: 30,
		KeyPlayers: []KeyPlayer{{EntityID: "+111", Degree: 9}, {EntityID: "+222", Degree: 4}},
	}}
	gen := NewGenerator(registry, &fakeSource{}, graph, nil)

	report, err := gen.Generate(context.Background(), "case-x")
	require.NoError(t, err)
	require.NotNil(t, report.Network)
	assert.Equal(t, int64(12), report.Network.Nodes)
	assert.Contains(t, report.Summary, "Key communicators: +111, +222")
}

func TestGenerateReportSurvivesGraphFailure(t *testing.T) {
	registry := casespace.NewRegistry(&memStore{cases: make(map[string]*evidence.CaseModel)},
		noopProvisioner{}, noopProvisioner{}, noopProvisioner{})
	_, err := registry.Provision(context.Background(), "case-x", "insp. doyle")
	require.NoError(t, err)

	graph := &fakeGraphSource{err: context.DeadlineExceeded}
	gen := NewGenerator(registry, &fakeSource{}, graph, nil)

	report, err := gen.Generate(context.Background(), "case-x")
	require.NoError(t, err)
	assert.Nil(t, report.Network)
}

func TestGenerateReportTimeline(t *testing.T) {
	registry := casespace.NewRegistry(&memStore{cases: make(map[string]*evidence.CaseModel)},
		noopProvisioner{}, noopProvisioner{}, noopProvisioner{})
	_, err := registry.Provision(context.Background(), "case-x", "insp. doyle")
	require.NoError(t, err)

	early := chatRecord("+111", "first contact")
	early.Set("time", "2024-03-01 09:00:00")
	late := chatRecord("+222", "last contact")
	late.Set("time", "2024-03-15 22:30:00")
	unparsed := chatRecord("+333", "no usable timestamp")
	unparsed.Set("time", "yesterday evening")

	source := &fakeSource{candidates: []hybridquery.Candidate{
		{Record: late, Origin: hybridquery.OriginRelational},
		{Record: early, Origin: hybridquery.OriginRelational},
		{Record: unparsed, Origin: hybridquery.OriginRelational},
	}}
	gen := NewGenerator(registry, source, nil, nil)

	report, err := gen.Generate(context.Background(), "case-x")
	require.NoError(t, err)
	require.NotNil(t, report.Timeline)
	assert.Equal(t, "2024-03-01 09:00:00", report.Timeline.Earliest.Format("2006-01-02 15:04:05"))
	assert.Equal(t, "2024-03-15 22:30:00", report.Timeline.Latest.Format("2006-01-02 15:04:05"))
}

func callRecord(from, duration string) *evidence.Record {
	r := evidence.NewRecord(evidence.KindCall)
	r.Set("from", from)
	r.Set("duration", duration)
	return r
}

func TestAssessStructuralSignals(t *testing.T) {
	records := []*evidence.Record{
		callRecord("+111", "0s"),
		callRecord("+222", "00:00:00"),
		callRecord("+333", "02:15"),
	}
	for i, app := range []string{"WhatsApp", "Telegram", "Signal"} {
		r := evidence.NewRecord(evidence.KindChat)
		r.Set("app", app)
		r.Set("from", "+444")
		r.Set("message", "see you soon "+string(rune('a'+i)))
		records = append(records, r)
	}

	a := Assess(records)
	assert.Contains(t, a.Indicators, "zero-duration calls")
	assert.Contains(t, a.Indicators, "multiple messaging apps")
	assert.Equal(t, 2*zeroDurationCallWeight+multiAppWeight, a.Score)
	assert.Len(t, a.Flagged, 2)
}
