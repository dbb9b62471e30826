package casespace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ufdr-insight-api/internal/domain/evidence"
	apperrors "ufdr-insight-api/pkg/errors"
)

type fakeStore struct {
	cases map[string]*evidence.CaseModel
	fail  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{cases: make(map[string]*evidence.CaseModel)}
}

func (s *fakeStore) Save(_ context.Context, c *evidence.CaseModel) error {
	if s.fail {
		return errors.New("save failed")
	}
	s.cases[c.ID] = c
	return nil
}

func (s *fakeStore) FindByID(_ context.Context, id string) (*evidence.CaseModel, error) {
	return s.cases[id], nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	delete(s.cases, id)
	return nil
}

func (s *fakeStore) List(_ context.Context) ([]*evidence.CaseModel, error) {
	out := make([]*evidence.CaseModel, 0, len(s.cases))
	for _, c := range s.cases {
		out = append(out, c)
	}
	return out, nil
}

type fakeProvisioner struct {
	created   []string
	dropped   []string
	createErr error
	dropErr   error
}

func (p *fakeProvisioner) create(name string) error {
	if p.createErr != nil {
		return p.createErr
	}
	p.created = append(p.created, name)
	return nil
}

func (p *fakeProvisioner) drop(name string) error {
	if p.dropErr != nil {
		return p.dropErr
	}
	p.dropped = append(p.dropped, name)
	return nil
}

func (p *fakeProvisioner) CreateSchema(_ context.Context, s string) error     { return p.create(s) }
func (p *fakeProvisioner) DropSchema(_ context.Context, s string) error       { return p.drop(s) }
func (p *fakeProvisioner) CreateCollection(_ context.Context, s string) error { return p.create(s) }
func (p *fakeProvisioner) DropCollection(_ context.Context, s string) error   { return p.drop(s) }
func (p *fakeProvisioner) CreateNamespace(_ context.Context, s string) error  { return p.create(s) }
func (p *fakeProvisioner) DropNamespace(_ context.Context, s string) error    { return p.drop(s) }

func TestSanitizeCaseID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "alpha", "alpha"},
		{"uppercase and dashes", "Case-2024/X", "case_2024_x"},
		{"leading digit", "2024-001", "case_2024_001"},
		{"spaces", "  Op Silver  ", "op_silver"},
		{"empty", "", "unnamed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeCaseID(tt.in)
			assert.Equal(t, tt.want, got)
			// 幂等：重复清洗不再变化
			assert.Equal(t, got, SanitizeCaseID(got))
		})
	}
}

func TestProvisionThenResolveSharesSuffix(t *testing.T) {
	reg := NewRegistry(newFakeStore(), &fakeProvisioner{}, &fakeProvisioner{}, &fakeProvisioner{})

	provisioned, err := reg.Provision(context.Background(), "OP-2024/Silver", "insp. doyle")
	require.NoError(t, err)

	resolved, err := reg.Resolve(context.Background(), "OP-2024/Silver")
	require.NoError(t, err)

	safe := SanitizeCaseID("OP-2024/Silver")
	assert.Equal(t, "case_"+safe, resolved.Schema)
	assert.Equal(t, "evidence_"+safe, resolved.Collection)
	assert.Equal(t, "Case_"+safe, resolved.GraphLabel)
	assert.Equal(t, provisioned.Schema, resolved.Schema)
	assert.Equal(t, provisioned.Collection, resolved.Collection)
	assert.Equal(t, provisioned.GraphLabel, resolved.GraphLabel)
}

func TestResolveUnknownCase(t *testing.T) {
	reg := NewRegistry(newFakeStore(), &fakeProvisioner{}, &fakeProvisioner{}, &fakeProvisioner{})

	_, err := reg.Resolve(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnknownCase))
}

func TestProvisionRollsBackOnFailure(t *testing.T) {
	relational := &fakeProvisioner{}
	vector := &fakeProvisioner{}
	graph := &fakeProvisioner{createErr: errors.New("neo4j down")}
	store := newFakeStore()
	reg := NewRegistry(store, relational, vector, graph)

	_, err := reg.Provision(context.Background(), "case-x", "insp. doyle")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProvisioningFailed))

	// 已建的关系 schema 和向量集合都被回滚
	assert.Len(t, relational.dropped, 1)
	assert.Len(t, vector.dropped, 1)
	assert.Empty(t, store.cases)
}

func TestProvisionTwiceFails(t *testing.T) {
	reg := NewRegistry(newFakeStore(), &fakeProvisioner{}, &fakeProvisioner{}, &fakeProvisioner{})

	_, err := reg.Provision(context.Background(), "case-x", "insp. doyle")
	require.NoError(t, err)

	_, err = reg.Provision(context.Background(), "case-x", "insp. doyle")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProvisioningFailed))
}

func TestTeardownReportsPartialFailure(t *testing.T) {
	relational := &fakeProvisioner{}
	vector := &fakeProvisioner{}
	graph := &fakeProvisioner{}
	store := newFakeStore()
	reg := NewRegistry(store, relational, vector, graph)

	_, err := reg.Provision(context.Background(), "case-x", "insp. doyle")
	require.NoError(t, err)

	vector.dropErr = errors.New("milvus unreachable")

	err = reg.Teardown(context.Background(), "case-x")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodePartialTeardown))

	appErr := apperrors.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Contains(t, appErr.Detail, "vector:evidence_case_x")

	// 登记保留，运维清理后可重试
	_, err = reg.Resolve(context.Background(), "case-x")
	assert.NoError(t, err)
}

func TestTeardownRemovesRegistration(t *testing.T) {
	store := newFakeStore()
	reg := NewRegistry(store, &fakeProvisioner{}, &fakeProvisioner{}, &fakeProvisioner{})

	_, err := reg.Provision(context.Background(), "case-x", "insp. doyle")
	require.NoError(t, err)

	require.NoError(t, reg.Teardown(context.Background(), "case-x"))

	_, err = reg.Resolve(context.Background(), "case-x")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnknownCase))
}
