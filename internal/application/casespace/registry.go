// Package casespace 管理案件隔离环境：每个案件对应一个关系库 schema、
// 一个向量集合和一个图命名空间，三者同生共死
package casespace

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ufdr-insight-api/internal/domain/evidence"
	"ufdr-insight-api/pkg/errors"
	"ufdr-insight-api/pkg/logger"
	"ufdr-insight-api/pkg/metrics"
)

// Handle 案件的三个存储命名空间句柄
type Handle struct {
	CaseID       string
	SafeName     string
	Investigator string
	Schema       string
	Collection   string
	GraphLabel   string
	CreatedAt    time.Time
}

// RelationalProvisioner 关系库命名空间管理端口
type RelationalProvisioner interface {
	CreateSchema(ctx context.Context, schema string) error
	DropSchema(ctx context.Context, schema string) error
}

// VectorProvisioner 向量集合管理端口
type VectorProvisioner interface {
	CreateCollection(ctx context.Context, collection string) error
	DropCollection(ctx context.Context, collection string) error
}

// GraphProvisioner 图命名空间管理端口
type GraphProvisioner interface {
	CreateNamespace(ctx context.Context, label string) error
	DropNamespace(ctx context.Context, label string) error
}

// CaseStore 案件登记持久化端口
type CaseStore interface {
	Save(ctx context.Context, c *evidence.CaseModel) error
	FindByID(ctx context.Context, id string) (*evidence.CaseModel, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*evidence.CaseModel, error)
}

// Registry 案件环境注册表，案件存在性的唯一权威来源
type Registry struct {
	store      CaseStore
	relational RelationalProvisioner
	vector     VectorProvisioner
	graph      GraphProvisioner

	// 同一案件的创建/销毁必须串行，防止并发撕裂
	locks sync.Map // caseID -> *sync.Mutex
}

// NewRegistry 创建案件环境注册表
func NewRegistry(store CaseStore, relational RelationalProvisioner, vector VectorProvisioner, graph GraphProvisioner) *Registry {
	return &Registry{
		store:      store,
		relational: relational,
		vector:     vector,
		graph:      graph,
	}
}

// SanitizeCaseID 将案件标识规范化为安全名：小写、非字母数字替换为下划线、
// 数字开头补前缀。相同输入恒得相同输出，三个命名空间共享同一后缀。
func SanitizeCaseID(caseID string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(caseID)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	safe := b.String()
	if safe == "" {
		safe = "unnamed"
	}
	if safe[0] >= '0' && safe[0] <= '9' {
		safe = "case_" + safe
	}
	return safe
}

// Provision 创建案件的三个命名空间，全有或全无。
// 任何一步失败都会回滚已创建的命名空间并返回 ProvisioningError。
func (r *Registry) Provision(ctx context.Context, caseID, investigator string) (*Handle, error) {
	mu := r.lockFor(caseID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := r.store.FindByID(ctx, caseID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to look up case")
	}
	if existing != nil {
		return nil, errors.New(errors.CodeProvisioningFailed, "case already provisioned").
			WithDetail(fmt.Sprintf("case %s exists since %s", caseID, existing.CreatedAt.Format(time.RFC3339)))
	}

	handle := r.deriveHandle(caseID, investigator)

	var created []func(context.Context) error
	rollback := func() {
		for i := len(created) - 1; i >= 0; i-- {
			if err := created[i](ctx); err != nil {
				logger.Error(ctx, "rollback step failed during provision", err, "case_id", caseID)
			}
		}
	}

	if err := r.relational.CreateSchema(ctx, handle.Schema); err != nil {
		metrics.CaseProvisionTotal.WithLabelValues("error").Inc()
		return nil, errors.Wrap(err, errors.CodeProvisioningFailed, "failed to create relational schema")
	}
	created = append(created, func(ctx context.Context) error { return r.relational.DropSchema(ctx, handle.Schema) })

	if err := r.vector.CreateCollection(ctx, handle.Collection); err != nil {
		rollback()
		metrics.CaseProvisionTotal.WithLabelValues("error").Inc()
		return nil, errors.Wrap(err, errors.CodeProvisioningFailed, "failed to create vector collection")
	}
	created = append(created, func(ctx context.Context) error { return r.vector.DropCollection(ctx, handle.Collection) })

	if err := r.graph.CreateNamespace(ctx, handle.GraphLabel); err != nil {
		rollback()
		metrics.CaseProvisionTotal.WithLabelValues("error").Inc()
		return nil, errors.Wrap(err, errors.CodeProvisioningFailed, "failed to create graph namespace")
	}
	created = append(created, func(ctx context.Context) error { return r.graph.DropNamespace(ctx, handle.GraphLabel) })

	model := &evidence.CaseModel{
		ID:           caseID,
		SafeName:     handle.SafeName,
		Investigator: investigator,
		SchemaName:   handle.Schema,
		Collection:   handle.Collection,
		GraphLabel:   handle.GraphLabel,
		Status:       "active",
	}
	if err := r.store.Save(ctx, model); err != nil {
		rollback()
		metrics.CaseProvisionTotal.WithLabelValues("error").Inc()
		return nil, errors.Wrap(err, errors.CodeProvisioningFailed, "failed to register case")
	}

	metrics.CaseProvisionTotal.WithLabelValues("ok").Inc()
	metrics.ActiveCases.Inc()
	logger.Info(ctx, "case environment provisioned",
		"case_id", caseID, "schema", handle.Schema, "collection", handle.Collection, "graph_label", handle.GraphLabel)
	return handle, nil
}

// Resolve 查找已创建的案件环境，未创建返回 UnknownCaseError
func (r *Registry) Resolve(ctx context.Context, caseID string) (*Handle, error) {
	model, err := r.store.FindByID(ctx, caseID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to look up case")
	}
	if model == nil {
		return nil, errors.New(errors.CodeUnknownCase, "case not provisioned").WithDetail(caseID)
	}
	return &Handle{
		CaseID:       model.ID,
		SafeName:     model.SafeName,
		Investigator: model.Investigator,
		Schema:       model.SchemaName,
		Collection:   model.Collection,
		GraphLabel:   model.GraphLabel,
		CreatedAt:    model.CreatedAt,
	}, nil
}

// List 列出全部已创建的案件
func (r *Registry) List(ctx context.Context) ([]*Handle, error) {
	models, err := r.store.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to list cases")
	}
	handles := make([]*Handle, 0, len(models))
	for _, m := range models {
		handles = append(handles, &Handle{
			CaseID:       m.ID,
			SafeName:     m.SafeName,
			Investigator: m.Investigator,
			Schema:       m.SchemaName,
			Collection:   m.Collection,
			GraphLabel:   m.GraphLabel,
			CreatedAt:    m.CreatedAt,
		})
	}
	return handles, nil
}

// Teardown 删除案件的三个命名空间。
// 部分删除失败返回 PartialTeardownError 并点名残留的命名空间，
// 绝不静默吞掉，留给运维手工清理。
func (r *Registry) Teardown(ctx context.Context, caseID string) error {
	mu := r.lockFor(caseID)
	mu.Lock()
	defer mu.Unlock()

	handle, err := r.Resolve(ctx, caseID)
	if err != nil {
		return err
	}

	var remaining []string
	if err := r.relational.DropSchema(ctx, handle.Schema); err != nil {
		logger.Error(ctx, "failed to drop relational schema", err, "case_id", caseID, "schema", handle.Schema)
		remaining = append(remaining, "relational:"+handle.Schema)
	}
	if err := r.vector.DropCollection(ctx, handle.Collection); err != nil {
		logger.Error(ctx, "failed to drop vector collection", err, "case_id", caseID, "collection", handle.Collection)
		remaining = append(remaining, "vector:"+handle.Collection)
	}
	if err := r.graph.DropNamespace(ctx, handle.GraphLabel); err != nil {
		logger.Error(ctx, "failed to drop graph namespace", err, "case_id", caseID, "graph_label", handle.GraphLabel)
		remaining = append(remaining, "graph:"+handle.GraphLabel)
	}

	if len(remaining) > 0 && len(remaining) < 3 {
		metrics.CaseTeardownTotal.WithLabelValues("partial").Inc()
		return errors.New(errors.CodePartialTeardown, "case teardown incomplete").
			WithDetail("remaining namespaces: " + strings.Join(remaining, ", "))
	}
	if len(remaining) == 3 {
		metrics.CaseTeardownTotal.WithLabelValues("error").Inc()
		return errors.New(errors.CodePartialTeardown, "case teardown failed").
			WithDetail("remaining namespaces: " + strings.Join(remaining, ", "))
	}

	if err := r.store.Delete(ctx, caseID); err != nil {
		metrics.CaseTeardownTotal.WithLabelValues("error").Inc()
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to deregister case")
	}

	metrics.CaseTeardownTotal.WithLabelValues("ok").Inc()
	metrics.ActiveCases.Dec()
	logger.Info(ctx, "case environment torn down", "case_id", caseID)
	return nil
}

// deriveHandle 由案件标识派生三个命名空间名，共享同一安全后缀便于审计
func (r *Registry) deriveHandle(caseID, investigator string) *Handle {
	safe := SanitizeCaseID(caseID)
	return &Handle{
		CaseID:       caseID,
		SafeName:     safe,
		Investigator: investigator,
		Schema:       "case_" + safe,
		Collection:   "evidence_" + safe,
		GraphLabel:   "Case_" + safe,
		CreatedAt:    time.Now(),
	}
}

func (r *Registry) lockFor(caseID string) *sync.Mutex {
	v, _ := r.locks.LoadOrStore(caseID, &sync.Mutex{})
	return v.(*sync.Mutex)
}
