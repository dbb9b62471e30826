package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ufdr-insight-api/internal/domain/evidence"
)

// CaseRepo 案件登记表仓储
type CaseRepo struct {
	client *Client
}

// NewCaseRepo 创建案件仓储
func NewCaseRepo(client *Client) *CaseRepo {
	return &CaseRepo{client: client}
}

// Migrate 创建登记表结构
func (r *CaseRepo) Migrate() error {
	return r.client.db.AutoMigrate(&evidence.CaseModel{})
}

// Save 登记案件
func (r *CaseRepo) Save(ctx context.Context, c *evidence.CaseModel) error {
	ctx, span := tracer.Start(ctx, "postgres.CaseRepo.Save")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Create(c).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save case: %w", err)
	}
	return nil
}

// FindByID 查找案件，不存在时返回 nil 而非错误
func (r *CaseRepo) FindByID(ctx context.Context, id string) (*evidence.CaseModel, error) {
	ctx, span := tracer.Start(ctx, "postgres.CaseRepo.FindByID")
	defer span.End()

	var c evidence.CaseModel
	err := r.client.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to find case: %w", err)
	}
	return &c, nil
}

// Delete 注销案件登记
func (r *CaseRepo) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.CaseRepo.Delete")
	defer span.End()

	err := r.client.db.WithContext(ctx).Where("id = ?", id).Delete(&evidence.CaseModel{}).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete case: %w", err)
	}
	return nil
}

// List 列出全部案件，按创建时间倒序
func (r *CaseRepo) List(ctx context.Context) ([]*evidence.CaseModel, error) {
	ctx, span := tracer.Start(ctx, "postgres.CaseRepo.List")
	defer span.End()

	var cases []*evidence.CaseModel
	err := r.client.db.WithContext(ctx).Order("created_at DESC").Find(&cases).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return cases, nil
}
