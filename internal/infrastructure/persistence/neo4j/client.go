// Package neo4j 提供 Neo4j 图数据库访问层实现
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel"

	"ufdr-insight-api/internal/config"
)

var tracer = otel.Tracer("neo4j")

// Client Neo4j 客户端
type Client struct {
	driver neo4j.DriverWithContext
	config *config.Neo4jConfig
}

// NewClient 创建 Neo4j 客户端
func NewClient(ctx context.Context, cfg *config.Neo4jConfig) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}

	return &Client{
		driver: driver,
		config: cfg,
	}, nil
}

// Driver 获取底层驱动
func (c *Client) Driver() neo4j.DriverWithContext {
	return c.driver
}

// Close 关闭驱动连接
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// HealthCheck 健康检查
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "neo4j.HealthCheck")
	defer span.End()

	if err := c.driver.VerifyConnectivity(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Run 在配置的数据库上执行一条 Cypher 并立即物化结果
func (c *Client) Run(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, c.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.config.Database))
}
