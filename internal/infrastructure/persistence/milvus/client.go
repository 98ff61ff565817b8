// Package milvus 把切片向量存放在 Milvus 集合中，检索与删除都带 user_id 过滤
package milvus

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rag-chat-api/internal/config"
)

var tracer = otel.Tracer("milvus")

// Client 连接与集合命名，向量读写见 Store
type Client struct {
	milvus client.Client
	config *config.MilvusConfig
}

// NewClient 未配置账号时以匿名方式连接
func NewClient(ctx context.Context, cfg *config.MilvusConfig) (*Client, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address:  net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Username: cfg.User,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Client{milvus: c, config: cfg}, nil
}

func (c *Client) Close() error {
	return c.milvus.Close()
}

// CollectionName 加上配置的前缀，多个环境可共用一个实例
func (c *Client) CollectionName(name string) string {
	if c.config.CollectionPrefix == "" {
		return name
	}
	return c.config.CollectionPrefix + "_" + name
}

// HealthCheck 一次元数据往返即可确认连接可用
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.HealthCheck")
	defer span.End()

	if _, err := c.milvus.HasCollection(ctx, c.CollectionName(CollectionDocumentChunks)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("milvus health check: %w", err)
	}
	return nil
}

func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	ctx, span := tracer.Start(ctx, "milvus.HasCollection",
		trace.WithAttributes(attribute.String("collection", name)))
	defer span.End()
	return c.milvus.HasCollection(ctx, c.CollectionName(name))
}

// LoadCollection 阻塞到加载完成，首次检索前由 EnsureCollection 调用
func (c *Client) LoadCollection(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "milvus.LoadCollection",
		trace.WithAttributes(attribute.String("collection", name)))
	defer span.End()
	return c.milvus.LoadCollection(ctx, c.CollectionName(name), false)
}
