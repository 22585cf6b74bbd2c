package storage

import (
	"context"
	"fmt"
	"strings"

	"hr-agent-go/internal/config"
	appLogger "hr-agent-go/internal/logger"
)

// Storage 存储管理器，聚合所有存储相关依赖
type Storage struct {
	// 简历文档检索存储
	Elasticsearch *Elasticsearch

	// 对象存储
	MinIO *MinIO

	// 关系型数据库
	MySQL *MySQL

	// 键值存储
	Redis *Redis
}

// NewStorage 创建存储管理器
// Elasticsearch是检索主路径，初始化失败时直接返回错误；
// 其余组件按配置初始化，单个失败只降级不致命
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	storage := &Storage{}
	var err error
	var initErrors []string

	// 初始化Elasticsearch
	storage.Elasticsearch, err = NewElasticsearch(&cfg.Elasticsearch)
	if err != nil {
		return nil, fmt.Errorf("初始化Elasticsearch失败: %w", err)
	}
	appLogger.Info().Str("endpoint", cfg.Elasticsearch.Endpoint).Msg("Elasticsearch客户端初始化成功")

	// 初始化MinIO（如果配置了）
	if cfg.MinIO.Endpoint != "" {
		storage.MinIO, err = NewMinIO(&cfg.MinIO)
		if err != nil {
			appLogger.Warn().Err(err).Msg("初始化MinIO失败")
			initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
		}
	}

	// 初始化MySQL（如果配置了）
	if cfg.MySQL.Host != "" {
		storage.MySQL, err = NewMySQL(&cfg.MySQL)
		if err != nil {
			appLogger.Warn().Err(err).Msg("初始化MySQL失败")
			initErrors = append(initErrors, fmt.Sprintf("MySQL: %v", err))
		}
	}

	// 初始化Redis（如果配置了）
	if cfg.Redis.Address != "" {
		storage.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			appLogger.Warn().Err(err).Msg("初始化Redis失败")
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	}

	if len(initErrors) > 0 {
		appLogger.Warn().Str("components", strings.Join(initErrors, "; ")).Msg("部分存储组件初始化失败")
	}

	return storage, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			appLogger.Error().Err(err).Msg("关闭MySQL连接失败")
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			appLogger.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
	// Elasticsearch与MinIO为HTTP客户端，无需显式关闭
}
