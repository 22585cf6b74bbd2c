package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"hr-agent-go/internal/config"
	"hr-agent-go/internal/constants"
)

// ErrNotFound 键不存在时返回，封装底层的redis.Nil
var ErrNotFound = redis.Nil

// Redis 封装Redis客户端，承担文件去重和会话相关的缓存操作
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建Redis客户端连接
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis配置不能为空")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis地址不能为空")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		// 重试设置
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		// 连接生命周期
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("为Redis注册OpenTelemetry钩子失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("连接Redis %s 失败: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查Redis连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.Ping(ctx).Err()
}

// GetMD5ExpireDuration 返回配置的MD5记录过期时间
func (r *Redis) GetMD5ExpireDuration() time.Duration {
	days := r.config.MD5RecordExpireDays
	if days <= 0 {
		days = 365 // 默认1年
	}
	return time.Duration(days) * 24 * time.Hour
}

// GetChatHistoryTTL 返回配置的聊天会话历史过期时间
func (r *Redis) GetChatHistoryTTL() time.Duration {
	minutes := r.config.ChatHistoryExpireMinutes
	if minutes <= 0 {
		return constants.ChatHistoryTTL
	}
	return time.Duration(minutes) * time.Minute
}

// AddRawFileMD5 添加原始文件MD5到去重集合并设置过期时间
func (r *Redis) AddRawFileMD5(ctx context.Context, md5Hex string) error {
	return r.addMD5WithExpiration(ctx, constants.KeyFileMD5Set, md5Hex)
}

// AddParsedTextMD5 添加解析后的文本MD5到去重集合并设置过期时间
func (r *Redis) AddParsedTextMD5(ctx context.Context, md5Hex string) error {
	return r.addMD5WithExpiration(ctx, constants.KeyTextMD5Set, md5Hex)
}

// addMD5WithExpiration 添加MD5到指定集合并设置过期时间
func (r *Redis) addMD5WithExpiration(ctx context.Context, setKey, md5Hex string) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	pipe := r.Client.Pipeline()
	pipe.SAdd(ctx, setKey, md5Hex)
	// ExpireNX: 仅在集合尚无过期时间时设置
	pipe.ExpireNX(ctx, setKey, r.GetMD5ExpireDuration())
	_, err := pipe.Exec(ctx)
	return err
}

// CheckRawFileMD5Exists 检查原始文件MD5是否存在于去重集合中
func (r *Redis) CheckRawFileMD5Exists(ctx context.Context, md5Hex string) (bool, error) {
	return r.checkMD5Exists(ctx, constants.KeyFileMD5Set, md5Hex)
}

// CheckParsedTextMD5Exists 检查解析后的文本MD5是否存在于去重集合中
func (r *Redis) CheckParsedTextMD5Exists(ctx context.Context, md5Hex string) (bool, error) {
	return r.checkMD5Exists(ctx, constants.KeyTextMD5Set, md5Hex)
}

func (r *Redis) checkMD5Exists(ctx context.Context, setKey, md5Hex string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.SIsMember(ctx, setKey, md5Hex).Result()
}

// MapMD5ToFileID 记录MD5到已入库文件标识的映射，供重复上传时回显
func (r *Redis) MapMD5ToFileID(ctx context.Context, md5Hex, fileID string) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	key := fmt.Sprintf(constants.KeyFileMD5ToFileID, md5Hex)
	return r.Client.Set(ctx, key, fileID, r.GetMD5ExpireDuration()).Err()
}

// GetFileIDByMD5 查询MD5对应的已入库文件标识，不存在时返回ErrNotFound
func (r *Redis) GetFileIDByMD5(ctx context.Context, md5Hex string) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis客户端未初始化")
	}
	key := fmt.Sprintf(constants.KeyFileMD5ToFileID, md5Hex)
	return r.Client.Get(ctx, key).Result()
}
