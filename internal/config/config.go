package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RedisConfig holds configuration for Redis
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// 连接池设置
	PoolSize     int `yaml:"pool_size"`      // 连接池大小
	MinIdleConns int `yaml:"min_idle_conns"` // 最小空闲连接数
	// 超时设置
	DialTimeoutSeconds  int `yaml:"dial_timeout_seconds"`  // 连接超时(秒)
	ReadTimeoutSeconds  int `yaml:"read_timeout_seconds"`  // 读取超时(秒)
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds"` // 写入超时(秒)
	// 重试设置
	MaxRetries        int `yaml:"max_retries"`          // 最大重试次数
	MinRetryBackoffMS int `yaml:"min_retry_backoff_ms"` // 最小重试间隔(毫秒)
	MaxRetryBackoffMS int `yaml:"max_retry_backoff_ms"` // 最大重试间隔(毫秒)
	// 连接生命周期
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`  // 连接最大生命周期(分钟)
	ConnMaxIdleTimeMinutes int `yaml:"conn_max_idle_time_minutes"` // 空闲连接最大生命周期(分钟)
	// MD5记录过期时间(天)
	MD5RecordExpireDays int `yaml:"md5_record_expire_days"`
	// 聊天会话历史过期时间(分钟)
	ChatHistoryExpireMinutes int `yaml:"chat_history_expire_minutes"`
}

// Config 应用程序配置
type Config struct {
	// DeepSeek 大模型服务配置（OpenAI兼容接口）
	DeepSeek struct {
		APIKey     string            `yaml:"api_key"`
		BaseURL    string            `yaml:"base_url"` // 例如 https://api.deepseek.com/v1
		Model      string            `yaml:"model"`
		TaskModels map[string]string `yaml:"task_models"` // 任务专用模型
	} `yaml:"deepseek"`

	// Elasticsearch 文档检索配置
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`

	// MinIO配置
	MinIO MinIOConfig `yaml:"minio"`

	// MySQL配置
	MySQL MySQLConfig `yaml:"mysql"`

	// Redis配置
	Redis RedisConfig `yaml:"redis"`

	// 服务器配置
	Server ServerConfig `yaml:"server"`

	// 上传与文本转换配置
	Upload UploadConfig `yaml:"upload"`

	// 简历结构化抽取配置
	Extractor ExtractorConfig `yaml:"extractor"`

	// 聊天意图识别配置
	Intent IntentConfig `yaml:"intent"`

	// 日志配置
	Logger LoggerConfig `yaml:"logger"`

	// 链路追踪配置
	Tracing TracingConfig `yaml:"tracing"`

	// 模型QPM限制配置
	ModelQPMLimits map[string]int `yaml:"model_qpm_limits"`
}

// ElasticsearchConfig Elasticsearch配置结构
type ElasticsearchConfig struct {
	Endpoint        string `yaml:"endpoint"`          // 例如 http://localhost:9200
	Index           string `yaml:"index"`             // 简历索引名
	Username        string `yaml:"username"`          // 可选的基本认证用户名
	Password        string `yaml:"password"`          // 可选的基本认证密码
	TimeoutSeconds  int    `yaml:"timeout_seconds"`   // HTTP超时(秒)
	MaxResultWindow int    `yaml:"max_result_window"` // 列表查询的最大窗口
}

// MinIOConfig MinIO配置结构
type MinIOConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UseSSL          bool   `yaml:"useSSL"`
	Location        string `yaml:"location"` // 可选，存储桶区域
	// 对象存储桶名称
	OriginalsBucket  string `yaml:"originalsBucket"`  // 原始简历存储桶
	ParsedTextBucket string `yaml:"parsedTextBucket"` // 解析文本存储桶
	// 对象生命周期管理
	OriginalFileExpireDays int `yaml:"original_file_expire_days"` // 原始文件过期天数
	ParsedTextExpireDays   int `yaml:"parsed_text_expire_days"`   // 解析文本过期天数
}

// MySQLConfig MySQL配置结构
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	// 连接池设置
	MaxIdleConns int `yaml:"max_idle_conns"` // 最大空闲连接数
	MaxOpenConns int `yaml:"max_open_conns"` // 最大打开连接数
	// 连接生命周期
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
	ConnMaxIdleTimeMinutes int `yaml:"conn_max_idle_time_minutes"`
	// 超时设置
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds   int `yaml:"write_timeout_seconds"`
	// 日志设置
	LogLevel int `yaml:"log_level"` // 日志级别(1-4)
}

// ServerConfig 定义服务器配置
type ServerConfig struct {
	Address string `yaml:"address"` // 例如 ":8080" or "0.0.0.0:8080"
}

// UploadConfig 上传与文本转换配置
type UploadConfig struct {
	MinContentChars  int `yaml:"min_content_chars"`  // 转换文本的最小长度（字符数），低于该值视为无有效内容
	FileIDSuffixLen  int `yaml:"file_id_suffix_len"` // 文件标识随机后缀的字节数
	MaxFileSizeBytes int `yaml:"max_file_size_bytes"`
}

// ExtractorConfig 定义简历结构化抽取的配置
type ExtractorConfig struct {
	ModelName       string  `yaml:"modelName"`
	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"maxTokens"`
	ExtractTimeout  string  `yaml:"extractTimeout"` // 抽取超时，例如 "120s"
	QPM             int     `yaml:"qpm"`            // 每分钟请求数限制
	MaxAttempts     int     `yaml:"maxAttempts"`    // 调用LLM的最大尝试次数(含首次)
	RetryMinSeconds int     `yaml:"retryMinSeconds"`
	RetryMaxSeconds int     `yaml:"retryMaxSeconds"`
}

// IntentConfig 定义聊天意图识别的配置
type IntentConfig struct {
	ModelName       string  `yaml:"modelName"`
	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"maxTokens"`
	QueryTimeout    string  `yaml:"queryTimeout"` // 意图识别超时
	QPM             int     `yaml:"qpm"`
	MaxAttempts     int     `yaml:"maxAttempts"`
	RetryMinSeconds int     `yaml:"retryMinSeconds"`
	RetryMaxSeconds int     `yaml:"retryMaxSeconds"`
	DefaultPageSize int     `yaml:"defaultPageSize"` // 搜索结果默认每页条数
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level        string `yaml:"level"`         // debug, info, warn, error
	Format       string `yaml:"format"`        // json, pretty
	TimeFormat   string `yaml:"time_format"`   // 时间格式
	ReportCaller bool   `yaml:"report_caller"` // 是否报告调用位置
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"` // 例如 "localhost:4317"
	ServiceName  string  `yaml:"service_name"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

// LoadConfig 从文件加载配置
func LoadConfig(configPath string) (*Config, error) {
	// 如果未指定配置文件路径，则尝试在默认位置查找
	if configPath == "" {
		searchPaths := []string{
			"config.yaml",
			"./config.yaml",
			"../config.yaml",
			"../../config.yaml",
			filepath.Join(os.Getenv("HOME"), ".hr-agent", "config.yaml"),
		}

		// 获取当前可执行文件路径
		execPath, err := os.Executable()
		if err == nil {
			execDir := filepath.Dir(execPath)
			searchPaths = append(searchPaths, filepath.Join(execDir, "config.yaml"))
			searchPaths = append(searchPaths, filepath.Join(execDir, "..", "config.yaml"))
		}

		// 获取工作目录，检测测试环境并补充可能的项目根目录
		workDir, err := os.Getwd()
		if err == nil && isTestEnv(workDir) {
			projectRoots := []string{
				workDir,
				filepath.Join(workDir, ".."),
				filepath.Join(workDir, "..", ".."),
				filepath.Join(workDir, "..", "..", ".."),
			}
			for _, root := range projectRoots {
				searchPaths = append(searchPaths, filepath.Join(root, "config.yaml"))
			}
		}

		for _, path := range searchPaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}

		// 如果仍找不到配置文件，测试环境直接使用默认配置
		if configPath == "" {
			if argsLookLikeTest() {
				return createDefaultConfig(), nil
			}
			configPath = "config.yaml"
		}
	}

	// 检查文件是否存在
	if _, err := os.Stat(configPath); err != nil {
		if argsLookLikeTest() {
			return createDefaultConfig(), nil
		}
		return nil, fmt.Errorf("配置文件不存在: %s", configPath)
	}

	// 读取配置文件
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析配置文件
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 从环境变量覆盖配置（如果存在）
	if envKey := os.Getenv("DEEPSEEK_API_KEY"); envKey != "" {
		config.DeepSeek.APIKey = envKey
	}
	if envURL := os.Getenv("DEEPSEEK_BASE_URL"); envURL != "" {
		config.DeepSeek.BaseURL = envURL
	}
	if envModel := os.Getenv("DEEPSEEK_MODEL"); envModel != "" {
		config.DeepSeek.Model = envModel
	}
	if envES := os.Getenv("ELASTICSEARCH_ENDPOINT"); envES != "" {
		config.Elasticsearch.Endpoint = envES
	}

	applyDefaults(&config)

	return &config, nil
}

// applyDefaults 填充未配置项的默认值
func applyDefaults(config *Config) {
	if config.Server.Address == "" {
		config.Server.Address = ":8080"
	}
	if config.Elasticsearch.Index == "" {
		config.Elasticsearch.Index = "resumes"
	}
	if config.Elasticsearch.TimeoutSeconds <= 0 {
		config.Elasticsearch.TimeoutSeconds = 30
	}
	if config.Elasticsearch.MaxResultWindow <= 0 {
		config.Elasticsearch.MaxResultWindow = 500
	}
	if config.Upload.MinContentChars <= 0 {
		config.Upload.MinContentChars = 50
	}
	if config.Upload.FileIDSuffixLen <= 0 {
		config.Upload.FileIDSuffixLen = 6
	}
	if config.Extractor.MaxAttempts <= 0 {
		config.Extractor.MaxAttempts = 3
	}
	if config.Extractor.RetryMinSeconds <= 0 {
		config.Extractor.RetryMinSeconds = 4
	}
	if config.Extractor.RetryMaxSeconds <= 0 {
		config.Extractor.RetryMaxSeconds = 10
	}
	if config.Extractor.Temperature == 0 {
		config.Extractor.Temperature = 0.7
	}
	if config.Intent.MaxAttempts <= 0 {
		config.Intent.MaxAttempts = 3
	}
	if config.Intent.RetryMinSeconds <= 0 {
		config.Intent.RetryMinSeconds = 4
	}
	if config.Intent.RetryMaxSeconds <= 0 {
		config.Intent.RetryMaxSeconds = 10
	}
	if config.Intent.DefaultPageSize <= 0 {
		config.Intent.DefaultPageSize = 10
	}
}

// isTestEnv 粗略判断是否运行在测试环境
func isTestEnv(workDir string) bool {
	if strings.Contains(workDir, "tmp") && strings.Contains(workDir, "test") {
		return true
	}
	return argsLookLikeTest()
}

func argsLookLikeTest() bool {
	for _, arg := range os.Args {
		if strings.Contains(arg, "test") {
			return true
		}
	}
	return false
}

// 创建一个默认配置，用于测试环境
func createDefaultConfig() *Config {
	config := &Config{}

	config.DeepSeek.BaseURL = "https://api.deepseek.com/v1"
	config.DeepSeek.Model = "deepseek-chat"

	// Elasticsearch默认配置
	config.Elasticsearch.Endpoint = "http://localhost:9200"
	config.Elasticsearch.Index = "resumes"
	config.Elasticsearch.TimeoutSeconds = 30
	config.Elasticsearch.MaxResultWindow = 500

	// MinIO默认配置
	config.MinIO.Endpoint = "localhost:9000"
	config.MinIO.AccessKeyID = "minioadmin"
	config.MinIO.SecretAccessKey = "minioadmin123"
	config.MinIO.UseSSL = false
	config.MinIO.OriginalsBucket = "resume-originals"
	config.MinIO.ParsedTextBucket = "resume-parsed-text"
	config.MinIO.OriginalFileExpireDays = 1095
	config.MinIO.ParsedTextExpireDays = 1095

	// MySQL默认配置
	config.MySQL.Host = "localhost"
	config.MySQL.Port = 3306
	config.MySQL.Username = "root"
	config.MySQL.Password = "password"
	config.MySQL.Database = "hr_agent"
	config.MySQL.MaxIdleConns = 10
	config.MySQL.MaxOpenConns = 100
	config.MySQL.ConnMaxLifetimeMinutes = 60
	config.MySQL.ConnMaxIdleTimeMinutes = 30
	config.MySQL.ConnectTimeoutSeconds = 10
	config.MySQL.ReadTimeoutSeconds = 30
	config.MySQL.WriteTimeoutSeconds = 30
	config.MySQL.LogLevel = 4

	// Redis默认配置
	config.Redis.Address = "localhost:6379"
	config.Redis.Password = ""
	config.Redis.DB = 0
	config.Redis.PoolSize = 10
	config.Redis.MinIdleConns = 2
	config.Redis.DialTimeoutSeconds = 5
	config.Redis.ReadTimeoutSeconds = 3
	config.Redis.WriteTimeoutSeconds = 3
	config.Redis.MaxRetries = 3
	config.Redis.MinRetryBackoffMS = 8
	config.Redis.MaxRetryBackoffMS = 512
	config.Redis.ConnMaxLifetimeMinutes = 60
	config.Redis.ConnMaxIdleTimeMinutes = 30
	config.Redis.MD5RecordExpireDays = 365
	config.Redis.ChatHistoryExpireMinutes = 120

	// 上传默认配置
	config.Upload.MinContentChars = 50
	config.Upload.FileIDSuffixLen = 6
	config.Upload.MaxFileSizeBytes = 20 << 20

	// 抽取默认配置
	config.Extractor.Temperature = 0.7
	config.Extractor.MaxTokens = 4096
	config.Extractor.ExtractTimeout = "120s"
	config.Extractor.MaxAttempts = 3
	config.Extractor.RetryMinSeconds = 4
	config.Extractor.RetryMaxSeconds = 10

	// 意图识别默认配置
	config.Intent.Temperature = 0.7
	config.Intent.MaxTokens = 1024
	config.Intent.QueryTimeout = "30s"
	config.Intent.MaxAttempts = 3
	config.Intent.RetryMinSeconds = 4
	config.Intent.RetryMaxSeconds = 10
	config.Intent.DefaultPageSize = 10

	// 获取环境变量
	if envKey := os.Getenv("DEEPSEEK_API_KEY"); envKey != "" {
		config.DeepSeek.APIKey = envKey
	} else {
		config.DeepSeek.APIKey = "test_api_key"
	}

	// 日志默认配置
	config.Logger.Level = "info"
	config.Logger.Format = "pretty" // 开发环境默认使用美化输出
	config.Logger.TimeFormat = "2006-01-02 15:04:05"
	config.Logger.ReportCaller = true

	// 追踪默认配置
	config.Tracing.Enabled = false
	config.Tracing.OTLPEndpoint = "localhost:4317"
	config.Tracing.ServiceName = "hr-agent"
	config.Tracing.SampleRatio = 1.0

	// 默认的模型QPM限制
	config.ModelQPMLimits = map[string]int{
		"deepseek-chat":     600,
		"deepseek-reasoner": 120,
	}

	return config
}

// CreateSampleConfig 创建一个示例配置文件
func CreateSampleConfig(filePath string) error {
	// 检查文件是否已存在
	if _, err := os.Stat(filePath); err == nil {
		return fmt.Errorf("文件 '%s' 已存在，不会覆盖", filePath)
	}

	config := createDefaultConfig()

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	err = os.WriteFile(filePath, data, 0644)
	if err != nil {
		return fmt.Errorf("写入示例配置文件 '%s' 失败: %w", filePath, err)
	}

	fmt.Printf("示例配置文件已创建: %s\n", filePath)
	return nil
}

// GetModelForTask 根据任务名称获取合适的模型
// 如果任务专用模型存在则返回专用模型，否则返回默认模型
func (c *Config) GetModelForTask(taskName string) string {
	if c.DeepSeek.TaskModels != nil {
		if model, ok := c.DeepSeek.TaskModels[taskName]; ok && model != "" {
			return model
		}
	}
	return c.DeepSeek.Model
}

// GetDuration utility to parse duration strings from config
func GetDuration(durationStr string, defaultDuration time.Duration) time.Duration {
	if durationStr == "" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return defaultDuration
	}
	return d
}
