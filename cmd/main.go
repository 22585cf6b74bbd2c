package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/spf13/pflag"

	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"hr-agent-go/internal/agent"
	"hr-agent-go/internal/api/handler"
	"hr-agent-go/internal/api/router"
	"hr-agent-go/internal/config"
	appCoreLogger "hr-agent-go/internal/logger"
	"hr-agent-go/internal/parser"
	"hr-agent-go/internal/processor"
	"hr-agent-go/internal/storage"
	"hr-agent-go/internal/tracing"
)

var serviceName = "hr-agent-go" //nolint:gochecknoglobals

func main() {
	initLogger()

	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 链路追踪
	if cfg.Tracing.Enabled {
		name := cfg.Tracing.ServiceName
		if name == "" {
			name = serviceName
		}
		shutdown, err := tracing.InitProvider(ctx, name, cfg.Tracing.OTLPEndpoint, cfg.Tracing.SampleRatio)
		if err != nil {
			glog.Fatalf("初始化链路追踪失败: %v", err)
		}
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			if err := shutdown(shutdownCtx); err != nil {
				glog.Warnf("关闭链路追踪失败: %v", err)
			}
		}()
		glog.Info("链路追踪初始化成功")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	converter, err := parser.NewDocumentConverter(ctx)
	if err != nil {
		glog.Fatalf("初始化文档转换器失败: %v", err)
	}
	glog.Info("文档转换器初始化成功")

	// 抽取模型: 严格的重试与限流策略在客户端内收敛
	extractModel, err := agent.NewDeepSeekChatModel(
		cfg.DeepSeek.APIKey,
		cfg.GetModelForTask("resume_extract"),
		cfg.DeepSeek.BaseURL,
		agent.WithTemperature(cfg.Extractor.Temperature),
		agent.WithMaxTokens(cfg.Extractor.MaxTokens),
		agent.WithQPMLimit(cfg.Extractor.QPM),
		agent.WithRetryPolicy(cfg.Extractor.MaxAttempts, cfg.Extractor.RetryMinSeconds, cfg.Extractor.RetryMaxSeconds),
	)
	if err != nil {
		glog.Fatalf("初始化抽取模型失败: %v", err)
	}

	intentModel, err := agent.NewDeepSeekChatModel(
		cfg.DeepSeek.APIKey,
		cfg.GetModelForTask("chat_intent"),
		cfg.DeepSeek.BaseURL,
		agent.WithTemperature(cfg.Intent.Temperature),
		agent.WithMaxTokens(cfg.Intent.MaxTokens),
		agent.WithQPMLimit(cfg.Intent.QPM),
		agent.WithRetryPolicy(cfg.Intent.MaxAttempts, cfg.Intent.RetryMinSeconds, cfg.Intent.RetryMaxSeconds),
	)
	if err != nil {
		glog.Fatalf("初始化意图模型失败: %v", err)
	}
	glog.Info("DeepSeek聊天模型初始化成功")

	extractor := parser.NewLLMProfileExtractor(extractModel,
		parser.WithExtractTimeout(config.GetDuration(cfg.Extractor.ExtractTimeout, 120*time.Second)))
	intentParser := parser.NewLLMIntentParser(intentModel,
		parser.WithIntentTimeout(config.GetDuration(cfg.Intent.QueryTimeout, 30*time.Second)))

	// 上传流水线
	uploadComponents := processor.Components{
		Converter: converter,
		Extractor: extractor,
		Indexer:   storageManager.Elasticsearch,
	}
	if storageManager.Redis != nil {
		uploadComponents.Deduper = storageManager.Redis
	}
	if storageManager.MinIO != nil {
		uploadComponents.Archiver = storageManager.MinIO
	}
	if storageManager.MySQL != nil {
		uploadComponents.Recorder = storageManager.MySQL
	}

	uploadProcessor, err := processor.NewResumeUploadProcessor(uploadComponents,
		processor.WithMinContentChars(cfg.Upload.MinContentChars),
		processor.WithFileIDSuffixLen(cfg.Upload.FileIDSuffixLen),
	)
	if err != nil {
		glog.Fatalf("初始化上传流水线失败: %v", err)
	}
	glog.Info("上传流水线初始化成功")

	// 聊天查询编排器: 会话历史优先落Redis，无Redis时退化为进程内存
	var chatMemory agent.ChatMemory
	if storageManager.Redis != nil {
		chatMemory, err = agent.NewRedisChatMemory(storageManager.Redis.Client, "", storageManager.Redis.GetChatHistoryTTL())
		if err != nil {
			glog.Warnf("初始化Redis会话历史失败，退化为内存实现: %v", err)
			chatMemory = agent.NewInMemoryChatMemory()
		}
	} else {
		chatMemory = agent.NewInMemoryChatMemory()
	}

	orchestratorOpts := []processor.OrchestratorOption{
		processor.WithChatMemory(chatMemory),
		processor.WithDefaultPageSize(cfg.Intent.DefaultPageSize),
	}
	if storageManager.MySQL != nil {
		orchestratorOpts = append(orchestratorOpts, processor.WithQueryRecorder(storageManager.MySQL))
	}
	orchestrator, err := processor.NewSearchOrchestrator(intentParser, storageManager.Elasticsearch, orchestratorOpts...)
	if err != nil {
		glog.Fatalf("初始化查询编排器失败: %v", err)
	}
	glog.Info("查询编排器初始化成功")

	resumeHandler := handler.NewResumeHandler(cfg, uploadProcessor)
	chatHandler := handler.NewChatHandler(cfg, orchestrator)
	paginatedHandler := handler.NewResumePaginatedHandler(cfg, orchestrator)

	// 详情与删除接口需要上传记录存储
	var adminHandler *handler.ResumeAdminHandler
	if storageManager.MySQL != nil {
		adminOpts := []processor.AdminOption{}
		if storageManager.MinIO != nil {
			adminOpts = append(adminOpts, processor.WithArchiveReader(storageManager.MinIO))
		}
		admin, err := processor.NewResumeAdmin(storageManager.MySQL, storageManager.Elasticsearch, adminOpts...)
		if err != nil {
			glog.Fatalf("初始化简历详情编排器失败: %v", err)
		}
		adminHandler = handler.NewResumeAdminHandler(admin)
	}

	serverOpts := []hertzconfig.Option{
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	}
	var hertzTracingCfg *hertztracing.Config
	if cfg.Tracing.Enabled {
		tracerOpt, tracerCfg := hertztracing.NewServerTracer()
		hertzTracingCfg = tracerCfg
		serverOpts = append(serverOpts, tracerOpt)
	}

	h := server.New(serverOpts...)
	if hertzTracingCfg != nil {
		h.Use(hertztracing.ServerMiddleware(hertzTracingCfg))
	}

	router.RegisterRoutes(h, resumeHandler, chatHandler, paginatedHandler, adminHandler)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)

	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

func initLogger() {
	logFilePath := "logs/app.log"
	if err := os.MkdirAll("logs", 0755); err != nil {
		log.Fatalf("无法创建日志目录: %v", err)
	}
	fileWriter, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatalf("无法打开日志文件 %s: %v", logFilePath, err)
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}

	multiWriter := zerolog.MultiLevelWriter(consoleWriter, fileWriter)

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	zerolog.TimeFieldFormat = "15:04:05"

	logger := zerolog.New(multiWriter).With().Timestamp().Caller().Logger()

	appCoreLogger.Logger = logger
	zlog.Logger = logger

	// 同一个zerolog实例同时服务应用日志和Hertz框架日志
	glog.SetLogger(hertzadapter.From(appCoreLogger.Logger))
	glog.SetLevel(glog.LevelInfo)
}
