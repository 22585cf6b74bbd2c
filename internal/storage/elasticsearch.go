package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"hr-agent-go/internal/config"
	"hr-agent-go/internal/constants"
	"hr-agent-go/internal/tracing"
	"hr-agent-go/internal/types"
)

// 定义Elasticsearch的专用tracer
var esTracer = otel.Tracer("hr-agent-go/storage/elasticsearch")

// ErrESUnavailable 检索存储不可达或请求失败
var ErrESUnavailable = errors.New("elasticsearch服务不可用")

// DocumentStore 简历文档检索存储接口
type DocumentStore interface {
	// IndexResume 写入(或覆盖)一份简历文档，以FileID为文档ID
	IndexResume(ctx context.Context, doc *types.ResumeDocument) error

	// SearchResumes 按结构化条件检索，from/size为窗口内偏移分页
	SearchResumes(ctx context.Context, criteria types.SearchCriteria, from, size int) ([]types.ResumeDocument, []float64, int, error)

	// ListAll 列出全部简历，按上传时间倒序
	ListAll(ctx context.Context, from, size int) ([]types.ResumeDocument, int, error)

	// DeleteResume 按文档ID删除
	DeleteResume(ctx context.Context, fileID string) error
}

// 确保Elasticsearch实现了DocumentStore接口
var _ DocumentStore = (*Elasticsearch)(nil)

// Elasticsearch 基于HTTP API的简历文档存储
type Elasticsearch struct {
	endpoint        string
	index           string
	username        string
	password        string
	maxResultWindow int
	httpClient      *http.Client
}

// ESOption 定义Elasticsearch构造函数选项
type ESOption func(*Elasticsearch)

// WithESHttpTimeout 设置HTTP客户端超时
func WithESHttpTimeout(timeout time.Duration) ESOption {
	return func(e *Elasticsearch) {
		e.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithESBasicAuth 设置基本认证
func WithESBasicAuth(username, password string) ESOption {
	return func(e *Elasticsearch) {
		e.username = username
		e.password = password
	}
}

// WithMaxResultWindow 设置列表/检索的最大结果窗口
func WithMaxResultWindow(n int) ESOption {
	return func(e *Elasticsearch) {
		if n > 0 {
			e.maxResultWindow = n
		}
	}
}

// NewElasticsearch 创建Elasticsearch客户端并确保索引存在
func NewElasticsearch(cfg *config.ElasticsearchConfig, opts ...ESOption) (*Elasticsearch, error) {
	if cfg == nil {
		return nil, fmt.Errorf("elasticsearch配置不能为空")
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = "http://localhost:9200" // 默认端点
	}

	index := cfg.Index
	if index == "" {
		index = "resumes" // 默认索引名
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	e := &Elasticsearch{
		endpoint:        endpoint,
		index:           index,
		username:        cfg.Username,
		password:        cfg.Password,
		maxResultWindow: cfg.MaxResultWindow,
		httpClient:      &http.Client{Timeout: timeout},
	}
	if e.maxResultWindow <= 0 {
		e.maxResultWindow = 500
	}

	// 应用选项
	for _, opt := range opts {
		opt(e)
	}

	// 确保索引存在
	if err := e.ensureIndexExists(context.Background()); err != nil {
		return nil, fmt.Errorf("确保索引 '%s' 存在失败: %w", index, err)
	}

	return e, nil
}

// ensureIndexExists 确保简历索引存在，不存在则按映射创建
func (e *Elasticsearch) ensureIndexExists(ctx context.Context) error {
	ctx, span := esTracer.Start(ctx, "Elasticsearch.EnsureIndexExists",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", e.endpoint),
		attribute.String("db.system", "elasticsearch"),
		attribute.String("db.operation", "check_index"),
		attribute.String("db.index", e.index),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, e.endpoint+"/"+e.index, nil)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeSearch)
		return fmt.Errorf("创建检查索引请求失败: %w", err)
	}
	e.setAuth(req)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := e.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeSearch)
		return fmt.Errorf("%w: %v", ErrESUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		span.SetStatus(codes.Ok, "")
		return nil
	case http.StatusNotFound:
		span.AddEvent("index_not_found", trace.WithAttributes(
			attribute.String("action", "create_index"),
		))
		return e.createIndex(ctx)
	default:
		err := fmt.Errorf("检查索引失败，状态码: %d", resp.StatusCode)
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		return err
	}
}

// createIndex 创建简历索引及字段映射
func (e *Elasticsearch) createIndex(ctx context.Context) error {
	ctx, span := esTracer.Start(ctx, "Elasticsearch.CreateIndex",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "elasticsearch"),
		attribute.String("db.operation", "create_index"),
		attribute.String("db.index", e.index),
	)

	mapping := map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
			"max_result_window":  e.maxResultWindow,
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"file_id":        map[string]interface{}{"type": "keyword"},
				"file_name":      map[string]interface{}{"type": "keyword"},
				"candidate_name": map[string]interface{}{"type": "text"},
				"position":       map[string]interface{}{"type": "text"},
				"raw_text":       map[string]interface{}{"type": "text"},
				"gender":         map[string]interface{}{"type": "keyword"},
				"numeric_score":  map[string]interface{}{"type": "integer"},
				"uploaded_at":    map[string]interface{}{"type": "date", "format": "epoch_second"},
				"profile": map[string]interface{}{
					"properties": map[string]interface{}{
						"name":            map[string]interface{}{"type": "text"},
						"phone":           map[string]interface{}{"type": "keyword"},
						"email":           map[string]interface{}{"type": "keyword"},
						"education":       map[string]interface{}{"type": "text"},
						"work_experience": map[string]interface{}{"type": "text"},
						"skills":          map[string]interface{}{"type": "text"},
						"score":           map[string]interface{}{"type": "keyword"},
						"other":           map[string]interface{}{"type": "object", "enabled": true},
					},
				},
			},
		},
	}

	var result map[string]interface{}
	if err := e.doRequest(ctx, http.MethodPut, "/"+e.index, mapping, &result); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeSearch)
		return fmt.Errorf("创建索引失败: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// IndexResume 写入简历文档，同一FileID重复写入等价于覆盖更新
func (e *Elasticsearch) IndexResume(ctx context.Context, doc *types.ResumeDocument) error {
	ctx, span := esTracer.Start(ctx, "Elasticsearch.IndexResume",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if doc == nil || doc.FileID == "" {
		err := fmt.Errorf("简历文档或FileID不能为空")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return err
	}

	span.SetAttributes(
		attribute.String("db.system", "elasticsearch"),
		attribute.String("db.operation", "index"),
		attribute.String("db.index", e.index),
		attribute.String("resume.file_id", doc.FileID),
		attribute.String("resume.candidate", tracing.MaskPII(doc.CandidateName)),
	)

	path := fmt.Sprintf("/%s/_doc/%s?refresh=true", e.index, doc.FileID)
	var result map[string]interface{}
	if err := e.doRequest(ctx, http.MethodPut, path, doc, &result); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeSearch)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// esSearchResponse Elasticsearch检索响应的必要部分
type esSearchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string               `json:"_id"`
			Score  *float64             `json:"_score"`
			Source types.ResumeDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchResumes 按结构化条件检索
// 返回: 命中文档、对应相关度分数、总命中数、错误
func (e *Elasticsearch) SearchResumes(ctx context.Context, criteria types.SearchCriteria, from, size int) ([]types.ResumeDocument, []float64, int, error) {
	ctx, span := esTracer.Start(ctx, "Elasticsearch.SearchResumes",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	query := BuildResumeQuery(criteria)
	queryJSON, _ := json.Marshal(query)

	span.SetAttributes(
		attribute.String("db.system", "elasticsearch"),
		attribute.String("db.operation", "search"),
		attribute.String("db.index", e.index),
		attribute.String("db.statement", tracing.SafeQueryBody(string(queryJSON))),
		attribute.Int("search.from", from),
		attribute.Int("search.size", size),
	)

	from, size = e.clampWindow(from, size)

	body := map[string]interface{}{
		"query": query,
		"from":  from,
		"size":  size,
	}

	var resp esSearchResponse
	if err := e.doRequest(ctx, http.MethodPost, "/"+e.index+"/_search", body, &resp); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeSearch)
		return nil, nil, 0, err
	}

	docs := make([]types.ResumeDocument, 0, len(resp.Hits.Hits))
	scores := make([]float64, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		doc := hit.Source
		if doc.FileID == "" {
			doc.FileID = hit.ID
		}
		docs = append(docs, doc)
		if hit.Score != nil {
			scores = append(scores, *hit.Score)
		} else {
			scores = append(scores, 0)
		}
	}

	span.SetAttributes(attribute.Int("search.total_hits", resp.Hits.Total.Value))
	span.SetStatus(codes.Ok, "")
	return docs, scores, resp.Hits.Total.Value, nil
}

// ListAll 列出全部简历，按上传时间倒序
func (e *Elasticsearch) ListAll(ctx context.Context, from, size int) ([]types.ResumeDocument, int, error) {
	ctx, span := esTracer.Start(ctx, "Elasticsearch.ListAll",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "elasticsearch"),
		attribute.String("db.operation", "search"),
		attribute.String("db.index", e.index),
		attribute.Int("search.from", from),
		attribute.Int("search.size", size),
	)

	from, size = e.clampWindow(from, size)

	body := map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"sort": []map[string]interface{}{
			{"uploaded_at": map[string]interface{}{"order": "desc"}},
		},
		"from": from,
		"size": size,
	}

	var resp esSearchResponse
	if err := e.doRequest(ctx, http.MethodPost, "/"+e.index+"/_search", body, &resp); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeSearch)
		return nil, 0, err
	}

	docs := make([]types.ResumeDocument, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		doc := hit.Source
		if doc.FileID == "" {
			doc.FileID = hit.ID
		}
		docs = append(docs, doc)
	}

	span.SetStatus(codes.Ok, "")
	return docs, resp.Hits.Total.Value, nil
}

// DeleteResume 按文档ID删除简历
func (e *Elasticsearch) DeleteResume(ctx context.Context, fileID string) error {
	ctx, span := esTracer.Start(ctx, "Elasticsearch.DeleteResume",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "elasticsearch"),
		attribute.String("db.operation", "delete"),
		attribute.String("db.index", e.index),
		attribute.String("resume.file_id", fileID),
	)

	path := fmt.Sprintf("/%s/_doc/%s?refresh=true", e.index, fileID)
	var result map[string]interface{}
	if err := e.doRequest(ctx, http.MethodDelete, path, nil, &result); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeSearch)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// BuildResumeQuery 将结构化筛选条件转换为bool查询
// 没有任何条件时退化为match_all
func BuildResumeQuery(criteria types.SearchCriteria) map[string]interface{} {
	if criteria.IsEmpty() {
		return map[string]interface{}{"match_all": map[string]interface{}{}}
	}

	must := make([]map[string]interface{}, 0, 4)
	filter := make([]map[string]interface{}, 0, 2)

	if criteria.Name != "" {
		must = append(must, multiMatch(criteria.Name, "candidate_name", "profile.name"))
	}
	if criteria.Email != "" {
		must = append(must, multiMatch(criteria.Email, "profile.email"))
	}
	if criteria.Phone != "" {
		must = append(must, multiMatch(criteria.Phone, "profile.phone"))
	}
	if criteria.Gender != "" {
		must = append(must, multiMatch(criteria.Gender, "gender", "raw_text"))
	}
	if criteria.Education != "" {
		must = append(must, multiMatch(criteria.Education, "profile.education", "raw_text"))
	}
	if criteria.Experience != "" {
		must = append(must, multiMatch(criteria.Experience, "profile.work_experience", "raw_text"))
	}
	if criteria.Position != "" {
		must = append(must, multiMatch(criteria.Position, "position", "raw_text"))
	}
	if criteria.Other != "" {
		must = append(must, multiMatch(criteria.Other, "raw_text"))
	}

	// 列表条件是或语义: 命中任意一项即可，整组作为一个must子句
	if group := anyOfGroup(criteria.Skills, "profile.skills", "raw_text"); group != nil {
		must = append(must, group)
	}
	if group := anyOfGroup(criteria.Projects, "profile.projects.name", "profile.projects.description", "raw_text"); group != nil {
		must = append(must, group)
	}
	if group := anyOfGroup(criteria.Keywords, "raw_text"); group != nil {
		must = append(must, group)
	}

	// 评分区间等于[0,100]时不构成约束
	if criteria.HasScoreRange() {
		lo, hi := criteria.ScoreRange[0], criteria.ScoreRange[1]
		if lo < constants.ScoreRangeMin {
			lo = constants.ScoreRangeMin
		}
		if hi > constants.ScoreRangeMax {
			hi = constants.ScoreRangeMax
		}
		filter = append(filter, map[string]interface{}{
			"range": map[string]interface{}{
				"numeric_score": map[string]interface{}{"gte": lo, "lte": hi},
			},
		})
	}

	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}

	return map[string]interface{}{"bool": boolQuery}
}

func multiMatch(query string, fields ...string) map[string]interface{} {
	return map[string]interface{}{
		"multi_match": map[string]interface{}{
			"query":  query,
			"fields": fields,
		},
	}
}

// anyOfGroup 将列表条件转换为should组: 至少命中其中一项
// 空列表返回nil，不构成约束
func anyOfGroup(items []string, fields ...string) map[string]interface{} {
	should := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		should = append(should, multiMatch(item, fields...))
	}
	if len(should) == 0 {
		return nil
	}
	return map[string]interface{}{
		"bool": map[string]interface{}{
			"should":               should,
			"minimum_should_match": 1,
		},
	}
}

// clampWindow 将偏移分页约束在索引的最大结果窗口内
func (e *Elasticsearch) clampWindow(from, size int) (int, int) {
	if from < 0 {
		from = 0
	}
	if size <= 0 {
		size = 10
	}
	if from >= e.maxResultWindow {
		from = e.maxResultWindow
		return from, 0
	}
	if from+size > e.maxResultWindow {
		size = e.maxResultWindow - from
	}
	return from, size
}

// doRequest 统一的HTTP请求辅助方法: 序列化请求体、注入追踪上下文、检查状态码、反序列化响应
func (e *Elasticsearch) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求体失败: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.endpoint+path, reqBody)
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	e.setAuth(req)

	// 注入OpenTelemetry追踪上下文到HTTP请求
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrESUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应体失败: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: 状态码 %d, 响应: %s", ErrESUnavailable, resp.StatusCode, tracing.SafeQueryBody(string(respBody)))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("elasticsearch请求失败，状态码: %d, 响应: %s", resp.StatusCode, tracing.SafeQueryBody(string(respBody)))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("解析响应失败: %w", err)
		}
	}
	return nil
}

func (e *Elasticsearch) setAuth(req *http.Request) {
	if e.username != "" {
		req.SetBasicAuth(e.username, e.password)
	}
}
