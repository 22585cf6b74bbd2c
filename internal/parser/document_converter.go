package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnknownExtension 文件扩展名不在支持范围内
var ErrUnknownExtension = errors.New("未知的文件扩展名")

// TextExtractor 单一格式的文本提取器
type TextExtractor interface {
	ExtractTextFromBytes(ctx context.Context, data []byte, uri string) (string, map[string]interface{}, error)
}

// DocumentConverter 按文件扩展名分发到具体的文本提取器
type DocumentConverter struct {
	extractors map[string]TextExtractor
}

// NewDocumentConverter 创建默认的文档转换器，注册PDF和DOCX提取器
func NewDocumentConverter(ctx context.Context) (*DocumentConverter, error) {
	pdfExtractor, err := NewEinoPDFTextExtractor(ctx)
	if err != nil {
		return nil, fmt.Errorf("初始化PDF提取器失败: %w", err)
	}

	docxExtractor := NewDocxTextExtractor()

	return &DocumentConverter{
		extractors: map[string]TextExtractor{
			".pdf":  pdfExtractor,
			".docx": docxExtractor,
			".doc":  docxExtractor,
		},
	}, nil
}

// Register 覆盖或新增某个扩展名的提取器
func (c *DocumentConverter) Register(ext string, extractor TextExtractor) {
	if c.extractors == nil {
		c.extractors = make(map[string]TextExtractor)
	}
	c.extractors[strings.ToLower(ext)] = extractor
}

// Supports 是否支持该文件名的格式
func (c *DocumentConverter) Supports(fileName string) bool {
	_, ok := c.extractors[strings.ToLower(filepath.Ext(fileName))]
	return ok
}

// Convert 将原始文件内容转换为纯文本
// 空文本不视为错误，内容长度门限由调用方把关
func (c *DocumentConverter) Convert(ctx context.Context, data []byte, fileName string) (string, map[string]interface{}, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	extractor, ok := c.extractors[ext]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownExtension, ext)
	}
	return extractor.ExtractTextFromBytes(ctx, data, fileName)
}
