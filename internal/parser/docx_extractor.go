package parser

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog"

	appLogger "hr-agent-go/internal/logger"
)

// DocxTextExtractor 从DOCX文件中提取纯文本
// 逐段落提取文字并用换行符拼接
type DocxTextExtractor struct {
	logger zerolog.Logger
}

// NewDocxTextExtractor 创建DOCX文本提取器
func NewDocxTextExtractor() *DocxTextExtractor {
	return &DocxTextExtractor{
		logger: appLogger.Logger.With().Str("component", "docx_extractor").Logger(),
	}
}

// ExtractTextFromBytes 从字节数组提取文本内容
func (e *DocxTextExtractor) ExtractTextFromBytes(ctx context.Context, data []byte, uri string) (string, map[string]interface{}, error) {
	startTime := time.Now()

	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		e.logger.Warn().Err(err).Str("uri", uri).Msg("DOCX打开失败")
		return "", nil, fmt.Errorf("failed to open DOCX %s: %w", uri, err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	text, err := docxXMLToText(content)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read DOCX body %s: %w", uri, err)
	}

	duration := time.Since(startTime)
	metadata := map[string]interface{}{
		"extraction_time":        startTime.Format(time.RFC3339),
		"processing_duration_ms": duration.Milliseconds(),
		"text_length":            len(text),
	}

	e.logger.Debug().Str("uri", uri).Int("chars", len(text)).Dur("duration", duration).Msg("DOCX提取完成")
	return text, metadata, nil
}

// docxXMLToText 遍历document.xml，收集每个段落(w:p)内文本节点(w:t)的内容
// 段落之间以换行符分隔
func docxXMLToText(content string) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(content))

	var sb strings.Builder
	var inText bool
	var paragraphHasText bool

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if paragraphHasText {
					sb.WriteString("\n")
					paragraphHasText = false
				}
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
				paragraphHasText = true
			}
		}
	}

	return strings.TrimRight(sb.String(), "\n"), nil
}
