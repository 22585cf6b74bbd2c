package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-agent-go/internal/api/handler"
	"hr-agent-go/internal/constants"
	"hr-agent-go/internal/processor"
	"hr-agent-go/internal/storage/models"
)

type stubRecordStore struct {
	records map[string]*models.ResumeUpload
	getErr  error
}

func (s *stubRecordStore) GetUploadByFileID(ctx context.Context, fileID string) (*models.ResumeUpload, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.records[fileID], nil
}

func (s *stubRecordStore) UpdateUploadStatus(ctx context.Context, fileID, status, failureReason string) error {
	return nil
}

type stubRemover struct {
	err error
}

func (s *stubRemover) DeleteResume(ctx context.Context, fileID string) error {
	return s.err
}

type stubArchiveReader struct {
	text string
}

func (s *stubArchiveReader) GetParsedText(ctx context.Context, objectName string) (string, error) {
	return s.text, nil
}

func (s *stubArchiveReader) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	return "https://minio.local/" + objectName, nil
}

func (s *stubArchiveReader) DeleteOriginalFile(ctx context.Context, objectName string) error {
	return nil
}

func newAdminEngine(t *testing.T, records processor.RecordStore, remover processor.DocumentRemover, opts ...processor.AdminOption) *route.Engine {
	t.Helper()

	admin, err := processor.NewResumeAdmin(records, remover, opts...)
	require.NoError(t, err)

	engine := route.NewEngine(config.NewOptions(nil))
	h := handler.NewResumeAdminHandler(admin)
	engine.GET("/api/v1/resumes/:file_id", h.HandleResumeDetail)
	engine.GET("/api/v1/resumes/:file_id/text", h.HandleResumeText)
	engine.DELETE("/api/v1/resumes/:file_id", h.HandleResumeDelete)
	return engine
}

func adminRecord(fileID string) *models.ResumeUpload {
	return &models.ResumeUpload{
		FileID:           fileID,
		OriginalFilename: "王五.pdf",
		CandidateName:    "王五",
		Status:           constants.StatusIndexed,
		Score:            "90",
		OriginalPathOSS:  "resume/" + fileID + "/original.pdf",
		ParsedTextPath:   "resume/" + fileID + "/parsed.txt",
	}
}

func TestHandleResumeDetail(t *testing.T) {
	fileID := "20250901120000_a1b2c3"
	records := &stubRecordStore{records: map[string]*models.ResumeUpload{fileID: adminRecord(fileID)}}
	engine := newAdminEngine(t, records, &stubRemover{}, processor.WithArchiveReader(&stubArchiveReader{}))

	w := ut.PerformRequest(engine, "GET", "/api/v1/resumes/"+fileID, nil)
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())

	var detail processor.ResumeDetail
	require.NoError(t, json.Unmarshal(resp.Body(), &detail))
	assert.Equal(t, fileID, detail.FileID)
	assert.Equal(t, "王五", detail.CandidateName)
	assert.Contains(t, detail.DownloadURL, "original.pdf")
}

func TestHandleResumeDetailNotFound(t *testing.T) {
	engine := newAdminEngine(t, &stubRecordStore{}, &stubRemover{})

	w := ut.PerformRequest(engine, "GET", "/api/v1/resumes/20250901120000_ffffff", nil)
	assert.Equal(t, 404, w.Result().StatusCode())
}

func TestHandleResumeText(t *testing.T) {
	fileID := "20250901120000_a1b2c3"
	records := &stubRecordStore{records: map[string]*models.ResumeUpload{fileID: adminRecord(fileID)}}
	archive := &stubArchiveReader{text: "王五，资深数据工程师。"}
	engine := newAdminEngine(t, records, &stubRemover{}, processor.WithArchiveReader(archive))

	w := ut.PerformRequest(engine, "GET", "/api/v1/resumes/"+fileID+"/text", nil)
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())

	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, "王五，资深数据工程师。", body["text"])
}

func TestHandleResumeDelete(t *testing.T) {
	fileID := "20250901120000_a1b2c3"
	records := &stubRecordStore{records: map[string]*models.ResumeUpload{fileID: adminRecord(fileID)}}
	engine := newAdminEngine(t, records, &stubRemover{})

	w := ut.PerformRequest(engine, "DELETE", "/api/v1/resumes/"+fileID, nil)
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())

	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, "DELETED", body["status"])
}

func TestHandleResumeDeleteStoreFailure(t *testing.T) {
	fileID := "20250901120000_a1b2c3"
	records := &stubRecordStore{records: map[string]*models.ResumeUpload{fileID: adminRecord(fileID)}}
	engine := newAdminEngine(t, records, &stubRemover{err: errors.New("es down")})

	w := ut.PerformRequest(engine, "DELETE", "/api/v1/resumes/"+fileID, nil)
	assert.Equal(t, 502, w.Result().StatusCode())
}
