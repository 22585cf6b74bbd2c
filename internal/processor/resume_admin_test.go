package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-agent-go/internal/constants"
	"hr-agent-go/internal/storage/models"
)

// --- 详情与删除编排层的替身 ---

type fakeRecordStore struct {
	records  map[string]*models.ResumeUpload
	getErr   error
	statuses map[string][2]string
}

func (f *fakeRecordStore) GetUploadByFileID(ctx context.Context, fileID string) (*models.ResumeUpload, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.records[fileID], nil
}

func (f *fakeRecordStore) UpdateUploadStatus(ctx context.Context, fileID, status, failureReason string) error {
	if f.statuses == nil {
		f.statuses = make(map[string][2]string)
	}
	f.statuses[fileID] = [2]string{status, failureReason}
	return nil
}

type fakeArchiveReader struct {
	texts   map[string]string
	textErr error
	urlErr  error
	delErr  error
	deleted []string
}

func (f *fakeArchiveReader) GetParsedText(ctx context.Context, objectName string) (string, error) {
	if f.textErr != nil {
		return "", f.textErr
	}
	return f.texts[objectName], nil
}

func (f *fakeArchiveReader) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	if f.urlErr != nil {
		return "", f.urlErr
	}
	return "https://minio.local/" + objectName + "?sig=test", nil
}

func (f *fakeArchiveReader) DeleteOriginalFile(ctx context.Context, objectName string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, objectName)
	return nil
}

type fakeRemover struct {
	deleted []string
	err     error
}

func (f *fakeRemover) DeleteResume(ctx context.Context, fileID string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, fileID)
	return nil
}

func indexedRecord(fileID string) *models.ResumeUpload {
	return &models.ResumeUpload{
		FileID:           fileID,
		OriginalFilename: "张三_golang.pdf",
		CandidateName:    "张三",
		Position:         "Go后端工程师",
		Status:           constants.StatusIndexed,
		Score:            "85",
		ProfileJSON:      models.StringToJSON(`{"name":"张三","score":"85"}`),
		OriginalPathOSS:  "resume/" + fileID + "/original.pdf",
		ParsedTextPath:   "resume/" + fileID + "/parsed.txt",
		UploadedAt:       time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestGetResumeDetail(t *testing.T) {
	fileID := "20250901120000_a1b2c3"
	records := &fakeRecordStore{records: map[string]*models.ResumeUpload{fileID: indexedRecord(fileID)}}
	archive := &fakeArchiveReader{}

	admin, err := NewResumeAdmin(records, &fakeRemover{}, WithArchiveReader(archive))
	require.NoError(t, err)

	detail, err := admin.GetResumeDetail(context.Background(), fileID)
	require.NoError(t, err)

	assert.Equal(t, fileID, detail.FileID)
	assert.Equal(t, "张三_golang.pdf", detail.OriginalFilename)
	assert.Equal(t, "张三", detail.CandidateName)
	assert.Equal(t, constants.StatusIndexed, detail.Status)
	assert.Equal(t, "85", detail.Score)
	assert.JSONEq(t, `{"name":"张三","score":"85"}`, string(detail.Profile))
	assert.Contains(t, detail.DownloadURL, "resume/"+fileID+"/original.pdf", "应附带原始文件的预签名下载链接")
}

func TestGetResumeDetailNotFound(t *testing.T) {
	admin, err := NewResumeAdmin(&fakeRecordStore{}, &fakeRemover{})
	require.NoError(t, err)

	_, err = admin.GetResumeDetail(context.Background(), "20250901120000_ffffff")
	assert.ErrorIs(t, err, ErrResumeNotFound)

	_, err = admin.GetResumeDetail(context.Background(), "")
	assert.ErrorIs(t, err, ErrResumeNotFound)
}

func TestGetResumeDetailRecordStoreFailure(t *testing.T) {
	records := &fakeRecordStore{getErr: errors.New("connection refused")}
	admin, err := NewResumeAdmin(records, &fakeRemover{})
	require.NoError(t, err)

	_, err = admin.GetResumeDetail(context.Background(), "20250901120000_a1b2c3")
	assert.ErrorIs(t, err, ErrDatabaseFailed)
}

func TestGetResumeDetailPresignFailureNonFatal(t *testing.T) {
	fileID := "20250901120000_a1b2c3"
	records := &fakeRecordStore{records: map[string]*models.ResumeUpload{fileID: indexedRecord(fileID)}}
	archive := &fakeArchiveReader{urlErr: errors.New("signature error")}

	admin, err := NewResumeAdmin(records, &fakeRemover{}, WithArchiveReader(archive))
	require.NoError(t, err)

	detail, err := admin.GetResumeDetail(context.Background(), fileID)
	require.NoError(t, err, "下载链接生成失败不应影响详情返回")
	assert.Empty(t, detail.DownloadURL)
}

func TestGetParsedText(t *testing.T) {
	fileID := "20250901120000_a1b2c3"
	record := indexedRecord(fileID)
	records := &fakeRecordStore{records: map[string]*models.ResumeUpload{fileID: record}}
	archive := &fakeArchiveReader{texts: map[string]string{record.ParsedTextPath: "张三，五年Go后端开发经验。"}}

	admin, err := NewResumeAdmin(records, &fakeRemover{}, WithArchiveReader(archive))
	require.NoError(t, err)

	text, err := admin.GetParsedText(context.Background(), fileID)
	require.NoError(t, err)
	assert.Equal(t, "张三，五年Go后端开发经验。", text)
}

func TestGetParsedTextNotArchived(t *testing.T) {
	fileID := "20250901120000_a1b2c3"
	record := indexedRecord(fileID)
	record.ParsedTextPath = ""
	records := &fakeRecordStore{records: map[string]*models.ResumeUpload{fileID: record}}

	admin, err := NewResumeAdmin(records, &fakeRemover{}, WithArchiveReader(&fakeArchiveReader{}))
	require.NoError(t, err)

	_, err = admin.GetParsedText(context.Background(), fileID)
	assert.ErrorIs(t, err, ErrResumeNotFound)
}

func TestGetParsedTextArchiveFailure(t *testing.T) {
	fileID := "20250901120000_a1b2c3"
	records := &fakeRecordStore{records: map[string]*models.ResumeUpload{fileID: indexedRecord(fileID)}}
	archive := &fakeArchiveReader{textErr: errors.New("object not found")}

	admin, err := NewResumeAdmin(records, &fakeRemover{}, WithArchiveReader(archive))
	require.NoError(t, err)

	_, err = admin.GetParsedText(context.Background(), fileID)
	assert.ErrorIs(t, err, ErrArchiveFailed)
}

func TestDeleteResume(t *testing.T) {
	fileID := "20250901120000_a1b2c3"
	record := indexedRecord(fileID)
	records := &fakeRecordStore{records: map[string]*models.ResumeUpload{fileID: record}}
	archive := &fakeArchiveReader{}
	remover := &fakeRemover{}

	admin, err := NewResumeAdmin(records, remover, WithArchiveReader(archive))
	require.NoError(t, err)

	require.NoError(t, admin.DeleteResume(context.Background(), fileID))

	assert.Equal(t, []string{fileID}, remover.deleted, "应从检索存储删除文档")
	assert.Equal(t, []string{record.OriginalPathOSS}, archive.deleted, "应删除归档的原始文件")
	require.Contains(t, records.statuses, fileID)
	assert.Equal(t, constants.StatusDeleted, records.statuses[fileID][0])
}

func TestDeleteResumeNotIndexed(t *testing.T) {
	fileID := "20250901120000_a1b2c3"
	record := indexedRecord(fileID)
	record.Status = constants.StatusExtractionFailed
	records := &fakeRecordStore{records: map[string]*models.ResumeUpload{fileID: record}}
	remover := &fakeRemover{err: errors.New("应当不会被调用")}

	admin, err := NewResumeAdmin(records, remover)
	require.NoError(t, err)

	// 未入索引的记录没有检索文档，删除不应触达检索存储
	require.NoError(t, admin.DeleteResume(context.Background(), fileID))
	assert.Equal(t, constants.StatusDeleted, records.statuses[fileID][0])
}

func TestDeleteResumeStoreFailure(t *testing.T) {
	fileID := "20250901120000_a1b2c3"
	records := &fakeRecordStore{records: map[string]*models.ResumeUpload{fileID: indexedRecord(fileID)}}
	remover := &fakeRemover{err: errors.New("connection refused")}

	admin, err := NewResumeAdmin(records, remover)
	require.NoError(t, err)

	err = admin.DeleteResume(context.Background(), fileID)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotContains(t, records.statuses, fileID, "检索删除失败时不应更新记录状态")
}

func TestNewResumeAdminRequiresDependencies(t *testing.T) {
	_, err := NewResumeAdmin(nil, &fakeRemover{})
	assert.Error(t, err)

	_, err = NewResumeAdmin(&fakeRecordStore{}, nil)
	assert.Error(t, err)
}
