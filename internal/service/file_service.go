package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"parley/internal/model/file"
	"parley/internal/pkg/id"
	"parley/internal/pkg/storage"
	"parley/internal/repository"
)

const (
	// DefaultMaxUploadSize 默认上传大小上限 10 MiB
	DefaultMaxUploadSize = 10 << 20
	// maxExtractedText 文本文件最多提取的字节数
	maxExtractedText = 64 << 10
	// downloadURLExpiry 返回给客户端的下载链接有效期
	downloadURLExpiry = 24 * time.Hour
)

// DefaultAllowedExtensions 默认允许上传的扩展名
var DefaultAllowedExtensions = []string{"jpg", "jpeg", "png", "pdf", "doc", "docx", "txt"}

// FileService 文件服务
type FileService struct {
	store   repository.Store
	storage storage.Storage
	allowed map[string]bool
	maxSize int64
}

// NewFileService 创建文件服务，allowed 为空时使用默认扩展名，maxSize <= 0 时使用 10 MiB
func NewFileService(store repository.Store, st storage.Storage, allowed []string, maxSize int64) *FileService {
	if len(allowed) == 0 {
		allowed = DefaultAllowedExtensions
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	set := make(map[string]bool, len(allowed))
	for _, ext := range allowed {
		set[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return &FileService{store: store, storage: st, allowed: set, maxSize: maxSize}
}

// UploadInput 上传参数
type UploadInput struct {
	UserID         string
	ConversationID string // 可选
	FileName       string
	ContentType    string
	Data           io.Reader
}

// UploadResult 上传结果
type UploadResult struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	URL          string    `json:"url"`
	FileType     file.Type `json:"fileType"`
	Size         int64     `json:"size"`
}

// Upload 保存文件内容并创建记录
// 先写存储再写记录，记录写入失败时删除已存储的内容
func (s *FileService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if in.Data == nil {
		return nil, fmt.Errorf("%w: file is required", ErrInvalidInput)
	}

	originalName := filepath.Base(strings.TrimSpace(in.FileName))
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalName), "."))
	if !s.allowed[ext] {
		return nil, fmt.Errorf("%w: file type .%s is not allowed", ErrInvalidInput, ext)
	}

	if in.ConversationID != "" {
		if _, err := ownedConversation(ctx, s.store, in.UserID, in.ConversationID); err != nil {
			return nil, err
		}
	}

	// 多读一个字节用于判断是否超限
	data, err := io.ReadAll(io.LimitReader(in.Data, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, s.maxSize)
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	fileID := id.New()
	filename := fmt.Sprintf("%d-%s.%s", time.Now().UnixMilli(), fileID, ext)
	storageKey := generateStorageKey(in.UserID, filename)

	logger := log.With().Str("user_id", in.UserID).Str("key", storageKey).Logger()

	if _, err := s.storage.Upload(ctx, storageKey, bytes.NewReader(data), contentType); err != nil {
		logger.Error().Err(err).Msg("failed to upload file")
		return nil, fmt.Errorf("store file: %w", err)
	}

	f := &file.File{
		ID:             fileID,
		UserID:         in.UserID,
		ConversationID: in.ConversationID,
		Filename:       filename,
		OriginalName:   originalName,
		MimeType:       contentType,
		Size:           int64(len(data)),
		StorageKey:     storageKey,
		StorageType:    s.storage.GetStorageType(),
		FileType:       file.TypeFromMime(contentType),
	}
	if ext == "txt" {
		f.ExtractedText = extractText(data)
	}

	if err := s.store.CreateFile(ctx, f); err != nil {
		logger.Error().Err(err).Msg("failed to create file record")
		if derr := s.storage.Delete(ctx, storageKey); derr != nil {
			logger.Error().Err(derr).Msg("failed to remove orphaned file")
		}
		return nil, fmt.Errorf("create file record: %w", err)
	}

	return &UploadResult{
		ID:           f.ID,
		Filename:     f.Filename,
		OriginalName: f.OriginalName,
		URL:          s.url(ctx, f),
		FileType:     f.FileType,
		Size:         f.Size,
	}, nil
}

// extractText 提取文本文件开头部分，截断在完整字符上
func extractText(data []byte) string {
	if len(data) > maxExtractedText {
		data = data[:maxExtractedText]
		for len(data) > 0 && !utf8.Valid(data) {
			data = data[:len(data)-1]
		}
	}
	return string(data)
}

// FileView 文件记录及访问URL
type FileView struct {
	*file.File
	URL string `json:"url"`
}

// List 列出用户的全部文件，最新的在前
func (s *FileService) List(ctx context.Context, userID string) ([]*FileView, error) {
	files, err := s.store.ListFiles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return s.views(ctx, files), nil
}

// ListByConversation 列出用户在某个会话中上传的文件
func (s *FileService) ListByConversation(ctx context.Context, userID, conversationID string) ([]*FileView, error) {
	files, err := s.store.ListFilesByConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return s.views(ctx, files), nil
}

func (s *FileService) views(ctx context.Context, files []*file.File) []*FileView {
	out := make([]*FileView, 0, len(files))
	for _, f := range files {
		out = append(out, &FileView{File: f, URL: s.url(ctx, f)})
	}
	return out
}

func (s *FileService) url(ctx context.Context, f *file.File) string {
	u, err := s.storage.GetPresignedDownloadURL(ctx, f.StorageKey, downloadURLExpiry)
	if err != nil {
		log.Warn().Err(err).Str("file_id", f.ID).Msg("failed to generate file URL")
		return ""
	}
	return u
}

// DownloadResult 下载结果，调用方负责关闭 Data
type DownloadResult struct {
	File *file.File
	Data io.ReadCloser
}

// Download 下载文件内容
func (s *FileService) Download(ctx context.Context, userID, fileID string) (*DownloadResult, error) {
	f, err := s.ownedFile(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}

	reader, err := s.storage.Download(ctx, f.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("download file: %w", repository.ErrNotFound)
		}
		log.Error().Err(err).Str("key", f.StorageKey).Msg("failed to download file")
		return nil, fmt.Errorf("download file: %w", err)
	}
	return &DownloadResult{File: f, Data: reader}, nil
}

// Delete 删除文件
// 先删除存储内容，失败时保留记录以便重试
func (s *FileService) Delete(ctx context.Context, userID, fileID string) error {
	f, err := s.ownedFile(ctx, userID, fileID)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, f.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Error().Err(err).Str("key", f.StorageKey).Msg("failed to delete stored file")
		return fmt.Errorf("delete stored file: %w", err)
	}

	if err := s.store.DeleteFile(ctx, fileID); err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	return nil
}

func (s *FileService) ownedFile(ctx context.Context, userID, fileID string) (*file.File, error) {
	f, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	if f.UserID != userID {
		return nil, fmt.Errorf("get file: %w", repository.ErrNotFound)
	}
	return f, nil
}

// generateStorageKey 生成存储路径
// 格式：files/{user_id}/{filename}
func generateStorageKey(userID, filename string) string {
	return fmt.Sprintf("files/%s/%s", userID, filename)
}
