package file

import (
	"strings"
	"time"
)

// File 上传文件记录
// 文件内容保存在对象存储中（StorageKey），这里只保存元数据
type File struct {
	ID             string         `bson:"_id" json:"id"`                                         // UUID
	UserID         string         `bson:"user_id" json:"userId"`                                 // 上传者
	ConversationID string         `bson:"conversation_id,omitempty" json:"conversationId,omitempty"` // 关联会话（可选）
	Filename       string         `bson:"filename" json:"filename"`                              // 生成的唯一文件名
	OriginalName   string         `bson:"original_name" json:"originalName"`                     // 原始文件名
	MimeType       string         `bson:"mime_type" json:"mimeType"`                             // MIME类型
	Size           int64          `bson:"size" json:"size"`                                      // 文件大小（字节）
	StorageKey     string         `bson:"storage_key" json:"-"`                                  // 存储路径（key）
	StorageType    string         `bson:"storage_type" json:"storageType"`                       // local/oss
	FileType       Type           `bson:"file_type" json:"fileType"`                             // image/document/other
	ExtractedText  string         `bson:"extracted_text,omitempty" json:"extractedText,omitempty"`
	AnalysisResult map[string]any `bson:"analysis_result,omitempty" json:"analysisResult,omitempty"`
	CreatedAt      time.Time      `bson:"created_at" json:"createdAt"`
}

// Collection 返回集合名称
func (f *File) Collection() string {
	return "files"
}

// Type 文件分类
type Type string

const (
	TypeImage    Type = "image"
	TypeDocument Type = "document"
	TypeOther    Type = "other"
)

// TypeFromMime 根据 MIME 类型推断文件分类
func TypeFromMime(mime string) Type {
	mime = strings.ToLower(mime)
	switch {
	case strings.HasPrefix(mime, "image/"):
		return TypeImage
	case strings.Contains(mime, "pdf"), strings.Contains(mime, "document"), strings.Contains(mime, "word"):
		return TypeDocument
	default:
		return TypeOther
	}
}
