package config

import (
	"errors"
	"time"
)

// Config 应用配置根结构
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	AI      AIConfig      `mapstructure:"ai"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Log     LogConfig     `mapstructure:"log"`
	Store   StoreConfig   `mapstructure:"store"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Storage StorageConfig `mapstructure:"storage"`
	Upload  UploadConfig  `mapstructure:"upload"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// AIConfig AI 服务配置
type AIConfig struct {
	Provider     string            `mapstructure:"provider"` // demo, openai, azure, ark, ark_sdk
	APIKey       string            `mapstructure:"api_key"`
	Model        string            `mapstructure:"model"`
	BaseURL      string            `mapstructure:"base_url"`
	Timeout      time.Duration     `mapstructure:"timeout"`       // 单次补全超时，超时按降级处理
	ModelAliases map[string]string `mapstructure:"model_aliases"` // 会话模型 -> 提供方模型
	Options      AIOptionsConfig   `mapstructure:"options"`
}

// AIOptionsConfig AI 模型参数
type AIOptionsConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TopP        float64 `mapstructure:"top_p"`
}

// ChatConfig 对话默认值与上下文窗口
type ChatConfig struct {
	DefaultModel       string        `mapstructure:"default_model"`
	DefaultTemperature float64       `mapstructure:"default_temperature"`
	ShareBaseURL       string        `mapstructure:"share_base_url"` // 分享链接前缀，如 http://localhost:3000/share
	SystemPrompt       string        `mapstructure:"system_prompt"`
	Context            ContextConfig `mapstructure:"context"`
}

// ContextConfig 上下文窗口限制，0 表示不限制
type ContextConfig struct {
	MaxMessages int `mapstructure:"max_messages"`
	MaxTokens   int `mapstructure:"max_tokens"`
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// StoreConfig 存储后端选择
type StoreConfig struct {
	Type string `mapstructure:"type"` // memory, mongo, sqlite, postgres
	DSN  string `mapstructure:"dsn"`  // sqlite/postgres 连接串
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	MinPoolSize uint64 `mapstructure:"min_pool_size"`
}

// RedisConfig Redis 配置，Addr 为空时不启用缓存
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`          // JWT密钥
	AccessTokenExpiry time.Duration `mapstructure:"access_token_expiry"` // Access Token过期时间
}

// StorageConfig 文件存储配置
type StorageConfig struct {
	Type  string       `mapstructure:"type"` // local, oss
	Local *LocalConfig `mapstructure:"local,omitempty"`
	OSS   *OSSConfig   `mapstructure:"oss,omitempty"`
}

// LocalConfig 本地文件系统配置
type LocalConfig struct {
	BasePath string `mapstructure:"base_path"` // 基础路径
	BaseURL  string `mapstructure:"base_url"`  // 基础URL（静态目录访问前缀）
}

// OSSConfig 阿里云OSS配置
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`          // OSS端点
	Bucket          string `mapstructure:"bucket"`            // Bucket名称
	AccessKeyID     string `mapstructure:"access_key_id"`     // AccessKey ID
	AccessKeySecret string `mapstructure:"access_key_secret"` // AccessKey Secret
	PresignExpiry   int    `mapstructure:"presign_expiry"`    // 预签名URL过期时间（秒）
}

// UploadConfig 上传限制
type UploadConfig struct {
	AllowedExtensions []string `mapstructure:"allowed_extensions"` // 不含点号
	MaxSize           int64    `mapstructure:"max_size"`           // 字节
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	validStores := map[string]bool{"memory": true, "mongo": true, "sqlite": true, "postgres": true}
	if !validStores[c.Store.Type] {
		return errors.New("invalid store type, must be memory/mongo/sqlite/postgres")
	}

	validModels := map[string]bool{"gpt-3.5-turbo": true, "gpt-4": true, "gpt-4-turbo": true}
	if !validModels[c.Chat.DefaultModel] {
		return errors.New("chat.default_model must be gpt-3.5-turbo/gpt-4/gpt-4-turbo")
	}

	if c.Chat.DefaultTemperature < 0 || c.Chat.DefaultTemperature > 2 {
		return errors.New("chat.default_temperature must be within [0, 2]")
	}

	if c.Chat.Context.MaxMessages < 0 || c.Chat.Context.MaxTokens < 0 {
		return errors.New("chat.context limits must not be negative")
	}

	if c.Upload.MaxSize < 0 {
		return errors.New("upload.max_size must not be negative")
	}

	return nil
}
