package chat

import "fmt"

// Model 会话可选的模型标识
type Model string

const (
	ModelGPT35Turbo Model = "gpt-3.5-turbo"
	ModelGPT4       Model = "gpt-4"
	ModelGPT4Turbo  Model = "gpt-4-turbo"
)

// SupportedModels 返回全部受支持的模型
func SupportedModels() []Model {
	return []Model{ModelGPT35Turbo, ModelGPT4, ModelGPT4Turbo}
}

// IsValid 检查模型是否受支持
func (m Model) IsValid() bool {
	switch m {
	case ModelGPT35Turbo, ModelGPT4, ModelGPT4Turbo:
		return true
	}
	return false
}

// String 返回模型字符串
func (m Model) String() string {
	return string(m)
}

// ParseModel 解析模型标识
func ParseModel(s string) (Model, error) {
	m := Model(s)
	if !m.IsValid() {
		return "", fmt.Errorf("unsupported model %q", s)
	}
	return m, nil
}

const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
)

// ValidTemperature 温度是否在 [0, 2] 内
func ValidTemperature(t float64) bool {
	return t >= MinTemperature && t <= MaxTemperature
}

// ClampTemperature 将温度限制到 [0, 2]
func ClampTemperature(t float64) float64 {
	if t < MinTemperature {
		return MinTemperature
	}
	if t > MaxTemperature {
		return MaxTemperature
	}
	return t
}

// Role 消息角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system" // 仅出现在上下文中，不落库
)

// IsValid 检查角色是否可以持久化
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// MessageType 消息类型
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeVoice MessageType = "voice"
)

// IsValid 检查消息类型是否有效
func (t MessageType) IsValid() bool {
	return t == MessageTypeText || t == MessageTypeImage || t == MessageTypeVoice
}

// ValidRating 评分只能是 -1、0、1
func ValidRating(r int) bool {
	return r == -1 || r == 0 || r == 1
}
