package chat

// Turn 发送给模型的一轮对话，只包含角色和文本
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TurnsFromMessages 按顺序转换消息，丢弃附件和元数据
func TurnsFromMessages(msgs []*Message) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}
