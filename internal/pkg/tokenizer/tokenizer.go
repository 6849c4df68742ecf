// Package tokenizer 估算文本的 token 数，用于上下文窗口裁剪
package tokenizer

import (
	"strings"
	"sync"
	"unicode"

	"github.com/go-ego/gse"
	"github.com/rs/zerolog/log"
)

// MessageOverhead 每条消息的角色和分隔符开销
const MessageOverhead = 4

// Counter token 计数器
type Counter interface {
	Count(text string) int
}

// CounterFunc 函数适配为 Counter
type CounterFunc func(text string) int

// Count 实现 Counter
func (f CounterFunc) Count(text string) int {
	return f(text)
}

// Estimate 不依赖词典的估算
// 中日韩字符每字计 1，其余按空白切分后每 4 个字符计 1
func Estimate(text string) int {
	n := 0
	for _, field := range strings.Fields(text) {
		latin := 0
		for _, r := range field {
			if isCJK(r) {
				n++
				continue
			}
			latin++
		}
		n += (latin + 3) / 4
	}
	return n
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// Segmenter 基于 gse 分词的计数器
// 词典在首次使用时加载，加载失败时降级到 Estimate
type Segmenter struct {
	once sync.Once
	seg  *gse.Segmenter
}

// NewSegmenter 创建分词计数器
func NewSegmenter() *Segmenter {
	return &Segmenter{}
}

func (s *Segmenter) load() {
	var seg gse.Segmenter
	if err := seg.LoadDict(); err != nil {
		log.Warn().Err(err).Msg("gse dictionary unavailable, falling back to estimated token counts")
		return
	}
	s.seg = &seg
}

// Count 统计分词结果中的非空白词，长英文词按 Estimate 计
func (s *Segmenter) Count(text string) int {
	s.once.Do(s.load)
	if s.seg == nil {
		return Estimate(text)
	}

	n := 0
	for _, word := range s.seg.Cut(text, false) {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		if c := Estimate(word); c > 1 {
			n += c
		} else {
			n++
		}
	}
	return n
}

// CountMessage 单条消息的 token 数，包含固定开销
func CountMessage(c Counter, content string) int {
	return c.Count(content) + MessageOverhead
}
