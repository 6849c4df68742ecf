package ai

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"parley/internal/model/chat"
)

func userTurns(contents ...string) []chat.Turn {
	turns := make([]chat.Turn, 0, len(contents))
	for _, c := range contents {
		turns = append(turns, chat.Turn{Role: chat.RoleUser, Content: c})
	}
	return turns
}

func TestDemoReply(t *testing.T) {
	Convey("演示回复只取决于最后一轮内容", t, func() {
		Convey("hello 返回问候", func() {
			reply := DemoReply(userTurns("hello"))
			So(reply, ShouldStartWith, "Hi there!")
			So(DemoReply(userTurns("Well HELLO there")), ShouldEqual, reply)
		})

		Convey("触发词按固定顺序匹配", func() {
			So(DemoReply(userTurns("how are you")), ShouldStartWith, "I'm doing well!")
			So(DemoReply(userTurns("what can you do")), ShouldStartWith, "I can help")
			// 同时包含多个触发词时 hello 优先
			So(DemoReply(userTurns("hello, what can you do")), ShouldStartWith, "Hi there!")
		})

		Convey("未命中时回显原文并提示配置环境变量", func() {
			reply := DemoReply(userTurns("hello", "xyz123"))
			So(reply, ShouldStartWith, "[Demo Mode] You said: \"xyz123\"")
			So(reply, ShouldContainSubstring, APIKeyEnv)
			So(DemoReply(userTurns("xyz123")), ShouldEqual, reply)
		})

		Convey("没有轮次时回显空内容", func() {
			So(DemoReply(nil), ShouldStartWith, "[Demo Mode] You said: \"\"")
		})
	})
}

func TestDemoGateway(t *testing.T) {
	Convey("DemoGateway 不降级且结果确定", t, func() {
		gw := NewDemoGateway()
		a := gw.Complete(context.Background(), userTurns("hello"), chat.ModelGPT4, 0.7)
		b := gw.Complete(context.Background(), userTurns("hello"), chat.ModelGPT35Turbo, 1.5)
		So(a.Content, ShouldEqual, b.Content)
		So(a.Degraded, ShouldBeFalse)
		So(a.Provider, ShouldEqual, DemoProvider)
	})
}
