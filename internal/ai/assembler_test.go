package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"parley/internal/model/chat"
	"parley/internal/pkg/id"
	"parley/internal/pkg/tokenizer"
	"parley/internal/repository"
	"parley/internal/repository/memory"
)

func seedConversation(store *memory.Store, n int) string {
	ctx := context.Background()
	conv := &chat.Conversation{ID: id.New(), UserID: "u1", Title: chat.DefaultTitle, Model: chat.ModelGPT35Turbo}
	So(store.CreateConversation(ctx, conv), ShouldBeNil)
	for i := 0; i < n; i++ {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		msg := &chat.Message{
			ID:             id.New(),
			ConversationID: conv.ID,
			Content:        fmt.Sprintf("message %d", i),
			Role:           role,
			Type:           chat.MessageTypeText,
			Attachments:    []string{"file-1"},
		}
		So(store.AppendMessage(ctx, msg), ShouldBeNil)
	}
	return conv.ID
}

func TestAssemblerBuild(t *testing.T) {
	Convey("Assembler.Build", t, func() {
		ctx := context.Background()
		store := memory.New()

		Convey("默认不截断，按顺序返回全部轮次", func() {
			convID := seedConversation(store, 5)
			turns, err := NewAssembler(store, AssemblerOptions{}).Build(ctx, convID)
			So(err, ShouldBeNil)
			So(len(turns), ShouldEqual, 5)
			for i, turn := range turns {
				So(turn.Content, ShouldEqual, fmt.Sprintf("message %d", i))
			}
			So(turns[0].Role, ShouldEqual, chat.RoleUser)
			So(turns[1].Role, ShouldEqual, chat.RoleAssistant)
		})

		Convey("按条数截断时保留最近的", func() {
			convID := seedConversation(store, 6)
			turns, err := NewAssembler(store, AssemblerOptions{MaxMessages: 2}).Build(ctx, convID)
			So(err, ShouldBeNil)
			So(len(turns), ShouldEqual, 2)
			So(turns[0].Content, ShouldEqual, "message 4")
			So(turns[1].Content, ShouldEqual, "message 5")
		})

		Convey("系统提示词在最前且不占条数", func() {
			convID := seedConversation(store, 3)
			turns, err := NewAssembler(store, AssemblerOptions{MaxMessages: 1, SystemPrompt: "be brief"}).Build(ctx, convID)
			So(err, ShouldBeNil)
			So(len(turns), ShouldEqual, 2)
			So(turns[0], ShouldResemble, chat.Turn{Role: chat.RoleSystem, Content: "be brief"})
			So(turns[1].Content, ShouldEqual, "message 2")
		})

		Convey("会话不存在时返回 ErrNotFound", func() {
			_, err := NewAssembler(store, AssemblerOptions{}).Build(ctx, id.New())
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestWindow(t *testing.T) {
	Convey("Window 按 token 预算截断", t, func() {
		counter := tokenizer.CounterFunc(tokenizer.Estimate)
		turns := userTurns("aaaa", "bbbb", "cccc") // 每条 1 + 4 开销

		Convey("不限制时原样返回", func() {
			So(Window(turns, 0, 0, counter), ShouldResemble, turns)
		})

		Convey("预算只够两条", func() {
			got := Window(turns, 0, 10, counter)
			So(len(got), ShouldEqual, 2)
			So(got[0].Content, ShouldEqual, "bbbb")
		})

		Convey("预算不足一条时仍保留最近一轮", func() {
			got := Window(turns, 0, 1, counter)
			So(len(got), ShouldEqual, 1)
			So(got[0].Content, ShouldEqual, "cccc")
		})

		Convey("空输入", func() {
			So(Window(nil, 3, 3, counter), ShouldBeEmpty)
		})
	})
}
