package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"parley/internal/ai"
	"parley/internal/model/chat"
	"parley/internal/model/file"
	"parley/internal/pkg/id"
	"parley/internal/realtime"
	"parley/internal/repository"
)

func TestChatService_PostMessage(t *testing.T) {
	Convey("PostMessage", t, func() {
		f := newFixture(t)
		conv := f.newConversation(t, "u1")

		Convey("追加一对消息并返回稳定的ID", func() {
			res, err := f.chat.PostMessage(f.ctx, PostMessageInput{UserID: "u1", ConversationID: conv.ID, Content: "  hello  "})
			So(err, ShouldBeNil)
			So(res.UserMessage.Content, ShouldEqual, "hello")
			So(res.UserMessage.Role, ShouldEqual, chat.RoleUser)
			So(res.UserMessage.UserID, ShouldEqual, "u1")
			So(res.AIMessage.Role, ShouldEqual, chat.RoleAssistant)
			So(res.AIMessage.UserID, ShouldBeEmpty)
			So(res.AIMessage.Content, ShouldStartWith, "Hi there!")
			So(res.AIMessage.Degraded, ShouldBeFalse)

			msgs, err := f.chat.ListMessages(f.ctx, "u1", conv.ID)
			So(err, ShouldBeNil)
			So(len(msgs), ShouldEqual, 2)
			So(msgs[0].ID, ShouldEqual, res.UserMessage.ID)
			So(msgs[1].ID, ShouldEqual, res.AIMessage.ID)
			So(msgs[0].Seq, ShouldBeLessThan, msgs[1].Seq)
			So(msgs[1].CreatedAt.Before(msgs[0].CreatedAt), ShouldBeFalse)

			got, err := f.store.GetConversation(f.ctx, conv.ID)
			So(err, ShouldBeNil)
			So(got.MessageIDs, ShouldResemble, []string{res.UserMessage.ID, res.AIMessage.ID})
			So(got.UpdatedAt.Before(res.AIMessage.CreatedAt), ShouldBeFalse)
		})

		Convey("N 次发送后共有 2N 条消息且交替出现", func() {
			const n = 5
			for i := 0; i < n; i++ {
				_, err := f.chat.PostMessage(f.ctx, PostMessageInput{UserID: "u1", ConversationID: conv.ID, Content: fmt.Sprintf("msg %d", i)})
				So(err, ShouldBeNil)
			}
			msgs, err := f.chat.ListMessages(f.ctx, "u1", conv.ID)
			So(err, ShouldBeNil)
			So(len(msgs), ShouldEqual, 2*n)
			for i, m := range msgs {
				if i%2 == 0 {
					So(m.Role, ShouldEqual, chat.RoleUser)
					So(m.Content, ShouldEqual, fmt.Sprintf("msg %d", i/2))
				} else {
					So(m.Role, ShouldEqual, chat.RoleAssistant)
				}
			}
		})

		Convey("空内容被拒绝且不产生写入", func() {
			before, _ := f.store.GetConversation(f.ctx, conv.ID)
			for _, content := range []string{"", "   ", "\n\t"} {
				_, err := f.chat.PostMessage(f.ctx, PostMessageInput{UserID: "u1", ConversationID: conv.ID, Content: content})
				So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
			}
			So(f.store.appends.Load(), ShouldEqual, int32(0))
			after, _ := f.store.GetConversation(f.ctx, conv.ID)
			So(after.UpdatedAt.Equal(before.UpdatedAt), ShouldBeTrue)
			So(after.MessageIDs, ShouldBeEmpty)
		})

		Convey("会话不存在或不属于调用者时返回 NotFound", func() {
			_, err := f.chat.PostMessage(f.ctx, PostMessageInput{UserID: "u1", ConversationID: id.New(), Content: "hi"})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

			_, err = f.chat.PostMessage(f.ctx, PostMessageInput{UserID: "u2", ConversationID: conv.ID, Content: "hi"})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			So(f.store.appends.Load(), ShouldEqual, int32(0))
		})

		Convey("上下文包含之前的消息和新消息", func() {
			gw := &stubGateway{completion: ai.Completion{Content: "ok", Provider: "stub"}}
			svc := NewChatService(f.store, ai.NewAssembler(f.store, ai.AssemblerOptions{}), gw, nil)

			_, err := svc.PostMessage(f.ctx, PostMessageInput{UserID: "u1", ConversationID: conv.ID, Content: "first"})
			So(err, ShouldBeNil)
			_, err = svc.PostMessage(f.ctx, PostMessageInput{UserID: "u1", ConversationID: conv.ID, Content: "second"})
			So(err, ShouldBeNil)

			So(gw.turns, ShouldResemble, []chat.Turn{
				{Role: chat.RoleUser, Content: "first"},
				{Role: chat.RoleAssistant, Content: "ok"},
				{Role: chat.RoleUser, Content: "second"},
			})
			So(gw.model, ShouldEqual, conv.Model)
		})

		Convey("降级回复同样落库并带标记", func() {
			gw := &stubGateway{completion: ai.Completion{Content: "fallback", Degraded: true, Provider: "stub"}}
			svc := NewChatService(f.store, ai.NewAssembler(f.store, ai.AssemblerOptions{}), gw, nil)

			res, err := svc.PostMessage(f.ctx, PostMessageInput{UserID: "u1", ConversationID: conv.ID, Content: "hi"})
			So(err, ShouldBeNil)
			So(res.AIMessage.Content, ShouldEqual, "fallback")

			stored, err := f.store.GetMessage(f.ctx, res.AIMessage.ID)
			So(err, ShouldBeNil)
			So(stored.Degraded, ShouldBeTrue)
		})

		Convey("上下文组装失败时只使用新消息", func() {
			gw := &stubGateway{completion: ai.Completion{Content: "ok"}}
			svc := NewChatService(f.store, failingBuilder{}, gw, nil)

			_, err := svc.PostMessage(f.ctx, PostMessageInput{UserID: "u1", ConversationID: conv.ID, Content: "alone"})
			So(err, ShouldBeNil)
			So(gw.turns, ShouldResemble, []chat.Turn{{Role: chat.RoleUser, Content: "alone"}})
		})

		Convey("附件", func() {
			img := &file.File{ID: id.New(), UserID: "u1", OriginalName: "cat.png", MimeType: "image/png", FileType: file.TypeImage}
			doc := &file.File{ID: id.New(), UserID: "u1", OriginalName: "notes.txt", MimeType: "text/plain", FileType: file.TypeOther}
			other := &file.File{ID: id.New(), UserID: "u2", OriginalName: "secret.pdf", FileType: file.TypeDocument}
			for _, fl := range []*file.File{img, doc, other} {
				So(f.store.CreateFile(f.ctx, fl), ShouldBeNil)
			}

			Convey("只有附件时内容为附件名列表", func() {
				res, err := f.chat.PostMessage(f.ctx, PostMessageInput{UserID: "u1", ConversationID: conv.ID, Attachments: []string{img.ID, doc.ID}})
				So(err, ShouldBeNil)
				So(res.UserMessage.Content, ShouldEqual, "[Attachments: cat.png, notes.txt]")
				So(res.UserMessage.Type, ShouldEqual, chat.MessageTypeImage)
				So(res.UserMessage.Attachments, ShouldResemble, []string{img.ID, doc.ID})
			})

			Convey("非图片附件的消息类型为 text", func() {
				res, err := f.chat.PostMessage(f.ctx, PostMessageInput{UserID: "u1", ConversationID: conv.ID, Content: "see file", Attachments: []string{doc.ID}})
				So(err, ShouldBeNil)
				So(res.UserMessage.Content, ShouldEqual, "see file")
				So(res.UserMessage.Type, ShouldEqual, chat.MessageTypeText)
			})

			Convey("他人或不存在的附件被拒绝", func() {
				_, err := f.chat.PostMessage(f.ctx, PostMessageInput{UserID: "u1", ConversationID: conv.ID, Attachments: []string{other.ID}})
				So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
				_, err = f.chat.PostMessage(f.ctx, PostMessageInput{UserID: "u1", ConversationID: conv.ID, Attachments: []string{id.New()}})
				So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
				So(f.store.appends.Load(), ShouldEqual, int32(0))
			})
		})

		Convey("向订阅者发布两条创建事件", func() {
			b := realtime.NewBroadcaster()
			defer b.Close()
			svc := NewChatService(f.store, ai.NewAssembler(f.store, ai.AssemblerOptions{}), ai.NewDemoGateway(), b)

			ctx, cancel := context.WithCancel(f.ctx)
			defer cancel()
			events, _ := b.Subscribe(ctx, conv.ID)

			res, err := svc.PostMessage(f.ctx, PostMessageInput{UserID: "u1", ConversationID: conv.ID, Content: "hello"})
			So(err, ShouldBeNil)

			var got []realtime.Event
			for len(got) < 2 {
				select {
				case e := <-events:
					got = append(got, e)
				case <-time.After(time.Second):
					t.Fatal("timed out waiting for events")
				}
			}
			So(got[0].Type, ShouldEqual, realtime.EventMessageCreated)
			So(got[0].Message.ID, ShouldEqual, res.UserMessage.ID)
			So(got[1].Message.ID, ShouldEqual, res.AIMessage.ID)
		})
	})
}

func TestChatService_MessageOperations(t *testing.T) {
	Convey("消息编辑、评分与删除", t, func() {
		f := newFixture(t)
		conv := f.newConversation(t, "u1")
		res, err := f.chat.PostMessage(f.ctx, PostMessageInput{UserID: "u1", ConversationID: conv.ID, Content: "hello"})
		So(err, ShouldBeNil)

		Convey("编辑自己的消息", func() {
			msg, err := f.chat.EditMessage(f.ctx, "u1", res.UserMessage.ID, " hello again ")
			So(err, ShouldBeNil)
			So(msg.Content, ShouldEqual, "hello again")
			So(msg.IsEdited, ShouldBeTrue)
			So(msg.EditedAt, ShouldNotBeNil)
			So(msg.Seq, ShouldEqual, res.UserMessage.Seq)
		})

		Convey("不能编辑助手消息或改为空内容", func() {
			_, err := f.chat.EditMessage(f.ctx, "u1", res.AIMessage.ID, "changed")
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
			_, err = f.chat.EditMessage(f.ctx, "u1", res.UserMessage.ID, "  ")
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
		})

		Convey("他人无法访问消息", func() {
			_, err := f.chat.EditMessage(f.ctx, "u2", res.UserMessage.ID, "x")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			_, err = f.chat.ListMessages(f.ctx, "u2", conv.ID)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			So(errors.Is(f.chat.DeleteMessage(f.ctx, "u2", res.UserMessage.ID), repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("评分不影响顺序和内容", func() {
			msg, err := f.chat.RateMessage(f.ctx, "u1", res.AIMessage.ID, -1)
			So(err, ShouldBeNil)
			So(msg.Rating, ShouldEqual, -1)
			So(msg.Content, ShouldEqual, res.AIMessage.Content)

			_, err = f.chat.RateMessage(f.ctx, "u1", res.AIMessage.ID, 5)
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)

			msgs, _ := f.chat.ListMessages(f.ctx, "u1", conv.ID)
			So(msgs[0].ID, ShouldEqual, res.UserMessage.ID)
			So(msgs[1].ID, ShouldEqual, res.AIMessage.ID)
		})

		Convey("删除消息", func() {
			So(f.chat.DeleteMessage(f.ctx, "u1", res.UserMessage.ID), ShouldBeNil)
			msgs, err := f.chat.ListMessages(f.ctx, "u1", conv.ID)
			So(err, ShouldBeNil)
			So(len(msgs), ShouldEqual, 1)
			So(msgs[0].ID, ShouldEqual, res.AIMessage.ID)

			err = f.chat.DeleteMessage(f.ctx, "u1", res.UserMessage.ID)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}
