// Package repotest 存储后端一致性测试，各实现共用同一组用例
package repotest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"parley/internal/model/auth"
	"parley/internal/model/chat"
	"parley/internal/model/file"
	"parley/internal/pkg/id"
	"parley/internal/repository"
)

// Factory 为每个用例创建一个全新的空存储
type Factory func(t *testing.T) repository.Store

// Run 对存储实现运行全部一致性用例
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore) })
	t.Run("Conversations", func(t *testing.T) { testConversations(t, newStore) })
	t.Run("Messages", func(t *testing.T) { testMessages(t, newStore) })
	t.Run("ConcurrentAppend", func(t *testing.T) { testConcurrentAppend(t, newStore) })
	t.Run("Share", func(t *testing.T) { testShare(t, newStore) })
	t.Run("Files", func(t *testing.T) { testFiles(t, newStore) })
}

// NewUser 构造测试用户
func NewUser(name string) *auth.User {
	return &auth.User{
		ID:           id.New(),
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
		Theme:        auth.ThemeLight,
		Language:     auth.DefaultLanguage,
	}
}

// NewConversation 构造测试会话
func NewConversation(userID string) *chat.Conversation {
	return &chat.Conversation{
		ID:          id.New(),
		UserID:      userID,
		Title:       chat.DefaultTitle,
		Model:       chat.ModelGPT35Turbo,
		Temperature: 0.7,
	}
}

// NewMessage 构造测试消息
func NewMessage(conversationID string, role chat.Role, content string) *chat.Message {
	return &chat.Message{
		ID:             id.New(),
		ConversationID: conversationID,
		Content:        content,
		Role:           role,
		Type:           chat.MessageTypeText,
	}
}

func testUsers(t *testing.T, newStore Factory) {
	Convey("用户存储", t, func() {
		ctx := context.Background()
		store := newStore(t)

		alice := NewUser("alice")
		So(store.CreateUser(ctx, alice), ShouldBeNil)
		So(alice.CreatedAt.IsZero(), ShouldBeFalse)

		Convey("按ID和邮箱查询", func() {
			u, err := store.FindUserByID(ctx, alice.ID)
			So(err, ShouldBeNil)
			So(u.Username, ShouldEqual, "alice")
			So(u.PasswordHash, ShouldEqual, "hash")

			u, err = store.FindUserByEmail(ctx, "alice@example.com")
			So(err, ShouldBeNil)
			So(u.ID, ShouldEqual, alice.ID)
		})

		Convey("不存在的用户返回 ErrNotFound", func() {
			_, err := store.FindUserByID(ctx, id.New())
			So(err, ShouldEqual, repository.ErrNotFound)
			_, err = store.FindUserByEmail(ctx, "nobody@example.com")
			So(err, ShouldEqual, repository.ErrNotFound)
		})

		Convey("重复邮箱或用户名返回 ErrConflict", func() {
			dup := NewUser("alice2")
			dup.Email = alice.Email
			So(store.CreateUser(ctx, dup), ShouldEqual, repository.ErrConflict)

			dup = NewUser("alice")
			dup.Email = "other@example.com"
			So(store.CreateUser(ctx, dup), ShouldEqual, repository.ErrConflict)
		})

		Convey("更新资料", func() {
			theme := auth.ThemeDark
			name := "alice-renamed"
			u, err := store.UpdateUser(ctx, alice.ID, auth.UserUpdate{Theme: &theme, Username: &name})
			So(err, ShouldBeNil)
			So(u.Theme, ShouldEqual, auth.ThemeDark)
			So(u.Username, ShouldEqual, name)
			So(u.Email, ShouldEqual, alice.Email)

			_, err = store.UpdateUser(ctx, id.New(), auth.UserUpdate{Theme: &theme})
			So(err, ShouldEqual, repository.ErrNotFound)
		})
	})
}

func testConversations(t *testing.T, newStore Factory) {
	Convey("会话存储", t, func() {
		ctx := context.Background()
		store := newStore(t)
		userID := id.New()

		conv := NewConversation(userID)
		So(store.CreateConversation(ctx, conv), ShouldBeNil)

		Convey("按ID查询，只有一个ID字段", func() {
			got, err := store.GetConversation(ctx, conv.ID)
			So(err, ShouldBeNil)
			So(got.ID, ShouldEqual, conv.ID)
			So(got.UserID, ShouldEqual, userID)
			So(got.Title, ShouldEqual, chat.DefaultTitle)
			So(got.Model, ShouldEqual, chat.ModelGPT35Turbo)
			So(got.MessageIDs, ShouldBeEmpty)
			So(got.ShareToken, ShouldBeNil)
		})

		Convey("部分更新只修改给定字段并推进 UpdatedAt", func() {
			before, _ := store.GetConversation(ctx, conv.ID)
			time.Sleep(5 * time.Millisecond)

			title := "Renamed"
			got, err := store.UpdateConversation(ctx, conv.ID, chat.ConversationUpdate{Title: &title})
			So(err, ShouldBeNil)
			So(got.Title, ShouldEqual, "Renamed")
			So(got.Model, ShouldEqual, chat.ModelGPT35Turbo)
			So(got.UpdatedAt.After(before.UpdatedAt), ShouldBeTrue)

			_, err = store.UpdateConversation(ctx, id.New(), chat.ConversationUpdate{Title: &title})
			So(err, ShouldEqual, repository.ErrNotFound)
		})

		Convey("列表排除归档，按更新时间倒序", func() {
			second := NewConversation(userID)
			So(store.CreateConversation(ctx, second), ShouldBeNil)
			other := NewConversation(id.New())
			So(store.CreateConversation(ctx, other), ShouldBeNil)

			time.Sleep(5 * time.Millisecond)
			So(store.TouchConversation(ctx, conv.ID), ShouldBeNil)

			list, err := store.ListConversations(ctx, userID, repository.ListOptions{})
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 2)
			So(list[0].ID, ShouldEqual, conv.ID)
			So(list[1].ID, ShouldEqual, second.ID)

			archived := true
			_, err = store.UpdateConversation(ctx, second.ID, chat.ConversationUpdate{IsArchived: &archived})
			So(err, ShouldBeNil)

			list, err = store.ListConversations(ctx, userID, repository.ListOptions{})
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 1)
			So(list[0].ID, ShouldEqual, conv.ID)

			list, err = store.ListConversations(ctx, userID, repository.ListOptions{Archived: true})
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 1)
			So(list[0].ID, ShouldEqual, second.ID)
		})

		Convey("没有会话时返回空列表", func() {
			list, err := store.ListConversations(ctx, id.New(), repository.ListOptions{})
			So(err, ShouldBeNil)
			So(list, ShouldNotBeNil)
			So(list, ShouldBeEmpty)
		})

		Convey("删除会话级联删除消息", func() {
			msg := NewMessage(conv.ID, chat.RoleUser, "hi")
			So(store.AppendMessage(ctx, msg), ShouldBeNil)

			So(store.DeleteConversation(ctx, conv.ID), ShouldBeNil)

			_, err := store.GetConversation(ctx, conv.ID)
			So(err, ShouldEqual, repository.ErrNotFound)
			_, err = store.ListMessages(ctx, conv.ID)
			So(err, ShouldEqual, repository.ErrNotFound)
			_, err = store.GetMessage(ctx, msg.ID)
			So(err, ShouldEqual, repository.ErrNotFound)

			So(store.DeleteConversation(ctx, conv.ID), ShouldEqual, repository.ErrNotFound)
		})

		Convey("刷新不存在的会话返回 ErrNotFound", func() {
			So(store.TouchConversation(ctx, id.New()), ShouldEqual, repository.ErrNotFound)
		})
	})
}

func testMessages(t *testing.T, newStore Factory) {
	Convey("消息存储", t, func() {
		ctx := context.Background()
		store := newStore(t)

		conv := NewConversation(id.New())
		So(store.CreateConversation(ctx, conv), ShouldBeNil)

		Convey("追加分配递增 Seq，列表顺序与会话消息列表一致", func() {
			var ids []string
			for i := 0; i < 4; i++ {
				role := chat.RoleUser
				if i%2 == 1 {
					role = chat.RoleAssistant
				}
				msg := NewMessage(conv.ID, role, fmt.Sprintf("m%d", i))
				So(store.AppendMessage(ctx, msg), ShouldBeNil)
				So(msg.Seq, ShouldEqual, int64(i+1))
				ids = append(ids, msg.ID)
			}

			msgs, err := store.ListMessages(ctx, conv.ID)
			So(err, ShouldBeNil)
			So(len(msgs), ShouldEqual, 4)
			for i, m := range msgs {
				So(m.ID, ShouldEqual, ids[i])
				So(m.Content, ShouldEqual, fmt.Sprintf("m%d", i))
				if i > 0 {
					So(m.CreatedAt.Before(msgs[i-1].CreatedAt), ShouldBeFalse)
				}
			}

			got, err := store.GetConversation(ctx, conv.ID)
			So(err, ShouldBeNil)
			So(got.MessageIDs, ShouldResemble, ids)
		})

		Convey("追加到不存在的会话返回 ErrNotFound", func() {
			msg := NewMessage(id.New(), chat.RoleUser, "orphan")
			So(store.AppendMessage(ctx, msg), ShouldEqual, repository.ErrNotFound)
		})

		Convey("列出不存在会话的消息返回 ErrNotFound", func() {
			_, err := store.ListMessages(ctx, id.New())
			So(err, ShouldEqual, repository.ErrNotFound)
		})

		Convey("附件和降级标记原样保存", func() {
			msg := NewMessage(conv.ID, chat.RoleAssistant, "fallback")
			msg.Attachments = []string{"f1", "f2"}
			msg.Degraded = true
			So(store.AppendMessage(ctx, msg), ShouldBeNil)

			got, err := store.GetMessage(ctx, msg.ID)
			So(err, ShouldBeNil)
			So(got.Attachments, ShouldResemble, []string{"f1", "f2"})
			So(got.Degraded, ShouldBeTrue)
			So(got.Role, ShouldEqual, chat.RoleAssistant)
		})

		Convey("没有附件的消息读回空列表", func() {
			msg := NewMessage(conv.ID, chat.RoleUser, "plain")
			msg.Attachments = nil
			So(store.AppendMessage(ctx, msg), ShouldBeNil)
			So(msg.Attachments, ShouldNotBeNil)
			So(msg.Attachments, ShouldBeEmpty)

			got, err := store.GetMessage(ctx, msg.ID)
			So(err, ShouldBeNil)
			So(got.Attachments, ShouldNotBeNil)
			So(got.Attachments, ShouldBeEmpty)

			list, err := store.ListMessages(ctx, conv.ID)
			So(err, ShouldBeNil)
			So(list, ShouldNotBeEmpty)
			for _, m := range list {
				So(m.Attachments, ShouldNotBeNil)
			}

			raw, err := json.Marshal(got)
			So(err, ShouldBeNil)
			So(string(raw), ShouldContainSubstring, `"attachments":[]`)
		})

		Convey("编辑和评分不改变顺序", func() {
			first := NewMessage(conv.ID, chat.RoleUser, "first")
			second := NewMessage(conv.ID, chat.RoleAssistant, "second")
			So(store.AppendMessage(ctx, first), ShouldBeNil)
			So(store.AppendMessage(ctx, second), ShouldBeNil)

			content := "first edited"
			edited, err := store.UpdateMessage(ctx, first.ID, chat.MessageUpdate{Content: &content})
			So(err, ShouldBeNil)
			So(edited.Content, ShouldEqual, content)
			So(edited.IsEdited, ShouldBeTrue)
			So(edited.EditedAt, ShouldNotBeNil)

			rating := 1
			rated, err := store.UpdateMessage(ctx, second.ID, chat.MessageUpdate{Rating: &rating})
			So(err, ShouldBeNil)
			So(rated.Rating, ShouldEqual, 1)
			So(rated.IsEdited, ShouldBeFalse)

			msgs, err := store.ListMessages(ctx, conv.ID)
			So(err, ShouldBeNil)
			So(msgs[0].ID, ShouldEqual, first.ID)
			So(msgs[1].ID, ShouldEqual, second.ID)

			_, err = store.UpdateMessage(ctx, id.New(), chat.MessageUpdate{Rating: &rating})
			So(err, ShouldEqual, repository.ErrNotFound)
		})

		Convey("删除消息同时移出会话消息列表", func() {
			first := NewMessage(conv.ID, chat.RoleUser, "first")
			second := NewMessage(conv.ID, chat.RoleAssistant, "second")
			So(store.AppendMessage(ctx, first), ShouldBeNil)
			So(store.AppendMessage(ctx, second), ShouldBeNil)

			So(store.DeleteMessage(ctx, first.ID), ShouldBeNil)

			msgs, err := store.ListMessages(ctx, conv.ID)
			So(err, ShouldBeNil)
			So(len(msgs), ShouldEqual, 1)
			So(msgs[0].ID, ShouldEqual, second.ID)

			got, err := store.GetConversation(ctx, conv.ID)
			So(err, ShouldBeNil)
			So(got.MessageIDs, ShouldResemble, []string{second.ID})

			So(store.DeleteMessage(ctx, first.ID), ShouldEqual, repository.ErrNotFound)
		})
	})
}

func testConcurrentAppend(t *testing.T, newStore Factory) {
	Convey("并发追加不会打乱顺序", t, func() {
		ctx := context.Background()
		store := newStore(t)

		conv := NewConversation(id.New())
		So(store.CreateConversation(ctx, conv), ShouldBeNil)

		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- store.AppendMessage(ctx, NewMessage(conv.ID, chat.RoleUser, fmt.Sprintf("c%d", i)))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			So(err, ShouldBeNil)
		}

		msgs, err := store.ListMessages(ctx, conv.ID)
		So(err, ShouldBeNil)
		So(len(msgs), ShouldEqual, n)
		for i, m := range msgs {
			So(m.Seq, ShouldEqual, int64(i+1))
		}

		got, err := store.GetConversation(ctx, conv.ID)
		So(err, ShouldBeNil)
		So(len(got.MessageIDs), ShouldEqual, n)
		for i, m := range msgs {
			So(got.MessageIDs[i], ShouldEqual, m.ID)
		}
	})
}

func testShare(t *testing.T, newStore Factory) {
	Convey("分享令牌只设置一次", t, func() {
		ctx := context.Background()
		store := newStore(t)

		conv := NewConversation(id.New())
		So(store.CreateConversation(ctx, conv), ShouldBeNil)

		token, err := store.SetShareToken(ctx, conv.ID, "token-1")
		So(err, ShouldBeNil)
		So(token, ShouldEqual, "token-1")

		Convey("再次设置返回原令牌", func() {
			token, err := store.SetShareToken(ctx, conv.ID, "token-2")
			So(err, ShouldBeNil)
			So(token, ShouldEqual, "token-1")

			got, err := store.GetConversation(ctx, conv.ID)
			So(err, ShouldBeNil)
			So(*got.ShareToken, ShouldEqual, "token-1")
		})

		Convey("按令牌查询", func() {
			got, err := store.FindConversationByShareToken(ctx, "token-1")
			So(err, ShouldBeNil)
			So(got.ID, ShouldEqual, conv.ID)

			_, err = store.FindConversationByShareToken(ctx, "missing")
			So(err, ShouldEqual, repository.ErrNotFound)
		})

		Convey("令牌在会话间唯一", func() {
			other := NewConversation(id.New())
			So(store.CreateConversation(ctx, other), ShouldBeNil)
			_, err := store.SetShareToken(ctx, other.ID, "token-1")
			So(err, ShouldEqual, repository.ErrConflict)
		})

		Convey("不存在的会话返回 ErrNotFound", func() {
			_, err := store.SetShareToken(ctx, id.New(), "token-3")
			So(err, ShouldEqual, repository.ErrNotFound)
		})
	})
}

func testFiles(t *testing.T, newStore Factory) {
	Convey("文件记录存储", t, func() {
		ctx := context.Background()
		store := newStore(t)
		userID := id.New()
		convID := id.New()

		attached := &file.File{
			ID:             id.New(),
			UserID:         userID,
			ConversationID: convID,
			Filename:       "a.png",
			OriginalName:   "photo.png",
			MimeType:       "image/png",
			Size:           10,
			StorageKey:     "uploads/a.png",
			StorageType:    "local",
			FileType:       file.TypeImage,
		}
		loose := &file.File{
			ID:           id.New(),
			UserID:       userID,
			Filename:     "b.txt",
			OriginalName: "notes.txt",
			MimeType:     "text/plain",
			Size:         5,
			StorageKey:   "uploads/b.txt",
			StorageType:  "local",
			FileType:     file.TypeOther,
		}
		So(store.CreateFile(ctx, attached), ShouldBeNil)
		time.Sleep(5 * time.Millisecond)
		So(store.CreateFile(ctx, loose), ShouldBeNil)

		Convey("按用户列出，最新在前", func() {
			files, err := store.ListFiles(ctx, userID)
			So(err, ShouldBeNil)
			So(len(files), ShouldEqual, 2)
			So(files[0].ID, ShouldEqual, loose.ID)

			files, err = store.ListFiles(ctx, id.New())
			So(err, ShouldBeNil)
			So(files, ShouldBeEmpty)
		})

		Convey("按会话列出", func() {
			files, err := store.ListFilesByConversation(ctx, userID, convID)
			So(err, ShouldBeNil)
			So(len(files), ShouldEqual, 1)
			So(files[0].ID, ShouldEqual, attached.ID)
			So(files[0].StorageKey, ShouldEqual, "uploads/a.png")
		})

		Convey("删除后查询返回 ErrNotFound", func() {
			So(store.DeleteFile(ctx, attached.ID), ShouldBeNil)
			_, err := store.GetFile(ctx, attached.ID)
			So(err, ShouldEqual, repository.ErrNotFound)
			So(store.DeleteFile(ctx, attached.ID), ShouldEqual, repository.ErrNotFound)
		})
	})
}
