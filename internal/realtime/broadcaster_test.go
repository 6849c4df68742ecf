package realtime

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"parley/internal/model/chat"
)

func receive(ch <-chan Event) (Event, bool) {
	select {
	case ev, ok := <-ch:
		return ev, ok
	case <-time.After(time.Second):
		return Event{}, false
	}
}

func TestBroadcaster(t *testing.T) {
	Convey("Broadcaster 按会话分发事件", t, func() {
		b := NewBroadcaster()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		chA, _ := b.Subscribe(ctx, "conv-a")
		chB, _ := b.Subscribe(ctx, "conv-b")

		Convey("只有同一会话的订阅者收到事件", func() {
			b.Publish(Event{Type: EventMessageCreated, ConversationID: "conv-a", Message: &chat.Message{ID: "m1"}})

			ev, ok := receive(chA)
			So(ok, ShouldBeTrue)
			So(ev.Message.ID, ShouldEqual, "m1")

			select {
			case <-chB:
				So("conv-b received an event", ShouldBeEmpty)
			case <-time.After(20 * time.Millisecond):
			}
		})

		Convey("退订后 channel 被关闭", func() {
			ch, subID := b.Subscribe(ctx, "conv-c")
			So(b.SubscriberCount("conv-c"), ShouldEqual, 1)
			b.Unsubscribe("conv-c", subID)
			_, ok := <-ch
			So(ok, ShouldBeFalse)
			So(b.SubscriberCount("conv-c"), ShouldEqual, 0)
		})

		Convey("ctx 取消后自动退订", func() {
			subCtx, subCancel := context.WithCancel(context.Background())
			ch, _ := b.Subscribe(subCtx, "conv-d")
			subCancel()
			_, ok := receive(ch)
			So(ok, ShouldBeFalse)
		})

		Convey("慢订阅者不阻塞发布", func() {
			for i := 0; i < subscriberBufferSize+10; i++ {
				b.Publish(Event{Type: EventMessageCreated, ConversationID: "conv-a"})
			}
			So(len(chA), ShouldEqual, subscriberBufferSize)
		})

		Convey("没有订阅者时发布无副作用", func() {
			So(func() { b.Publish(Event{ConversationID: "nobody"}) }, ShouldNotPanic)
		})
	})
}
