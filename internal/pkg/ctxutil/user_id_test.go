package ctxutil

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestContextValues(t *testing.T) {
	Convey("context 中的身份信息", t, func() {
		ctx := context.Background()

		_, ok := GetUserID(ctx)
		So(ok, ShouldBeFalse)

		ctx = WithUserID(ctx, "u1")
		ctx = WithRequestID(ctx, "r1")

		userID, ok := GetUserID(ctx)
		So(ok, ShouldBeTrue)
		So(userID, ShouldEqual, "u1")

		requestID, ok := GetRequestID(ctx)
		So(ok, ShouldBeTrue)
		So(requestID, ShouldEqual, "r1")

		Convey("空值视为不存在", func() {
			_, ok := GetUserID(WithUserID(context.Background(), ""))
			So(ok, ShouldBeFalse)
		})
	})
}
