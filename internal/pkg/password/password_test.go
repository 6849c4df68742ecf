package password

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestHashVerify(t *testing.T) {
	Convey("bcrypt 加密与校验", t, func() {
		hash, err := Hash("s3cret!")
		So(err, ShouldBeNil)
		So(hash, ShouldNotEqual, "s3cret!")
		So(Verify("s3cret!", hash), ShouldBeTrue)
		So(Verify("wrong", hash), ShouldBeFalse)

		Convey("空哈希不通过", func() {
			So(Verify("s3cret!", ""), ShouldBeFalse)
		})

		Convey("超长密码被拒绝", func() {
			_, err := Hash(strings.Repeat("a", MaxLength+1))
			So(err, ShouldEqual, ErrTooLong)
		})
	})
}
