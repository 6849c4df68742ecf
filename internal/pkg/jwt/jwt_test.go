package jwt

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestJWT(t *testing.T) {
	Convey("签发与校验 Access Token", t, func() {
		j := NewJWT("secret", time.Hour)

		token, err := j.GenerateToken("user-1", "alice")
		So(err, ShouldBeNil)

		Convey("有效令牌返回用户信息", func() {
			claims, err := j.ValidateToken(token)
			So(err, ShouldBeNil)
			So(claims.UserID, ShouldEqual, "user-1")
			So(claims.Username, ShouldEqual, "alice")
		})

		Convey("密钥不同则无效", func() {
			_, err := NewJWT("other", time.Hour).ValidateToken(token)
			So(err, ShouldEqual, ErrInvalidToken)
		})

		Convey("乱码令牌无效", func() {
			_, err := j.ValidateToken("garbage")
			So(err, ShouldEqual, ErrInvalidToken)
		})

		Convey("过期令牌返回 ErrExpiredToken", func() {
			expired := NewJWT("secret", -time.Minute)
			token, err := expired.GenerateToken("user-1", "alice")
			So(err, ShouldBeNil)
			_, err = expired.ValidateToken(token)
			So(err, ShouldEqual, ErrExpiredToken)
		})
	})
}
