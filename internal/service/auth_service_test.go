package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"parley/internal/model/auth"
	"parley/internal/repository"
	"parley/internal/repository/memory"
)

func TestAuthService(t *testing.T) {
	Convey("AuthService", t, func() {
		ctx := context.Background()
		svc := NewAuthService(memory.New(), "test-secret", time.Hour)

		res, err := svc.Register(ctx, " alice ", "Alice@Example.com", "secret1")
		So(err, ShouldBeNil)
		So(res.Token, ShouldNotBeEmpty)
		So(res.User.Username, ShouldEqual, "alice")
		So(res.User.Email, ShouldEqual, "alice@example.com")
		So(res.User.Theme, ShouldEqual, auth.ThemeLight)
		So(res.User.Language, ShouldEqual, auth.DefaultLanguage)

		Convey("令牌可以解析出用户", func() {
			claims, err := svc.ValidateToken(res.Token)
			So(err, ShouldBeNil)
			So(claims.UserID, ShouldEqual, res.User.ID)

			_, err = svc.ValidateToken("garbage")
			So(errors.Is(err, ErrUnauthorized), ShouldBeTrue)
		})

		Convey("重复的用户名或邮箱返回冲突", func() {
			_, err := svc.Register(ctx, "alice", "other@example.com", "secret1")
			So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
			_, err = svc.Register(ctx, "bob", "ALICE@example.com", "secret1")
			So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
		})

		Convey("非法注册参数", func() {
			_, err := svc.Register(ctx, "ab", "b@example.com", "secret1")
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
			_, err = svc.Register(ctx, "bob", "not-an-email", "secret1")
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
			_, err = svc.Register(ctx, "bob", "b@example.com", "short")
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
			_, err = svc.Register(ctx, "bob", "b@example.com", strings.Repeat("x", 73))
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
		})

		Convey("登录", func() {
			got, err := svc.Login(ctx, "ALICE@example.com", "secret1")
			So(err, ShouldBeNil)
			So(got.User.ID, ShouldEqual, res.User.ID)

			_, err = svc.Login(ctx, "alice@example.com", "wrong")
			So(errors.Is(err, ErrUnauthorized), ShouldBeTrue)
			_, err = svc.Login(ctx, "nobody@example.com", "secret1")
			So(errors.Is(err, ErrUnauthorized), ShouldBeTrue)
		})

		Convey("资料更新", func() {
			theme, lang := "dark", "fr"
			user, err := svc.UpdateProfile(ctx, res.User.ID, UpdateProfileInput{Theme: &theme, Language: &lang})
			So(err, ShouldBeNil)
			So(user.Theme, ShouldEqual, auth.ThemeDark)
			So(user.Language, ShouldEqual, "fr")

			me, err := svc.Me(ctx, res.User.ID)
			So(err, ShouldBeNil)
			So(me.Theme, ShouldEqual, auth.ThemeDark)

			bad := "neon"
			_, err = svc.UpdateProfile(ctx, res.User.ID, UpdateProfileInput{Theme: &bad})
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)

			_, err = svc.Me(ctx, "missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}
