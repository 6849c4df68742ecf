package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	. "github.com/smartystreets/goconvey/convey"

	"parley/internal/config"
)

func TestInit(t *testing.T) {
	Convey("初始化日志", t, func() {
		defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

		Convey("写入文件并自动创建目录", func() {
			path := filepath.Join(t.TempDir(), "logs", "parley.log")
			err := Init(&config.LogConfig{Level: "debug", Format: "json", Output: "file", FilePath: path})
			So(err, ShouldBeNil)
			So(zerolog.GlobalLevel(), ShouldEqual, zerolog.DebugLevel)

			log.Info().Msg("hello")
			data, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, `"service":"parley"`)
		})

		Convey("未知级别回退到 info", func() {
			So(Init(&config.LogConfig{Level: "nope", Format: "json"}), ShouldBeNil)
			So(zerolog.GlobalLevel(), ShouldEqual, zerolog.InfoLevel)
		})
	})
}
