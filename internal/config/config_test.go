package config

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, Mode: "release"},
		Store:  StoreConfig{Type: "memory"},
		Chat:   ChatConfig{DefaultModel: "gpt-3.5-turbo", DefaultTemperature: 0.7},
	}
}

func TestConfig_Validate(t *testing.T) {
	Convey("Validate 校验配置", t, func() {
		Convey("默认配置通过", func() {
			So(validConfig().Validate(), ShouldBeNil)
		})

		Convey("端口越界", func() {
			cfg := validConfig()
			cfg.Server.Port = 70000
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("未知模式", func() {
			cfg := validConfig()
			cfg.Server.Mode = "prod"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("未知存储类型", func() {
			cfg := validConfig()
			cfg.Store.Type = "cassandra"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("未知默认模型", func() {
			cfg := validConfig()
			cfg.Chat.DefaultModel = "gpt-5"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("温度越界", func() {
			cfg := validConfig()
			cfg.Chat.DefaultTemperature = 2.5
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("负的上下文限制", func() {
			cfg := validConfig()
			cfg.Chat.Context.MaxMessages = -1
			So(cfg.Validate(), ShouldNotBeNil)
		})
	})
}
