package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "parley/docs"
	"parley/internal/ai"
	"parley/internal/config"
	"parley/internal/handler"
	authHandler "parley/internal/handler/auth"
	chatHandler "parley/internal/handler/chat"
	conversationHandler "parley/internal/handler/conversation"
	fileHandler "parley/internal/handler/file"
	"parley/internal/model/chat"
	"parley/internal/pkg/storage"
	"parley/internal/pkg/storagefactory"
	"parley/internal/pkg/tokenizer"
	"parley/internal/realtime"
	"parley/internal/repository"
	"parley/internal/repository/storefactory"
	"parley/internal/server/middleware"
	"parley/internal/service"
)

const defaultJWTSecret = "default-secret-key-change-in-production"

// Server HTTP 服务器
type Server struct {
	cfg         *config.Config
	engine      *gin.Engine
	store       repository.Store
	storage     storage.Storage
	broadcaster *realtime.Broadcaster
}

// Deps 服务器依赖，测试时可直接注入
type Deps struct {
	Store   repository.Store
	Storage storage.Storage
	Gateway ai.Gateway
}

// New 根据配置创建服务器实例
func New(cfg *config.Config) (*Server, error) {
	ctx := context.Background()

	store, err := storefactory.NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	st, err := storagefactory.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}
	log.Info().Str("type", st.GetStorageType()).Msg("file storage initialized")

	return NewWithDeps(cfg, Deps{
		Store:   store,
		Storage: st,
		Gateway: ai.NewGateway(ctx, &cfg.AI),
	}), nil
}

// NewWithDeps 使用已创建的依赖组装服务器
func NewWithDeps(cfg *config.Config, deps Deps) *Server {
	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &Server{
		cfg:         cfg,
		engine:      gin.New(),
		store:       deps.Store,
		storage:     deps.Storage,
		broadcaster: realtime.NewBroadcaster(),
	}

	srv.setupRoutes(deps.Gateway)

	return srv
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(gateway ai.Gateway) {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS(s.cfg.Server.CORSOrigins))

	// 服务
	jwtSecret := s.cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = defaultJWTSecret
		log.Warn().Msg("JWT secret not configured, using default (NOT SECURE for production)")
	}
	accessTokenExpiry := s.cfg.Auth.AccessTokenExpiry
	if accessTokenExpiry == 0 {
		accessTokenExpiry = 24 * time.Hour
	}

	assembler := ai.NewAssembler(s.store, ai.AssemblerOptions{
		MaxMessages:  s.cfg.Chat.Context.MaxMessages,
		MaxTokens:    s.cfg.Chat.Context.MaxTokens,
		SystemPrompt: s.cfg.Chat.SystemPrompt,
		Counter:      tokenizer.NewSegmenter(),
	})

	authSvc := service.NewAuthService(s.store, jwtSecret, accessTokenExpiry)
	conversationSvc := service.NewConversationService(s.store, service.ConversationDefaults{
		Model:        chat.Model(s.cfg.Chat.DefaultModel),
		Temperature:  s.cfg.Chat.DefaultTemperature,
		ShareBaseURL: s.cfg.Chat.ShareBaseURL,
	})
	chatSvc := service.NewChatService(s.store, assembler, gateway, s.broadcaster)
	fileSvc := service.NewFileService(s.store, s.storage, s.cfg.Upload.AllowedExtensions, s.cfg.Upload.MaxSize)

	authHdl := authHandler.NewHandler(authSvc)
	conversationHdl := conversationHandler.NewHandler(conversationSvc, chatSvc, s.broadcaster)
	chatHdl := chatHandler.NewHandler(chatSvc)
	fileHdl := fileHandler.NewHandler(fileSvc, s.cfg.Upload.MaxSize)

	// 健康检查
	healthHandler := handler.NewHealthHandler(s.store)
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// Swagger 文档
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 本地存储的文件通过静态目录访问
	s.mountLocalStorage()

	// API v1
	v1 := s.engine.Group("/api/v1")
	{
		// 公开接口
		v1.POST("/auth/register", authHdl.Register)
		v1.POST("/auth/login", authHdl.Login)
		v1.GET("/conversations/public/:shareToken", conversationHdl.GetShared)

		// 需要认证的接口
		authed := v1.Group("")
		authed.Use(middleware.Auth(authSvc))
		{
			authed.GET("/auth/me", authHdl.GetMe)
			authed.PUT("/auth/profile", authHdl.UpdateProfile)

			conversations := authed.Group("/conversations")
			{
				conversations.POST("", conversationHdl.Create)
				conversations.GET("", conversationHdl.List)
				conversations.GET("/archived/list", conversationHdl.ListArchived)
				conversations.POST("/import", conversationHdl.Import)
				conversations.GET("/:id", conversationHdl.Get)
				conversations.PUT("/:id", conversationHdl.Update)
				conversations.DELETE("/:id", conversationHdl.Delete)
				conversations.POST("/:id/archive", conversationHdl.Archive)
				conversations.POST("/:id/restore", conversationHdl.Restore)
				conversations.POST("/:id/share", conversationHdl.Share)
				conversations.POST("/:id/unshare", conversationHdl.Unshare)
				conversations.GET("/:id/export/json", conversationHdl.ExportJSON)
				conversations.GET("/:id/export/markdown", conversationHdl.ExportMarkdown)
				conversations.GET("/:id/export/html", conversationHdl.ExportHTML)
				conversations.GET("/:id/ws", conversationHdl.Feed)
			}

			chatRoutes := authed.Group("/chat")
			{
				chatRoutes.POST("/message", chatHdl.PostMessage)
				chatRoutes.GET("/messages/:conversationId", chatHdl.ListMessages)
				chatRoutes.PUT("/message/:id", chatHdl.EditMessage)
				chatRoutes.POST("/message/:id/rate", chatHdl.RateMessage)
				chatRoutes.DELETE("/message/:id", chatHdl.DeleteMessage)
			}

			files := authed.Group("/files")
			{
				files.POST("/upload", fileHdl.Upload)
				files.GET("", fileHdl.List)
				files.GET("/conversation/:conversationId", fileHdl.ListByConversation)
				files.GET("/download/:id", fileHdl.Download)
				files.DELETE("/:id", fileHdl.Delete)
			}
		}
	}
}

// mountLocalStorage 将本地存储目录挂载到 base_url 的路径上
func (s *Server) mountLocalStorage() {
	local := s.cfg.Storage.Local
	if s.storage == nil || s.storage.GetStorageType() != string(storage.StorageTypeLocal) || local == nil || local.BaseURL == "" {
		return
	}
	u, err := url.Parse(local.BaseURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		log.Warn().Str("base_url", local.BaseURL).Msg("local storage base_url has no path, static files not served")
		return
	}
	s.engine.Static(u.Path, local.BasePath)
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待关闭信号或错误
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// 先关闭实时推送，让 WebSocket 连接退出
		s.broadcaster.Close()
		err := srv.Shutdown(shutdownCtx)

		if cerr := s.store.Close(shutdownCtx); cerr != nil {
			log.Error().Err(cerr).Msg("failed to close store")
		}
		return err
	case err := <-errCh:
		s.broadcaster.Close()
		_ = s.store.Close(context.Background())
		return err
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
