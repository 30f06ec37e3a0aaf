package web

import (
	"context"
	"net/http"

	"rag-gateway/config"
	"rag-gateway/database"
	"rag-gateway/ingest"
	"rag-gateway/noderag"
	"rag-gateway/router"
	"rag-gateway/web/handlers"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	logger *zap.Logger
	config *config.Config
}

func NewServer(
	queryRouter *router.Router,
	chain *ingest.Chain,
	store *database.Store,
	nodeRAG *noderag.Client,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(func(c *gin.Context) {
		// Add logger to context
		c.Set("logger", logger)
		c.Next()
	})

	server := &Server{
		router: engine,
		logger: logger,
		config: cfg,
	}

	chatHandler := handlers.NewChatHandler(queryRouter, cfg, logger)
	uploadHandler := handlers.NewUploadHandler(chain, store, cfg, logger)
	healthHandler := handlers.NewHealthHandler(nodeRAG, logger)

	engine.GET("/health", healthHandler.Health)
	api := engine.Group("/api/v3")
	{
		api.POST("/chat", chatHandler.Chat)
		api.POST("/upload", uploadHandler.Upload)
		api.GET("/documents/:fileID", uploadHandler.GetDocument)
	}

	return server
}

func (s *Server) Start(ctx context.Context, addr string) error {
	s.logger.Info("Starting web server", zap.String("address", addr))

	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Web server failed to start", zap.Error(err))
		}
	}()

	// Wait for context cancellation
	<-ctx.Done()

	s.logger.Info("Shutting down web server")
	return srv.Shutdown(context.Background())
}
