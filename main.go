package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rag-gateway/config"
	"rag-gateway/database"
	"rag-gateway/ingest"
	"rag-gateway/noderag"
	"rag-gateway/pipeline"
	"rag-gateway/router"
	"rag-gateway/transport"
	"rag-gateway/web"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	// Initialize logger with default level to load config
	tempLogger, err := config.InitLogger("info")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Load config (which includes log level setting)
	cfg := config.Load(tempLogger)

	// Re-initialize logger with configured level
	logger, err := config.InitLogger(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to re-initialize logger with configured level: %v\n", err)
		os.Exit(1)
	}
	defer config.Cleanup()

	certMode, err := transport.ParseCertMode(cfg.CertificateMode)
	if err != nil {
		logger.Fatal("Invalid certificate mode", zap.Error(err))
	}
	if certMode == transport.CertInsecure {
		logger.Warn("Certificate verification disabled by configuration; outbound TLS is NOT verified")
	}

	store, err := database.NewStore(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to ensure database schema", zap.Error(err))
	}

	httpTransport := transport.New(logger)
	parserClient := ingest.NewParserServiceClient(cfg.ParserServiceURL, cfg.ParserAPIKey, httpTransport, certMode, logger)
	chain := ingest.NewChain(parserClient, cfg.MaxNodeRunes, logger)

	localPipeline := pipeline.New(cfg, logger)
	nodeRAG := noderag.New(cfg.NodeRAGServiceURL, httpTransport, certMode, logger)
	queryRouter := router.New(cfg, localPipeline, nodeRAG, logger)

	webServer := web.NewServer(queryRouter, chain, store, nodeRAG, cfg, logger)

	// Create context that listens for interrupt signals
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	port := fmt.Sprintf(":%d", cfg.WebPort)
	logger.Info("Starting RAG gateway", zap.String("port", port), zap.String("default_version", cfg.RAGVersion))
	if err := webServer.Start(ctx, port); err != nil {
		logger.Error("Web server error", zap.Error(err))
		os.Exit(1)
	}
}
