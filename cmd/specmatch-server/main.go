// specmatch-server - HTTP сервис распознавания спецификаций чехла по скриншоту.
//
// Маршруты /api/* описаны в internal/api; при server.mcp_enabled под /mcp/
// доступны MCP инструменты поверх тех же операций.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ilkoid/specmatch/internal/api"
	"github.com/ilkoid/specmatch/internal/app"
	"github.com/ilkoid/specmatch/internal/mcpserver"
	"github.com/ilkoid/specmatch/pkg/utils"
)

var (
	configFlag = flag.String("config", "", "Path to config.yaml (default: ./config.yaml or next to binary)")
	portFlag   = flag.Int("port", 0, "Override server.port")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		utils.Error("Server stopped with error", "error", err)
		fmt.Fprintf(os.Stderr, "specmatch-server: %v\n", err)
		utils.Close()
		os.Exit(1)
	}
}

func run() error {
	cfg, cfgPath, err := app.InitializeConfig(&app.DefaultConfigPathFinder{ConfigFlag: *configFlag})
	if err != nil {
		return err
	}
	if *portFlag > 0 {
		cfg.Server.Port = *portFlag
	}

	if err := utils.InitLogger(cfg.App.LogPrefix); err != nil {
		fmt.Fprintf(os.Stderr, "Logger init failed: %v\n", err)
	}

	// Корневой контекст отменяется по SIGINT/SIGTERM
	ctx, shutdown := utils.SetupGracefulShutdown(context.Background())
	defer shutdown()

	utils.Info("specmatch-server starting", "config", cfgPath, "build", cfg.Server.BuildID)

	components, err := app.Initialize(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer components.Close()

	srv := api.NewServer(components.Service, api.Options{
		BuildID:        cfg.Server.BuildID,
		MaxUploadBytes: cfg.ImageProcessing.MaxUploadBytes,
		RateLimit:      cfg.Server.RateLimit,
		BurstLimit:     cfg.Server.BurstLimit,
	})
	srv.StartCleanup(ctx, time.Minute)

	mux := http.NewServeMux()
	if cfg.Server.MCPEnabled {
		mcpSrv := mcpserver.New(components.Service)
		mux.Handle("/mcp/", http.StripPrefix("/mcp", mcpSrv.HTTPHandler()))
		utils.Info("MCP endpoint enabled", "path", "/mcp/")
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Routes(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	utils.Info("HTTP server stopped")
	return nil
}
