package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/foomo/mdbook-confluence/config"
	"github.com/foomo/mdbook-confluence/mcp"
	"github.com/foomo/mdbook-confluence/service"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	httpAddr    string
	mcpEndpoint string

	mcpCmd = &cobra.Command{
		Use:   "mcp",
		Short: "Serve Confluence tools over the Model Context Protocol",
		Long: `Logs into Confluence with the configured credentials and serves the
serverInfo, listChildren, getPage and publish tools over stdio, or over
streamable HTTP with an SSE progress stream when --http is set.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         runMCP,
	}
)

func init() {
	mcpCmd.Flags().StringVar(&httpAddr, "http", "", "HTTP server address (e.g., ':8080')")
	mcpCmd.Flags().StringVar(&mcpEndpoint, "endpoint", "/mcp", "HTTP endpoint path of the MCP server")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	settings, err := config.Load(nil, cmd.Flags())
	if err != nil {
		return err
	}
	settings.Enabled = true
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	session, version, err := openSession(ctx, settings, logger)
	if err != nil {
		return err
	}
	defer closeSession(context.WithoutCancel(ctx), session, logger)

	publisher := service.NewPublisher(session, version, *settings, logger)

	if httpAddr == "" {
		logger.Info("starting MCP server in stdio mode")
		return server.ServeStdio(mcp.NewServer(session, publisher))
	}

	sseServer := mcp.NewMCPSSEServer(logger, publisher, nil)
	s := mcp.NewServer(session, sseServer.Publisher())
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           mcp.NewMcpHTTPSSEServer(s, sseServer, mcpEndpoint),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting MCP server", zap.String("addr", httpAddr), zap.String("endpoint", mcpEndpoint))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
