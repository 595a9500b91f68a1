package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/foomo/mdbook-confluence/book"
	"github.com/foomo/mdbook-confluence/config"
	"github.com/foomo/mdbook-confluence/confluence"
	"github.com/foomo/mdbook-confluence/logging"
	"github.com/foomo/mdbook-confluence/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rendererName is the [output.<name>] table mdbook configures us with.
const rendererName = "confluence"

var (
	logLevel string
	logFile  string

	rootCmd = &cobra.Command{
		Use:   "mdbook-confluence",
		Short: "mdbook renderer that publishes a book to Confluence",
		Long: `mdbook-confluence reads the render context mdbook writes to stdin and
mirrors the book's chapters as a page tree below a Confluence root page.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         runRender,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to this rotated file")
	config.RegisterFlags(rootCmd.PersistentFlags())
}

func newLogger() (*zap.Logger, error) {
	return logging.New(logging.Config{Level: logLevel, File: logFile})
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	renderContext, err := book.ReadRenderContext(cmd.InOrStdin())
	if err != nil {
		return err
	}
	if !renderContext.CompatibleWith(book.MdbookVersion) {
		logger.Warn("mdbook version differs from the version this renderer was built against",
			zap.String("mdbook", renderContext.Version),
			zap.String("expected", book.MdbookVersion),
		)
	}

	settings, err := config.Load(renderContext.OutputConfig(rendererName), cmd.Flags())
	if err != nil {
		return err
	}
	if !settings.Enabled {
		logger.Info("renderer is disabled")
		return nil
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	session, version, err := openSession(ctx, settings, logger)
	if err != nil {
		return err
	}
	defer closeSession(context.WithoutCancel(ctx), session, logger)

	svc := service.NewService(session, version, *settings, logger, nil)
	return svc.Render(ctx, renderContext.SourceRoot(), renderContext.Book.Sections)
}

func openSession(ctx context.Context, settings *config.Settings, logger *zap.Logger) (*confluence.Session, confluence.ServerVersion, error) {
	session, err := confluence.Login(ctx, settings.URL, settings.Username, settings.Password, nil)
	if err != nil {
		return nil, confluence.ServerVersion{}, fmt.Errorf("failed to log into Confluence: %w", err)
	}
	version, err := confluence.FetchServerVersion(ctx, session)
	if err != nil {
		closeSession(ctx, session, logger)
		return nil, confluence.ServerVersion{}, err
	}
	logger.Info("logged into Confluence", zap.String("version", version.String()))
	return session, version, nil
}

func closeSession(ctx context.Context, session *confluence.Session, logger *zap.Logger) {
	if ok, err := session.Logout(ctx); err != nil || !ok {
		logger.Warn("failed to log out of Confluence", zap.Bool("ok", ok), zap.Error(err))
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
